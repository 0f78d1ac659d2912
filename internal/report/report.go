// Package report builds the damage assessment spreadsheet for a batch.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/electronjoe/DamageReview/internal/ingest"
	"github.com/electronjoe/DamageReview/internal/review"
)

const (
	SheetName  = "Damage Assessment Report"
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

var header = []string{
	"Report ID",
	"Folder Path",
	"Status",
	"Precondition Photos",
	"Damage Photos",
	"Completion Photos",
	"Total Photos",
	"Comments",
	"Generated Date",
	"Generated Time",
}

// columnWidths follow header, in characters.
var columnWidths = []float64{15, 30, 15, 12, 12, 12, 12, 40, 12, 12}

// Row is one line of the report.
type Row struct {
	ReportID     string
	FolderPath   string
	Status       string
	Precondition int
	Damage       int
	Completion   int
	Total        int
	Comments     string
	Date         string
	Time         string
}

func (r Row) values() []any {
	return []any{
		r.ReportID, r.FolderPath, r.Status,
		r.Precondition, r.Damage, r.Completion, r.Total,
		r.Comments, r.Date, r.Time,
	}
}

// Stats counts sites by review status.
type Stats struct {
	Total       int
	Checked     int
	NeedsReview int
	Pending     int
}

// Count tallies the status of every set; sites without an entry are pending.
func Count(sets []ingest.PhotoSet, entries map[string]review.ReportEntry) Stats {
	st := Stats{Total: len(sets)}
	for _, s := range sets {
		switch entries[s.SiteID].Status {
		case review.StatusChecked:
			st.Checked++
		case review.StatusNeedsReview:
			st.NeedsReview++
		}
	}
	st.Pending = st.Total - st.Checked - st.NeedsReview
	return st
}

// Report is the content of the spreadsheet, summary row first.
type Report struct {
	Stats Stats
	Rows  []Row
}

// Build lays out the report for sets at time now.
func Build(sets []ingest.PhotoSet, entries map[string]review.ReportEntry, globalComments string, now time.Time) Report {
	st := Count(sets, entries)
	rows := make([]Row, 0, len(sets)+1)
	rows = append(rows, Row{
		ReportID:   "SUMMARY",
		FolderPath: fmt.Sprintf("Total Reports: %d", st.Total),
		Status:     fmt.Sprintf("Checked: %d, Review: %d, Pending: %d", st.Checked, st.NeedsReview, st.Pending),
		Comments:   globalComments,
	})

	date, clock := now.Format(dateLayout), now.Format(timeLayout)
	for _, s := range sets {
		e, ok := entries[s.SiteID]
		if !ok {
			e = review.ReportEntry{SiteID: s.SiteID, Status: review.StatusPending}
		}
		rows = append(rows, Row{
			ReportID:     s.SiteID,
			FolderPath:   s.SiteID,
			Status:       e.Status.Label(),
			Precondition: len(s.PreconditionPhotos),
			Damage:       len(s.DamagePhotos),
			Completion:   len(s.CompletionPhotos),
			Total:        s.Total(),
			Comments:     e.Comments,
			Date:         date,
			Time:         clock,
		})
	}
	return Report{Stats: st, Rows: rows}
}

// FileName is the download name of a report generated at now. The date is
// the UTC date.
func FileName(now time.Time) string {
	return "damage_assessment_report_" + now.UTC().Format(dateLayout) + ".xlsx"
}

// WriteXLSX encodes r as an xlsx workbook with a single sheet.
func WriteXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("set width of column %s: %w", col, err)
		}
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range r.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row.values()
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
