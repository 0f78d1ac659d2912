package review

import "time"

type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalQuery    ApprovalStatus = "query"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalApproved, ApprovalQuery, ApprovalRejected:
		return true
	}
	return false
}

// Approval is the reviewer's decision on a site's photo set.
type Approval struct {
	Status    ApprovalStatus `json:"status"`
	Comments  string         `json:"comments"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type ReportStatus string

const (
	StatusPending     ReportStatus = "pending"
	StatusChecked     ReportStatus = "checked"
	StatusNeedsReview ReportStatus = "needs-review"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusChecked, StatusNeedsReview:
		return true
	}
	return false
}

// Label is the human readable form used in the spreadsheet.
func (s ReportStatus) Label() string {
	switch s {
	case StatusChecked:
		return "Checked"
	case StatusNeedsReview:
		return "Needs Review"
	default:
		return "Pending"
	}
}

// ReportEntry is a site's line in the assessment report.
type ReportEntry struct {
	SiteID   string       `json:"siteId"`
	Status   ReportStatus `json:"status"`
	Comments string       `json:"comments"`
}

type MeasurementType string

const (
	MeasureDistance  MeasurementType = "distance"
	MeasureArea      MeasurementType = "area"
	MeasurePerimeter MeasurementType = "perimeter"
)

// costPerUnit is the rough repair cost (AUD) per meter or square meter.
var costPerUnit = map[MeasurementType]float64{
	MeasureDistance:  50,
	MeasureArea:      200,
	MeasurePerimeter: 75,
}

// Measurement is a manual measurement of damage on site.
type Measurement struct {
	ID          string          `json:"id"`
	Type        MeasurementType `json:"type"`
	Value       float64         `json:"value"`
	Unit        string          `json:"unit"`
	Description string          `json:"description"`
	Coordinates []float64       `json:"coordinates,omitempty"`
}

// EstimateCost sums a simple per-unit repair estimate over ms.
func EstimateCost(ms []Measurement) float64 {
	var total float64
	for _, m := range ms {
		total += m.Value * costPerUnit[m.Type]
	}
	return total
}

type AnnotationType string

const (
	AnnotateArrow     AnnotationType = "arrow"
	AnnotateRectangle AnnotationType = "rectangle"
	AnnotateCircle    AnnotationType = "circle"
	AnnotateText      AnnotationType = "text"
	AnnotateFreehand  AnnotationType = "freehand"
)

func (t AnnotationType) Valid() bool {
	switch t {
	case AnnotateArrow, AnnotateRectangle, AnnotateCircle, AnnotateText, AnnotateFreehand:
		return true
	}
	return false
}

// Annotation is a shape drawn over a photo. Points are in image pixels,
// flattened as x0, y0, x1, y1, ...
type Annotation struct {
	ID          string         `json:"id"`
	Type        AnnotationType `json:"type"`
	Points      []float64      `json:"points"`
	Text        string         `json:"text,omitempty"`
	Color       string         `json:"color"`
	StrokeWidth float64        `json:"strokeWidth"`
	FontSize    float64        `json:"fontSize,omitempty"`
}
