package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/electronjoe/DamageReview/internal/ingest"
	"github.com/electronjoe/DamageReview/internal/mapview"
	"github.com/electronjoe/DamageReview/internal/report"
	"github.com/electronjoe/DamageReview/internal/review"
)

func newBatchID() string { return uuid.NewString() }

type siteSummary struct {
	SiteID       string              `json:"siteId"`
	Damage       int                 `json:"damage"`
	Precondition int                 `json:"precondition"`
	Completion   int                 `json:"completion"`
	Total        int                 `json:"total"`
	HasReference bool                `json:"hasReference"`
	Status       review.ReportStatus `json:"status"`
}

func (s *Server) listSites(c *fiber.Ctx) error {
	batchID, batch := s.current()
	c.Set("X-Batch-Id", batchID)
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))

	out := []siteSummary{}
	for _, set := range batch.Sets {
		if q != "" && !strings.Contains(strings.ToLower(set.SiteID), q) {
			continue
		}
		entry, err := s.reviews.ReportEntry(c.UserContext(), set.SiteID)
		if err != nil {
			return err
		}
		out = append(out, siteSummary{
			SiteID:       set.SiteID,
			Damage:       len(set.DamagePhotos),
			Precondition: len(set.PreconditionPhotos),
			Completion:   len(set.CompletionPhotos),
			Total:        set.Total(),
			HasReference: set.ReferenceLocation != nil,
			Status:       entry.Status,
		})
	}
	return c.JSON(out)
}

type siteDetail struct {
	ingest.PhotoSet
	Approval      *review.Approval     `json:"approval,omitempty"`
	Report        review.ReportEntry   `json:"report"`
	Measurements  []review.Measurement `json:"measurements"`
	EstimatedCost float64              `json:"estimatedCost"`
}

func (s *Server) getSite(c *fiber.Ctx) error {
	set, err := s.site(c.Params("siteId"))
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	detail := siteDetail{PhotoSet: set}
	approval, err := s.reviews.Approval(ctx, set.SiteID)
	switch {
	case err == nil:
		detail.Approval = &approval
	case !errors.Is(err, review.ErrNotFound):
		return err
	}
	if detail.Report, err = s.reviews.ReportEntry(ctx, set.SiteID); err != nil {
		return err
	}
	if detail.Measurements, err = s.reviews.Measurements(ctx, set.SiteID); err != nil {
		return err
	}
	detail.EstimatedCost = review.EstimateCost(detail.Measurements)
	return c.JSON(detail)
}

func (s *Server) getMarkers(c *fiber.Ctx) error {
	set, err := s.site(c.Params("siteId"))
	if err != nil {
		return err
	}
	markers := mapview.Markers(set)
	geo, err := mapview.GeoJSON(markers)
	if err != nil {
		return err
	}
	resp := fiber.Map{
		"geojson":        json.RawMessage(geo),
		"withoutGps":     set.Total() - len(markers),
		"referencePoint": set.ReferenceLocation,
	}
	if b, ok := mapview.BoundsOf(markers); ok {
		resp["bounds"] = b
	}
	return c.JSON(resp)
}

type approvalInput struct {
	Status   review.ApprovalStatus `json:"status"`
	Comments *string               `json:"comments"`
}

func (s *Server) getApproval(c *fiber.Ctx) error {
	set, err := s.site(c.Params("siteId"))
	if err != nil {
		return err
	}
	a, err := s.reviews.Approval(c.UserContext(), set.SiteID)
	if err != nil {
		return fromReview(err)
	}
	return c.JSON(a)
}

// putApproval records a decision. A body with comments only updates the
// comments of the existing decision.
func (s *Server) putApproval(c *fiber.Ctx) error {
	set, err := s.site(c.Params("siteId"))
	if err != nil {
		return err
	}
	var input approvalInput
	if err := c.BodyParser(&input); err != nil {
		return badRequest("invalid request body")
	}

	var a review.Approval
	if input.Status == "" {
		if input.Comments == nil {
			return badRequest("status or comments is required")
		}
		a, err = s.reviews.UpdateApprovalComments(c.UserContext(), set.SiteID, *input.Comments)
	} else {
		var comments string
		if input.Comments != nil {
			comments = *input.Comments
		}
		a, err = s.reviews.SetApproval(c.UserContext(), set.SiteID, input.Status, comments)
	}
	if err != nil {
		return fromReview(err)
	}
	return c.JSON(a)
}

type statusInput struct {
	Status   review.ReportStatus `json:"status"`
	Comments *string             `json:"comments"`
}

func (s *Server) getStatus(c *fiber.Ctx) error {
	set, err := s.site(c.Params("siteId"))
	if err != nil {
		return err
	}
	e, err := s.reviews.ReportEntry(c.UserContext(), set.SiteID)
	if err != nil {
		return err
	}
	return c.JSON(e)
}

func (s *Server) putStatus(c *fiber.Ctx) error {
	set, err := s.site(c.Params("siteId"))
	if err != nil {
		return err
	}
	var input statusInput
	if err := c.BodyParser(&input); err != nil {
		return badRequest("invalid request body")
	}
	if input.Status == "" && input.Comments == nil {
		return badRequest("status or comments is required")
	}

	ctx := c.UserContext()
	var e review.ReportEntry
	if input.Status != "" {
		if e, err = s.reviews.SetReportStatus(ctx, set.SiteID, input.Status); err != nil {
			return fromReview(err)
		}
	}
	if input.Comments != nil {
		if e, err = s.reviews.SetReportComments(ctx, set.SiteID, *input.Comments); err != nil {
			return fromReview(err)
		}
	}
	return c.JSON(e)
}

func (s *Server) listMeasurements(c *fiber.Ctx) error {
	set, err := s.site(c.Params("siteId"))
	if err != nil {
		return err
	}
	ms, err := s.reviews.Measurements(c.UserContext(), set.SiteID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"measurements":  ms,
		"estimatedCost": review.EstimateCost(ms),
	})
}

func (s *Server) addMeasurement(c *fiber.Ctx) error {
	set, err := s.site(c.Params("siteId"))
	if err != nil {
		return err
	}
	var input review.Measurement
	if err := c.BodyParser(&input); err != nil {
		return badRequest("invalid request body")
	}
	m, err := s.reviews.AddMeasurement(c.UserContext(), set.SiteID, input)
	if err != nil {
		return fromReview(err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (s *Server) removeMeasurement(c *fiber.Ctx) error {
	set, err := s.site(c.Params("siteId"))
	if err != nil {
		return err
	}
	if err := s.reviews.RemoveMeasurement(c.UserContext(), set.SiteID, c.Params("id")); err != nil {
		return fromReview(err)
	}
	return c.Status(fiber.StatusNoContent).SendString("")
}

// sitePhoto checks that the named photo belongs to the site.
func (s *Server) sitePhoto(c *fiber.Ctx) (string, string, error) {
	set, err := s.site(c.Params("siteId"))
	if err != nil {
		return "", "", err
	}
	name := c.Params("name")
	for _, role := range []ingest.Role{ingest.RoleDamage, ingest.RolePrecondition, ingest.RoleCompletion} {
		for _, p := range set.Photos(role) {
			if p.Name == name {
				return set.SiteID, name, nil
			}
		}
	}
	return "", "", notFound(fmt.Sprintf("photo %s not found in site %s", name, set.SiteID))
}

func (s *Server) getAnnotations(c *fiber.Ctx) error {
	siteID, name, err := s.sitePhoto(c)
	if err != nil {
		return err
	}
	as, err := s.reviews.Annotations(c.UserContext(), siteID, name)
	if err != nil {
		return err
	}
	return c.JSON(as)
}

func (s *Server) putAnnotations(c *fiber.Ctx) error {
	siteID, name, err := s.sitePhoto(c)
	if err != nil {
		return err
	}
	var input []review.Annotation
	if err := c.BodyParser(&input); err != nil {
		return badRequest("invalid request body")
	}
	as, err := s.reviews.SetAnnotations(c.UserContext(), siteID, name, input)
	if err != nil {
		return fromReview(err)
	}
	return c.JSON(as)
}

func (s *Server) getAssessment(c *fiber.Ctx) error {
	set, err := s.site(c.Params("siteId"))
	if err != nil {
		return err
	}
	a, err := s.reviews.Assessment(c.UserContext(), set.SiteID)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (s *Server) putAssessment(c *fiber.Ctx) error {
	set, err := s.site(c.Params("siteId"))
	if err != nil {
		return err
	}
	var input review.Assessment
	if err := c.BodyParser(&input); err != nil {
		return badRequest("invalid request body")
	}
	a, err := s.reviews.SetAssessment(c.UserContext(), set.SiteID, input)
	if err != nil {
		return fromReview(err)
	}
	return c.JSON(fiber.Map{
		"assessment":      a,
		"totalRepairCost": a.TotalRepairCost(),
	})
}

func (s *Server) downloadReport(c *fiber.Ctx) error {
	_, batch := s.current()
	ids := make([]string, len(batch.Sets))
	for i, set := range batch.Sets {
		ids[i] = set.SiteID
	}
	entries, err := s.reviews.ReportEntries(c.UserContext(), ids)
	if err != nil {
		return err
	}

	now := s.now()
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, report.Build(batch.Sets, entries, c.Query("comments"), now)); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", report.FileName(now)))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	return c.Send(buf.Bytes())
}
