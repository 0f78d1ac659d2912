package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service reads and writes review state for sites through a Store.
// Updates to the same key are serialized within the process; a store is
// owned by one server process.
type Service struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now, locks: make(map[string]*sync.Mutex)}
}

func approvalKey(siteID string) string     { return "approval_" + siteID }
func reportKey(siteID string) string       { return "report_" + siteID }
func measurementsKey(siteID string) string { return "measurements_" + siteID }
func assessmentKey(siteID string) string   { return "assessment_" + siteID }

// Site ids and photo names are single path segments, so "/" cannot be
// part of either.
func annotationsKey(siteID, photo string) string {
	return "annotations_" + siteID + "/" + photo
}

// lock holds the mutex for key until the returned func is called.
func (s *Service) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) load(ctx context.Context, key string, v any) error {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Approval returns ErrNotFound when the site has not been reviewed.
func (s *Service) Approval(ctx context.Context, siteID string) (Approval, error) {
	var a Approval
	err := s.load(ctx, approvalKey(siteID), &a)
	return a, err
}

func (s *Service) SetApproval(ctx context.Context, siteID string, status ApprovalStatus, comments string) (Approval, error) {
	if !status.Valid() {
		return Approval{}, fmt.Errorf("%w: approval status %q", ErrInvalid, status)
	}
	a := Approval{Status: status, Comments: comments, UpdatedAt: s.now()}
	defer s.lock(approvalKey(siteID))()
	if err := s.save(ctx, approvalKey(siteID), a); err != nil {
		return Approval{}, err
	}
	return a, nil
}

// UpdateApprovalComments changes the comments of an existing approval.
func (s *Service) UpdateApprovalComments(ctx context.Context, siteID, comments string) (Approval, error) {
	defer s.lock(approvalKey(siteID))()
	a, err := s.Approval(ctx, siteID)
	if err != nil {
		return Approval{}, err
	}
	a.Comments = comments
	a.UpdatedAt = s.now()
	if err := s.save(ctx, approvalKey(siteID), a); err != nil {
		return Approval{}, err
	}
	return a, nil
}

// ReportEntry returns the site's report line; sites never touched are pending.
func (s *Service) ReportEntry(ctx context.Context, siteID string) (ReportEntry, error) {
	e := ReportEntry{SiteID: siteID, Status: StatusPending}
	err := s.load(ctx, reportKey(siteID), &e)
	if errors.Is(err, ErrNotFound) {
		return ReportEntry{SiteID: siteID, Status: StatusPending}, nil
	}
	return e, err
}

// ReportEntries returns the report line of every listed site.
func (s *Service) ReportEntries(ctx context.Context, siteIDs []string) (map[string]ReportEntry, error) {
	out := make(map[string]ReportEntry, len(siteIDs))
	for _, id := range siteIDs {
		e, err := s.ReportEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = e
	}
	return out, nil
}

func (s *Service) SetReportStatus(ctx context.Context, siteID string, status ReportStatus) (ReportEntry, error) {
	if !status.Valid() {
		return ReportEntry{}, fmt.Errorf("%w: report status %q", ErrInvalid, status)
	}
	defer s.lock(reportKey(siteID))()
	e, err := s.ReportEntry(ctx, siteID)
	if err != nil {
		return ReportEntry{}, err
	}
	e.Status = status
	return e, s.save(ctx, reportKey(siteID), e)
}

func (s *Service) SetReportComments(ctx context.Context, siteID, comments string) (ReportEntry, error) {
	defer s.lock(reportKey(siteID))()
	e, err := s.ReportEntry(ctx, siteID)
	if err != nil {
		return ReportEntry{}, err
	}
	e.Comments = comments
	return e, s.save(ctx, reportKey(siteID), e)
}

// Measurements returns the site's measurements in the order they were added.
func (s *Service) Measurements(ctx context.Context, siteID string) ([]Measurement, error) {
	var ms []Measurement
	err := s.load(ctx, measurementsKey(siteID), &ms)
	if errors.Is(err, ErrNotFound) {
		return []Measurement{}, nil
	}
	return ms, err
}

// AddMeasurement validates m, assigns it an id and appends it. Type
// defaults to distance and unit to meters.
func (s *Service) AddMeasurement(ctx context.Context, siteID string, m Measurement) (Measurement, error) {
	if m.Value <= 0 {
		return Measurement{}, fmt.Errorf("%w: measurement value must be positive", ErrInvalid)
	}
	if strings.TrimSpace(m.Description) == "" {
		return Measurement{}, fmt.Errorf("%w: measurement description is required", ErrInvalid)
	}
	if m.Type == "" {
		m.Type = MeasureDistance
	}
	if _, ok := costPerUnit[m.Type]; !ok {
		return Measurement{}, fmt.Errorf("%w: measurement type %q", ErrInvalid, m.Type)
	}
	if m.Unit == "" {
		m.Unit = "m"
	}
	m.ID = uuid.NewString()

	defer s.lock(measurementsKey(siteID))()
	ms, err := s.Measurements(ctx, siteID)
	if err != nil {
		return Measurement{}, err
	}
	ms = append(ms, m)
	if err := s.save(ctx, measurementsKey(siteID), ms); err != nil {
		return Measurement{}, err
	}
	return m, nil
}

func (s *Service) RemoveMeasurement(ctx context.Context, siteID, id string) error {
	defer s.lock(measurementsKey(siteID))()
	ms, err := s.Measurements(ctx, siteID)
	if err != nil {
		return err
	}
	kept := ms[:0]
	for _, m := range ms {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(ms) {
		return fmt.Errorf("measurement %s: %w", id, ErrNotFound)
	}
	if len(kept) == 0 {
		return s.store.Delete(ctx, measurementsKey(siteID))
	}
	return s.save(ctx, measurementsKey(siteID), kept)
}

// Annotations returns the shapes drawn on one photo of a site.
func (s *Service) Annotations(ctx context.Context, siteID, photo string) ([]Annotation, error) {
	var as []Annotation
	err := s.load(ctx, annotationsKey(siteID, photo), &as)
	if errors.Is(err, ErrNotFound) {
		return []Annotation{}, nil
	}
	return as, err
}

// SetAnnotations replaces the annotations of a photo. Annotations without
// an id get one.
func (s *Service) SetAnnotations(ctx context.Context, siteID, photo string, as []Annotation) ([]Annotation, error) {
	out := make([]Annotation, len(as))
	for i, a := range as {
		if !a.Type.Valid() {
			return nil, fmt.Errorf("%w: annotation type %q", ErrInvalid, a.Type)
		}
		if len(a.Points)%2 != 0 {
			return nil, fmt.Errorf("%w: annotation points must be x,y pairs", ErrInvalid)
		}
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		out[i] = a
	}

	defer s.lock(annotationsKey(siteID, photo))()
	if len(out) == 0 {
		return out, s.store.Delete(ctx, annotationsKey(siteID, photo))
	}
	return out, s.save(ctx, annotationsKey(siteID, photo), out)
}

// Assessment returns the site's assessment, or a blank one with defaults
// when none has been saved.
func (s *Service) Assessment(ctx context.Context, siteID string) (Assessment, error) {
	var a Assessment
	err := s.load(ctx, assessmentKey(siteID), &a)
	if errors.Is(err, ErrNotFound) {
		return NewAssessment(siteID, s.now()), nil
	}
	return a, err
}

// SetAssessment validates and stores a. Missing choices take their
// defaults and repair totals are recomputed from their parts.
func (s *Service) SetAssessment(ctx context.Context, siteID string, a Assessment) (Assessment, error) {
	if err := a.normalize(siteID, s.now()); err != nil {
		return Assessment{}, err
	}
	defer s.lock(assessmentKey(siteID))()
	if err := s.save(ctx, assessmentKey(siteID), a); err != nil {
		return Assessment{}, err
	}
	return a, nil
}
