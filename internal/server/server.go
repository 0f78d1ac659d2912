// Package server exposes ingestion and review over HTTP.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/electronjoe/DamageReview/internal/ingest"
	"github.com/electronjoe/DamageReview/internal/review"
)

// PublisherFunc returns the preview publisher for a new batch, or nil to
// leave previews unset.
type PublisherFunc func(batchID string) ingest.Publisher

type Options struct {
	// BodyLimit is the largest accepted request body in bytes.
	BodyLimit  int
	Publishers PublisherFunc
}

// Server holds the current batch. Uploading a new batch replaces it;
// review state lives in the review store and survives the replacement.
type Server struct {
	ingester *ingest.Ingester
	reviews  *review.Service
	opts     Options
	now      func() time.Time

	mu      sync.RWMutex
	batchID string
	batch   ingest.Batch
}

func New(ingester *ingest.Ingester, reviews *review.Service, opts Options) *Server {
	return &Server{
		ingester: ingester,
		reviews:  reviews,
		opts:     opts,
		now:      time.Now,
	}
}

// SetBatch replaces the current batch, e.g. with one loaded from disk.
func (s *Server) SetBatch(batch ingest.Batch) string {
	id := newBatchID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchID = id
	s.batch = batch
	return id
}

func (s *Server) current() (string, ingest.Batch) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batchID, s.batch
}

func (s *Server) site(siteID string) (ingest.PhotoSet, error) {
	_, batch := s.current()
	set, ok := batch.Site(siteID)
	if !ok {
		return ingest.PhotoSet{}, notFound("site " + siteID + " not found")
	}
	return set, nil
}

// App builds the fiber application with all routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
		BodyLimit:    s.opts.BodyLimit,
		UnescapePath: true,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health"
		},
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Post("/batches", s.createBatch)
	api.Get("/report", s.downloadReport)

	sites := api.Group("/sites")
	sites.Get("/", s.listSites)
	sites.Get("/:siteId", s.getSite)
	sites.Get("/:siteId/markers", s.getMarkers)
	sites.Get("/:siteId/approval", s.getApproval)
	sites.Put("/:siteId/approval", s.putApproval)
	sites.Get("/:siteId/status", s.getStatus)
	sites.Put("/:siteId/status", s.putStatus)
	sites.Get("/:siteId/assessment", s.getAssessment)
	sites.Put("/:siteId/assessment", s.putAssessment)
	sites.Get("/:siteId/measurements", s.listMeasurements)
	sites.Post("/:siteId/measurements", s.addMeasurement)
	sites.Delete("/:siteId/measurements/:id", s.removeMeasurement)
	sites.Get("/:siteId/photos/:name/annotations", s.getAnnotations)
	sites.Put("/:siteId/photos/:name/annotations", s.putAnnotations)

	return app
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	app := s.App()
	errc := make(chan error, 1)
	go func() { errc <- app.Listen(addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return app.ShutdownWithTimeout(5 * time.Second)
	}
}
