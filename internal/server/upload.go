package server

import (
	"errors"
	"io"
	"mime/multipart"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/electronjoe/DamageReview/internal/ingest"
)

// formFile is an uploaded multipart file.
type formFile struct {
	header  *multipart.FileHeader
	name    string
	modTime time.Time
}

func (f formFile) Name() string                 { return f.name }
func (f formFile) ModTime() time.Time           { return f.modTime }
func (f formFile) Open() (io.ReadCloser, error) { return f.header.Open() }

// uploadsFromForm reads the "files" parts of a batch upload. Browsers and
// the multipart reader drop directories from file names, so the relative
// path of each file is taken from the parallel "paths" field when given.
// "modTimes" optionally carries each file's mtime in epoch milliseconds.
func uploadsFromForm(form *multipart.Form) ([]ingest.Upload, error) {
	files := form.File["files"]
	if len(files) == 0 {
		return nil, badRequest("no files in upload")
	}
	paths := form.Value["paths"]
	if len(paths) > 0 && len(paths) != len(files) {
		return nil, badRequest("paths must list one entry per file")
	}
	modTimes := form.Value["modTimes"]
	if len(modTimes) > 0 && len(modTimes) != len(files) {
		return nil, badRequest("modTimes must list one entry per file")
	}

	uploads := make([]ingest.Upload, 0, len(files))
	for i, fh := range files {
		relPath := fh.Filename
		if len(paths) > 0 {
			relPath = paths[i]
		}
		relPath = strings.TrimPrefix(strings.ReplaceAll(relPath, "\\", "/"), "/")

		var modTime time.Time
		if len(modTimes) > 0 && modTimes[i] != "" {
			ms, err := strconv.ParseInt(modTimes[i], 10, 64)
			if err != nil {
				return nil, badRequest("invalid modTimes entry " + strconv.Quote(modTimes[i]))
			}
			modTime = time.UnixMilli(ms).UTC()
		}

		mimeType := fh.Header.Get(fiber.HeaderContentType)
		if mimeType == "" || mimeType == fiber.MIMEOctetStream {
			mimeType = ingest.MIMEType(relPath)
		}

		uploads = append(uploads, ingest.Upload{
			File:     formFile{header: fh, name: path.Base(relPath), modTime: modTime},
			Path:     relPath,
			MIMEType: mimeType,
		})
	}
	return uploads, nil
}

func (s *Server) createBatch(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest("expected multipart form: " + err.Error())
	}
	uploads, err := uploadsFromForm(form)
	if err != nil {
		return err
	}

	batchID := newBatchID()
	in := s.ingester
	if s.opts.Publishers != nil {
		if p := s.opts.Publishers(batchID); p != nil {
			in = in.WithPublisher(p)
		}
	}

	batch, err := in.Run(c.UserContext(), uploads)
	if err != nil {
		return err
	}
	if err := batch.Err(); err != nil {
		if errors.Is(err, ingest.ErrNoValidStructure) {
			return &apiError{
				status:  fiber.StatusUnprocessableEntity,
				code:    "NO_VALID_STRUCTURE",
				message: err.Error(),
			}
		}
		return err
	}

	s.mu.Lock()
	s.batchID = batchID
	s.batch = batch
	s.mu.Unlock()

	return c.Status(fiber.StatusCreated).JSON(batchResponse{BatchID: batchID, Batch: batch})
}

type batchResponse struct {
	BatchID string `json:"batchId"`
	ingest.Batch
}
