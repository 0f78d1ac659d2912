package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/electronjoe/DamageReview/internal/photo"
)

// ErrNoValidStructure is reported when a batch produced no sites at all.
var ErrNoValidStructure = errors.New("no valid folder structure found: expected root/siteId/roleFolder/image")

// Upload is one file of a batch together with its relative path
// (root/siteId/roleFolder/filename) and MIME type.
type Upload struct {
	File     photo.File
	Path     string
	MIMEType string
}

// Extractor reads metadata from one file.
type Extractor interface {
	Extract(f photo.File) photo.Result
}

// Publisher produces a display URI for an uploaded file.
type Publisher interface {
	Publish(ctx context.Context, up Upload) (string, error)
}

// PhotoSet groups the photos of one damage site.
type PhotoSet struct {
	SiteID             string          `json:"siteId"`
	DamagePhotos       []photo.Record  `json:"damagePhotos"`
	PreconditionPhotos []photo.Record  `json:"preconditionPhotos"`
	CompletionPhotos   []photo.Record  `json:"completionPhotos"`
	ReferenceLocation  *photo.Location `json:"referenceLocation,omitempty"`
}

// Photos returns the set's photos for role.
func (s PhotoSet) Photos(role Role) []photo.Record {
	switch role {
	case RolePrecondition:
		return s.PreconditionPhotos
	case RoleCompletion:
		return s.CompletionPhotos
	default:
		return s.DamagePhotos
	}
}

// Total is the number of photos across all roles.
func (s PhotoSet) Total() int {
	return len(s.DamagePhotos) + len(s.PreconditionPhotos) + len(s.CompletionPhotos)
}

// Skip records a file left out of a batch and why.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Batch is the result of one ingestion run.
type Batch struct {
	Sets     []PhotoSet `json:"sets"`
	Skipped  []Skip     `json:"skipped,omitempty"`
	Warnings int        `json:"warnings"`
}

// Err returns ErrNoValidStructure when the batch holds no sites.
func (b Batch) Err() error {
	if len(b.Sets) == 0 {
		return ErrNoValidStructure
	}
	return nil
}

// Site looks up a set by id.
func (b Batch) Site(siteID string) (PhotoSet, bool) {
	for _, s := range b.Sets {
		if s.SiteID == siteID {
			return s, true
		}
	}
	return PhotoSet{}, false
}

// Options tune an Ingester. Zero values select defaults.
type Options struct {
	Nearest   int
	Workers   int
	Locale    language.Tag
	Publisher Publisher
}

// Ingester turns a batch of uploads into photo sets.
type Ingester struct {
	extractor Extractor
	opts      Options
}

func New(extractor Extractor, opts Options) *Ingester {
	if opts.Nearest <= 0 {
		opts.Nearest = DefaultNearest
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Ingester{extractor: extractor, opts: opts}
}

// WithPublisher returns a copy of the Ingester publishing previews through p.
func (in *Ingester) WithPublisher(p Publisher) *Ingester {
	cp := *in
	cp.opts.Publisher = p
	return &cp
}

type candidate struct {
	up     Upload
	siteID string
	role   Role
}

// Run ingests uploads. Per-file problems never fail the run; the only
// error is the context being cancelled.
func (in *Ingester) Run(ctx context.Context, uploads []Upload) (Batch, error) {
	var batch Batch

	// 1) Filter and classify by path
	var candidates []candidate
	for _, up := range uploads {
		if !strings.HasPrefix(up.MIMEType, "image/") {
			continue
		}
		parts := strings.Split(up.Path, "/")
		if len(parts) < 3 {
			log.Printf("Warning: skipping file with unexpected path structure: %s", up.Path)
			batch.Skipped = append(batch.Skipped, Skip{Path: up.Path, Reason: "expected root/siteId/roleFolder/file"})
			continue
		}
		if parts[1] == "" {
			log.Printf("Warning: skipping file with empty site id: %s", up.Path)
			batch.Skipped = append(batch.Skipped, Skip{Path: up.Path, Reason: "empty site id"})
			continue
		}
		candidates = append(candidates, candidate{up: up, siteID: parts[1], role: Classify(parts[2])})
	}

	// 2) Extract every file independently, then wait for all of them
	records := make([]photo.Record, len(candidates))
	warned := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.opts.Workers)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := in.extractor.Extract(c.up.File)
			if res.Warning != nil {
				log.Printf("Warning: could not extract metadata for %s: %v", c.up.Path, res.Warning)
				warned[i] = true
			}
			rec := res.Record
			rec.Path = c.up.Path
			if in.opts.Publisher != nil {
				uri, err := in.opts.Publisher.Publish(gctx, c.up)
				if err != nil {
					log.Printf("Warning: could not publish preview for %s: %v", c.up.Path, err)
					warned[i] = true
				}
				rec.PreviewURI = uri
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, fmt.Errorf("extract metadata: %w", err)
	}
	for _, w := range warned {
		if w {
			batch.Warnings++
		}
	}

	// 3) Group by site, keeping encounter order
	type buckets struct {
		damage, precondition, completion []photo.Record
	}
	bySite := make(map[string]*buckets)
	var order []string
	for i, c := range candidates {
		b, ok := bySite[c.siteID]
		if !ok {
			b = &buckets{}
			bySite[c.siteID] = b
			order = append(order, c.siteID)
		}
		switch c.role {
		case RolePrecondition:
			b.precondition = append(b.precondition, records[i])
		case RoleCompletion:
			b.completion = append(b.completion, records[i])
		default:
			b.damage = append(b.damage, records[i])
		}
	}

	// 4) Trim precondition/completion around the first located damage photo
	for _, siteID := range order {
		b := bySite[siteID]
		set := PhotoSet{
			SiteID:             siteID,
			DamagePhotos:       b.damage,
			PreconditionPhotos: b.precondition,
			CompletionPhotos:   b.completion,
		}
		for _, p := range b.damage {
			if p.HasLocation() {
				ref := *p.Location
				set.ReferenceLocation = &ref
				break
			}
		}
		if set.ReferenceLocation != nil {
			set.PreconditionPhotos = Nearest(b.precondition, *set.ReferenceLocation, in.opts.Nearest)
			set.CompletionPhotos = Nearest(b.completion, *set.ReferenceLocation, in.opts.Nearest)
		}
		batch.Sets = append(batch.Sets, set)
	}

	// 5) Sort sites with the configured collation
	col := collate.New(in.opts.Locale)
	sort.SliceStable(batch.Sets, func(i, j int) bool {
		return col.CompareString(batch.Sets[i].SiteID, batch.Sets[j].SiteID) < 0
	})

	return batch, nil
}
