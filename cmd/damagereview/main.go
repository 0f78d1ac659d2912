package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/electronjoe/DamageReview/internal/config"
	"github.com/electronjoe/DamageReview/internal/ingest"
	"github.com/electronjoe/DamageReview/internal/photo"
	"github.com/electronjoe/DamageReview/internal/preview"
	"github.com/electronjoe/DamageReview/internal/report"
	"github.com/electronjoe/DamageReview/internal/review"
	"github.com/electronjoe/DamageReview/internal/server"
)

func main() {
	err := run(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal(err)
	}
}

// run returns instead of exiting so deferred cleanup always happens.
func run(args []string) error {
	fs := flag.NewFlagSet("damagereview", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config.json (default ~/.damagereview/config.json)")
	dir := fs.String("dir", "", "Root folder laid out as root/siteId/roleFolder/image")
	asJSON := fs.Bool("json", false, "Print the ingested batch as JSON")
	reportPath := fs.String("report", "", "Write the assessment spreadsheet to this file")
	comments := fs.String("comments", "", "Global comments for the report summary row")
	serve := fs.Bool("serve", false, "Start the HTTP API")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *dir == "" && !*serve {
		fs.Usage()
		return errors.New("one of --dir or --serve is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Read config
	cfg, err := config.Read(*configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	// 2. Open review state
	store, closer, err := review.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open review store: %w", err)
	}
	defer func() {
		if err := closer.Close(); err != nil {
			log.Printf("Warning: failed to close review store: %v", err)
		}
	}()
	reviews := review.NewService(store)

	// 3. Metadata cache
	var cache *photo.Cache
	if cfg.CacheMetadata {
		cache = loadCache()
	}

	ingester := ingest.New(photo.NewExtractor(cache), ingest.Options{
		Nearest: cfg.NearestLimit,
		Workers: cfg.Workers,
		Locale:  cfg.LanguageTag(),
	})

	// 4. Ingest the local tree
	var batch ingest.Batch
	if *dir != "" {
		batch, err = ingestDir(ctx, ingester, cache, *dir)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", *dir, err)
		}
		if err := batch.Err(); err != nil && !*serve {
			return err
		}
		if *asJSON {
			if err := printJSON(batch); err != nil {
				return fmt.Errorf("encode batch: %w", err)
			}
		} else {
			printSummary(batch)
		}
	}

	// 5. Export the spreadsheet
	if *reportPath != "" {
		if err := writeReport(ctx, reviews, batch, *reportPath, *comments); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Printf("Wrote report: %s", *reportPath)
	}

	if !*serve {
		return nil
	}

	// 6. Serve the API
	publishers, err := previewPublishers(ctx, cfg)
	if err != nil {
		return fmt.Errorf("set up previews: %w", err)
	}
	srv := server.New(ingester, reviews, server.Options{
		BodyLimit:  cfg.UploadLimitMB * 1024 * 1024,
		Publishers: publishers,
	})
	if len(batch.Sets) > 0 {
		srv.SetBatch(batch)
	}

	log.Printf("Server starting on %s", cfg.ListenAddr)
	if err := srv.Run(ctx, cfg.ListenAddr); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

func loadCache() *photo.Cache {
	path, err := photo.DefaultCachePath()
	if err != nil {
		log.Printf("Warning: metadata cache disabled: %v", err)
		return nil
	}
	cache, err := photo.LoadCache(path)
	if err != nil {
		log.Printf("Warning: failed to load metadata cache: %v", err)
		return nil
	}
	return cache
}

func ingestDir(ctx context.Context, in *ingest.Ingester, cache *photo.Cache, dir string) (ingest.Batch, error) {
	uploads, err := ingest.LoadDir(dir)
	if err != nil {
		return ingest.Batch{}, err
	}

	batch, err := in.WithPublisher(preview.FileURIs{}).Run(ctx, uploads)
	if err != nil {
		return ingest.Batch{}, err
	}

	if cache != nil {
		cache.Prune(ingest.DiskPaths(uploads))
		if err := cache.Save(); err != nil {
			log.Printf("Warning: failed to save metadata cache: %v", err)
		}
	}
	return batch, nil
}

func printJSON(batch ingest.Batch) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(batch)
}

func printSummary(batch ingest.Batch) {
	for _, set := range batch.Sets {
		ref := "no reference location"
		if set.ReferenceLocation != nil {
			ref = fmt.Sprintf("reference %.6f, %.6f", set.ReferenceLocation.Latitude, set.ReferenceLocation.Longitude)
		}
		fmt.Printf("%s: %d damage, %d precondition, %d completion (%s)\n",
			set.SiteID, len(set.DamagePhotos), len(set.PreconditionPhotos), len(set.CompletionPhotos), ref)
	}
	fmt.Printf("%d sites, %d skipped files, %d metadata warnings\n", len(batch.Sets), len(batch.Skipped), batch.Warnings)
}

func writeReport(ctx context.Context, reviews *review.Service, batch ingest.Batch, path, comments string) error {
	ids := make([]string, len(batch.Sets))
	for i, set := range batch.Sets {
		ids[i] = set.SiteID
	}
	entries, err := reviews.ReportEntries(ctx, ids)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteXLSX(f, report.Build(batch.Sets, entries, comments, time.Now())); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// previewPublishers returns the publisher factory for uploaded batches.
// Uploaded files have no local path, so without MinIO previews stay unset.
func previewPublishers(ctx context.Context, cfg config.Config) (server.PublisherFunc, error) {
	switch cfg.Preview.Backend {
	case "minio":
		m, err := preview.NewMinIO(ctx, cfg.Preview)
		if err != nil {
			return nil, err
		}
		return func(batchID string) ingest.Publisher { return m.ForBatch(batchID) }, nil
	case "file":
		return nil, nil
	}
	return nil, errors.New("unknown preview backend " + cfg.Preview.Backend)
}
