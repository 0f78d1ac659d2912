package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/electronjoe/DamageReview/internal/ingest"
	"github.com/electronjoe/DamageReview/internal/photo"
)

// ImageMetadata holds the metadata written for an image.
type ImageMetadata struct {
	Role      ingest.Role `json:"role"`
	Path      string      `json:"path"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	// DistanceMeters is the distance to the site's reference location, when there is one
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

// SiteMetadata is the content of a site's metadata.json.
type SiteMetadata struct {
	SiteID            string                   `json:"site_id"`
	ReferenceLocation *photo.Location          `json:"reference_location,omitempty"`
	Images            map[string]ImageMetadata `json:"images"`
}

func main() {
	rootDir := flag.String("root", "", "Root directory laid out as root/siteId/roleFolder/image")
	nearest := flag.Int("nearest", ingest.DefaultNearest, "Precondition/completion photos kept per site")
	flag.Parse()

	if *rootDir == "" {
		log.Fatal("Please provide a root directory using the --root flag")
	}

	uploads, err := ingest.LoadDir(*rootDir)
	if err != nil {
		log.Fatalf("Failed to read root directory: %v", err)
	}

	batch, err := ingest.New(photo.NewExtractor(nil), ingest.Options{Nearest: *nearest}).Run(context.Background(), uploads)
	if err != nil {
		log.Fatalf("Failed to ingest %s: %v", *rootDir, err)
	}
	if err := batch.Err(); err != nil {
		log.Fatalf("%v", err)
	}

	for _, set := range batch.Sets {
		siteDir := filepath.Join(*rootDir, set.SiteID)
		log.Printf("Processing site: %s", siteDir)
		writeSiteMetadata(siteDir, set)
	}
}

// writeSiteMetadata writes metadata.json into dir for every located photo of set.
func writeSiteMetadata(dir string, set ingest.PhotoSet) {
	meta := SiteMetadata{
		SiteID:            set.SiteID,
		ReferenceLocation: set.ReferenceLocation,
		Images:            make(map[string]ImageMetadata),
	}
	for _, role := range []ingest.Role{ingest.RoleDamage, ingest.RolePrecondition, ingest.RoleCompletion} {
		for _, p := range set.Photos(role) {
			if !p.HasLocation() {
				continue
			}
			im := ImageMetadata{
				Role:      role,
				Path:      p.Path,
				Latitude:  p.Location.Latitude,
				Longitude: p.Location.Longitude,
			}
			if set.ReferenceLocation != nil {
				d := photo.Distance(*set.ReferenceLocation, *p.Location)
				im.DistanceMeters = &d
			}
			// Key by path below the site; names can repeat across role folders
			meta.Images[sitePath(p.Path)] = im
		}
	}

	jsonPath := filepath.Join(dir, "metadata.json")
	jsonData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		log.Printf("Failed to marshal JSON for site %s: %v", set.SiteID, err)
		return
	}
	if err := os.WriteFile(jsonPath, jsonData, 0644); err != nil {
		log.Printf("Failed to write JSON file %s: %v", jsonPath, err)
		return
	}

	log.Printf("Wrote metadata file: %s (%d located images)", jsonPath, len(meta.Images))
}

// sitePath drops the root and site segments of root/siteId/roleFolder/file.
func sitePath(relPath string) string {
	parts := strings.SplitN(relPath, "/", 3)
	if len(parts) < 3 {
		return relPath
	}
	return parts[2]
}
