package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electronjoe/DamageReview/internal/ingest"
	"github.com/electronjoe/DamageReview/internal/photo"
)

func TestSitePath(t *testing.T) {
	assert.Equal(t, "Damage/a.jpg", sitePath("root/S1/Damage/a.jpg"))
	assert.Equal(t, "Damage/sub/a.jpg", sitePath("root/S1/Damage/sub/a.jpg"))
	assert.Equal(t, "root/a.jpg", sitePath("root/a.jpg"))
}

func TestWriteSiteMetadata(t *testing.T) {
	dir := t.TempDir()
	ref := photo.Location{Latitude: 10, Longitude: 10}
	near := photo.Location{Latitude: 10, Longitude: 10.001}
	set := ingest.PhotoSet{
		SiteID:            "S1",
		ReferenceLocation: &ref,
		DamagePhotos: []photo.Record{
			{Name: "a.jpg", Path: "root/S1/Damage/a.jpg", Location: &ref},
			{Name: "nogps.jpg", Path: "root/S1/Damage/nogps.jpg"},
		},
		PreconditionPhotos: []photo.Record{
			{Name: "a.jpg", Path: "root/S1/Before/a.jpg", Location: &near},
		},
	}

	writeSiteMetadata(dir, set)

	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	require.NoError(t, err)
	var meta SiteMetadata
	require.NoError(t, json.Unmarshal(data, &meta))

	assert.Equal(t, "S1", meta.SiteID)
	require.Len(t, meta.Images, 2)
	assert.Equal(t, ingest.RoleDamage, meta.Images["Damage/a.jpg"].Role)
	require.NotNil(t, meta.Images["Damage/a.jpg"].DistanceMeters)
	assert.Zero(t, *meta.Images["Damage/a.jpg"].DistanceMeters)

	pre := meta.Images["Before/a.jpg"]
	assert.Equal(t, ingest.RolePrecondition, pre.Role)
	require.NotNil(t, pre.DistanceMeters)
	assert.InDelta(t, 109.5, *pre.DistanceMeters, 0.5)
}
