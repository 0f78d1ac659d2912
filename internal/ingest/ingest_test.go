package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electronjoe/DamageReview/internal/photo"
)

var modTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// fakeExtractor serves locations by file name.
type fakeExtractor struct {
	locations map[string]photo.Location
	broken    map[string]bool
}

func (f fakeExtractor) Extract(file photo.File) photo.Result {
	rec := photo.Record{Source: file, Name: file.Name(), CapturedAt: file.ModTime()}
	if f.broken[file.Name()] {
		return photo.Result{Record: rec, Warning: errors.New("corrupt")}
	}
	if loc, ok := f.locations[file.Name()]; ok {
		rec.Location = &loc
	}
	return photo.Result{Record: rec}
}

func upload(path string) Upload {
	return Upload{
		File:     photo.NewMemoryFile(path[strings.LastIndex(path, "/")+1:], nil, modTime),
		Path:     path,
		MIMEType: "image/jpeg",
	}
}

func names(recs []photo.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name
	}
	return out
}

func siteIDs(sets []PhotoSet) []string {
	out := make([]string, len(sets))
	for i, s := range sets {
		out[i] = s.SiteID
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		folder string
		want   Role
	}{
		{"Damage", RoleDamage},
		{"damage-precondition", RoleDamage},
		{"precondition-damage", RoleDamage},
		{"Precondition", RolePrecondition},
		{"BEFORE works", RolePrecondition},
		{"before-and-after", RolePrecondition},
		{"Completion", RoleCompletion},
		{"after", RoleCompletion},
		{"misc", RoleDamage},
		{"", RoleDamage},
	}
	for _, tt := range tests {
		t.Run(tt.folder, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.folder))
		})
	}
}

func TestRunScenario(t *testing.T) {
	ext := fakeExtractor{locations: map[string]photo.Location{
		"a.jpg":  {Latitude: 10, Longitude: 10},
		"p1.jpg": {Latitude: 10, Longitude: 10.001},
	}}
	uploads := []Upload{
		upload("root/Site002/damage/b.jpg"),
		upload("root/Site001/Damage/a.jpg"),
		upload("root/Site001/Precondition/p2.jpg"),
		upload("root/Site001/Precondition/p1.jpg"),
	}

	batch, err := New(ext, Options{}).Run(context.Background(), uploads)

	require.NoError(t, err)
	require.NoError(t, batch.Err())
	require.Equal(t, []string{"Site001", "Site002"}, siteIDs(batch.Sets))

	site1 := batch.Sets[0]
	require.NotNil(t, site1.ReferenceLocation)
	assert.Equal(t, photo.Location{Latitude: 10, Longitude: 10}, *site1.ReferenceLocation)
	assert.Equal(t, []string{"a.jpg"}, names(site1.DamagePhotos))
	assert.Equal(t, []string{"p1.jpg", "p2.jpg"}, names(site1.PreconditionPhotos))
	assert.Empty(t, site1.CompletionPhotos)
	assert.Equal(t, "root/Site001/Precondition/p1.jpg", site1.PreconditionPhotos[0].Path)

	site2 := batch.Sets[1]
	assert.Nil(t, site2.ReferenceLocation)
	assert.Equal(t, []string{"b.jpg"}, names(site2.DamagePhotos))
}

func TestRunCapsEachRole(t *testing.T) {
	locs := map[string]photo.Location{"ref.jpg": {Latitude: 0, Longitude: 1}}
	uploads := []Upload{upload("r/S/damage/ref.jpg")}
	// 15 located photos per role, further away as i grows, added far-to-near
	for i := 14; i >= 0; i-- {
		pre := fmt.Sprintf("pre%02d.jpg", i)
		post := fmt.Sprintf("post%02d.jpg", i)
		locs[pre] = photo.Location{Latitude: 0.001 * float64(i+1), Longitude: 1}
		locs[post] = photo.Location{Latitude: -0.001 * float64(i+1), Longitude: 1}
		uploads = append(uploads, upload("r/S/before/"+pre), upload("r/S/after/"+post))
	}
	for i := 0; i < 3; i++ {
		uploads = append(uploads,
			upload(fmt.Sprintf("r/S/before/nogps-pre%d.jpg", i)),
			upload(fmt.Sprintf("r/S/after/nogps-post%d.jpg", i)))
	}

	batch, err := New(fakeExtractor{locations: locs}, Options{}).Run(context.Background(), uploads)
	require.NoError(t, err)
	require.Len(t, batch.Sets, 1)
	set := batch.Sets[0]

	for _, role := range []Role{RolePrecondition, RoleCompletion} {
		got := set.Photos(role)
		require.Len(t, got, DefaultNearest+3, role)

		ref := *set.ReferenceLocation
		prev := -1.0
		for _, p := range got[:DefaultNearest] {
			require.NotNil(t, p.Location)
			d := photo.Distance(ref, *p.Location)
			assert.GreaterOrEqual(t, d, prev, "distances must not decrease")
			prev = d
		}
		for i, p := range got[DefaultNearest:] {
			assert.Nil(t, p.Location)
			assert.Contains(t, p.Name, fmt.Sprintf("nogps-%s%d", map[Role]string{RolePrecondition: "pre", RoleCompletion: "post"}[role], i))
		}
	}
	assert.Equal(t, "pre00.jpg", set.PreconditionPhotos[0].Name)
	assert.Equal(t, "pre09.jpg", set.PreconditionPhotos[9].Name)
}

func TestRunKeepsSmallBuckets(t *testing.T) {
	locs := map[string]photo.Location{
		"d.jpg":  {Latitude: 5, Longitude: 5},
		"c1.jpg": {Latitude: 5.002, Longitude: 5},
		"c2.jpg": {Latitude: 5.001, Longitude: 5},
	}
	uploads := []Upload{
		upload("r/S/damage/d.jpg"),
		upload("r/S/completion/c0.jpg"),
		upload("r/S/completion/c1.jpg"),
		upload("r/S/completion/c2.jpg"),
	}

	batch, err := New(fakeExtractor{locations: locs}, Options{}).Run(context.Background(), uploads)

	require.NoError(t, err)
	assert.Equal(t, []string{"c2.jpg", "c1.jpg", "c0.jpg"}, names(batch.Sets[0].CompletionPhotos))
}

func TestRunWithoutReferenceDoesNotTrim(t *testing.T) {
	locs := map[string]photo.Location{}
	uploads := []Upload{upload("r/S/damage/d.jpg")}
	var want []string
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("p%02d.jpg", i)
		if i%2 == 0 {
			locs[name] = photo.Location{Latitude: float64(12 - i), Longitude: 3}
		}
		uploads = append(uploads, upload("r/S/precondition/"+name))
		want = append(want, name)
	}

	batch, err := New(fakeExtractor{locations: locs}, Options{}).Run(context.Background(), uploads)

	require.NoError(t, err)
	set := batch.Sets[0]
	assert.Nil(t, set.ReferenceLocation)
	assert.Equal(t, want, names(set.PreconditionPhotos))
}

func TestRunReferenceIsFirstLocatedDamagePhoto(t *testing.T) {
	locs := map[string]photo.Location{
		"d2.jpg": {Latitude: 1, Longitude: 1},
		"d3.jpg": {Latitude: 2, Longitude: 2},
	}
	uploads := []Upload{
		upload("r/S/damage/d1.jpg"),
		upload("r/S/damage/d2.jpg"),
		upload("r/S/damage/d3.jpg"),
	}

	batch, err := New(fakeExtractor{locations: locs}, Options{}).Run(context.Background(), uploads)

	require.NoError(t, err)
	set := batch.Sets[0]
	assert.Equal(t, photo.Location{Latitude: 1, Longitude: 1}, *set.ReferenceLocation)
	assert.Equal(t, []string{"d1.jpg", "d2.jpg", "d3.jpg"}, names(set.DamagePhotos))
}

func TestNearestIsStableForTies(t *testing.T) {
	ref := photo.Location{Latitude: 0, Longitude: 0}
	east := photo.Location{Latitude: 0, Longitude: 0.01}
	west := photo.Location{Latitude: 0, Longitude: -0.01}
	near := photo.Location{Latitude: 0, Longitude: 0.001}
	recs := []photo.Record{
		{Name: "first", Location: &east},
		{Name: "nogps"},
		{Name: "second", Location: &west},
		{Name: "closest", Location: &near},
		{Name: "third", Location: &east},
	}

	got := Nearest(recs, ref, 10)

	assert.Equal(t, []string{"closest", "first", "second", "third", "nogps"}, names(got))
	assert.Len(t, recs, 5, "input is not modified")
	assert.Equal(t, "first", recs[0].Name)
}

func TestNearestDefaultsLimit(t *testing.T) {
	ref := photo.Location{Latitude: 1, Longitude: 1}
	var recs []photo.Record
	for i := 0; i < 12; i++ {
		loc := photo.Location{Latitude: 1 + float64(i)/100, Longitude: 1}
		recs = append(recs, photo.Record{Name: fmt.Sprint(i), Location: &loc})
	}

	assert.Len(t, Nearest(recs, ref, 0), DefaultNearest)
	assert.Len(t, Nearest(recs, ref, 3), 3)
}

func TestRunSkipsInvalidFiles(t *testing.T) {
	txt := upload("root/S1/damage/notes.txt")
	txt.MIMEType = "text/plain"
	uploads := []Upload{
		txt,
		upload("root/loose.jpg"),
		upload("root//damage/x.jpg"),
		upload("root/S1/damage/ok.jpg"),
	}

	batch, err := New(fakeExtractor{}, Options{}).Run(context.Background(), uploads)

	require.NoError(t, err)
	require.Len(t, batch.Sets, 1)
	assert.Equal(t, []string{"ok.jpg"}, names(batch.Sets[0].DamagePhotos))
	require.Len(t, batch.Skipped, 2)
	assert.Equal(t, "root/loose.jpg", batch.Skipped[0].Path)
	assert.Equal(t, "root//damage/x.jpg", batch.Skipped[1].Path)
}

func TestRunEmptyBatch(t *testing.T) {
	batch, err := New(fakeExtractor{}, Options{}).Run(context.Background(), []Upload{upload("a/b.jpg")})

	require.NoError(t, err)
	assert.Empty(t, batch.Sets)
	assert.ErrorIs(t, batch.Err(), ErrNoValidStructure)
}

func TestRunCountsWarningsWithoutFailing(t *testing.T) {
	ext := fakeExtractor{broken: map[string]bool{"bad.jpg": true}}
	uploads := []Upload{upload("r/S/damage/bad.jpg"), upload("r/S/damage/good.jpg")}

	batch, err := New(ext, Options{}).Run(context.Background(), uploads)

	require.NoError(t, err)
	assert.Equal(t, 1, batch.Warnings)
	assert.Equal(t, []string{"bad.jpg", "good.jpg"}, names(batch.Sets[0].DamagePhotos))
}

func TestRunSortsWithCollation(t *testing.T) {
	uploads := []Upload{
		upload("r/Zulu/damage/z.jpg"),
		upload("r/alpha/damage/a.jpg"),
		upload("r/Mike/damage/m.jpg"),
	}

	batch, err := New(fakeExtractor{}, Options{}).Run(context.Background(), uploads)

	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "Mike", "Zulu"}, siteIDs(batch.Sets))
}

type recordingPublisher struct {
	mu    sync.Mutex
	paths []string
	fail  string
}

func (p *recordingPublisher) Publish(_ context.Context, up Upload) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, up.Path)
	if up.Path == p.fail {
		return "", errors.New("bucket unavailable")
	}
	return "https://previews/" + up.Path, nil
}

func TestRunPublishesPreviews(t *testing.T) {
	pub := &recordingPublisher{fail: "r/S/damage/b.jpg"}
	in := New(fakeExtractor{}, Options{Workers: 2}).WithPublisher(pub)

	batch, err := in.Run(context.Background(), []Upload{upload("r/S/damage/a.jpg"), upload("r/S/damage/b.jpg")})

	require.NoError(t, err)
	recs := batch.Sets[0].DamagePhotos
	assert.Equal(t, "https://previews/r/S/damage/a.jpg", recs[0].PreviewURI)
	assert.Empty(t, recs[1].PreviewURI)
	assert.Equal(t, 1, batch.Warnings)
	assert.Len(t, pub.paths, 2)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(fakeExtractor{}, Options{}).Run(ctx, []Upload{upload("r/S/damage/a.jpg")})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "upload")
	files := []string{
		"Site002/Damage/b.JPG",
		"Site001/Damage/a.jpg",
		"Site001/Before/p.png",
		"Site001/notes.txt",
	}
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	uploads, err := LoadDir(root)
	require.NoError(t, err)

	var got []string
	for _, up := range uploads {
		got = append(got, up.Path)
	}
	assert.Equal(t, []string{
		"upload/Site001/Before/p.png",
		"upload/Site001/Damage/a.jpg",
		"upload/Site001/notes.txt",
		"upload/Site002/Damage/b.JPG",
	}, got)
	assert.Equal(t, "image/png", uploads[0].MIMEType)
	assert.Equal(t, "image/jpeg", uploads[3].MIMEType)
	assert.False(t, strings.HasPrefix(uploads[2].MIMEType, "image/"))
	assert.Len(t, DiskPaths(uploads), 4)

	batch, err := New(photo.NewExtractor(nil), Options{}).Run(context.Background(), uploads)
	require.NoError(t, err)
	require.Equal(t, []string{"Site001", "Site002"}, siteIDs(batch.Sets))
	assert.Equal(t, []string{"p.png"}, names(batch.Sets[0].PreconditionPhotos))
	assert.Equal(t, 3, batch.Warnings)
	// notes.txt is skipped silently as a non-image
	assert.Empty(t, batch.Skipped)
}

func TestLoadDirFromWorkingDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "upload")
	path := filepath.Join(root, "Site001", "Damage", "a.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	t.Chdir(root)

	uploads, err := LoadDir(".")
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "upload/Site001/Damage/a.jpg", uploads[0].Path)

	batch, err := New(fakeExtractor{}, Options{}).Run(context.Background(), uploads)
	require.NoError(t, err)
	assert.Equal(t, []string{"Site001"}, siteIDs(batch.Sets))
	assert.Equal(t, []string{"a.jpg"}, names(batch.Sets[0].DamagePhotos))
}
