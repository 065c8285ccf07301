package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/omzoxima/adminpannelbackend/apperrors"
	"github.com/omzoxima/adminpannelbackend/catalog"
	"github.com/omzoxima/adminpannelbackend/history"
	"github.com/omzoxima/adminpannelbackend/manifest"
	"github.com/omzoxima/adminpannelbackend/models"
	"github.com/omzoxima/adminpannelbackend/storage"
	"github.com/omzoxima/adminpannelbackend/transcoder"
)

const testPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXTINF:10.0,
seg000.ts
#EXTINF:10.0,
seg001.ts
#EXT-X-ENDLIST
`

// encodeService plays the transcoding backend: on job creation it drops a
// finished playlist and its segments into the memory store, the way real
// job output would appear in the bucket. failLanguages lists output folders
// whose jobs report failure instead.
type encodeService struct {
	store         *storage.Memory
	failLanguages []string
	failedJobs    map[string]bool
	jobSeq        int
}

func newEncodeService(store *storage.Memory, failLanguages ...string) *encodeService {
	return &encodeService{store: store, failLanguages: failLanguages, failedJobs: make(map[string]bool)}
}

func (e *encodeService) CreateJob(ctx context.Context, spec transcoder.JobSpec) (string, error) {
	e.jobSeq++
	name := fmt.Sprintf("jobs/job-%d", e.jobSeq)

	folder := strings.TrimPrefix(spec.OutputFolderURI, e.store.URI(""))
	for _, lang := range e.failLanguages {
		if strings.Contains(folder, "/"+lang+"/") {
			e.failedJobs[name] = true
			return name, nil
		}
	}

	e.store.Put(ctx, folder+"playlist.m3u8", []byte(testPlaylist), storage.ContentTypePlaylist, storage.CacheShortLived)
	e.store.Put(ctx, folder+"seg000.ts", []byte("segment-0"), storage.ContentTypeSegment, storage.CacheLongLived)
	e.store.Put(ctx, folder+"seg001.ts", []byte("segment-1"), storage.ContentTypeSegment, storage.CacheLongLived)
	return name, nil
}

func (e *encodeService) GetJob(ctx context.Context, handle string) (transcoder.JobStatus, error) {
	if e.failedJobs[handle] {
		return transcoder.JobStatus{State: transcoder.StateFailed, Message: "encode crashed"}, nil
	}
	return transcoder.JobStatus{State: transcoder.StateSucceeded}, nil
}

type testEnv struct {
	pipeline *Pipeline
	catalog  *catalog.Store
	store    *storage.Memory
	history  *history.Store
}

func newTestEnv(t *testing.T, failLanguages ...string) *testEnv {
	t.Helper()

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog"))
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	hist, err := history.Open(filepath.Join(t.TempDir(), "history"))
	if err != nil {
		t.Fatalf("Failed to open history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	store := storage.NewMemory("test-bucket")
	svc := newEncodeService(store, failLanguages...)
	runner := &transcoder.Runner{
		Service:      svc,
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
		InputScheme:  "gs://",
	}

	return &testEnv{
		pipeline: &Pipeline{
			Catalog:     cat,
			Objects:     store,
			Runner:      runner,
			Rewriter:    &manifest.Rewriter{Objects: store},
			History:     hist,
			MaxVideos:   2,
			PlaybackTTL: time.Hour,
		},
		catalog: cat,
		store:   store,
		history: hist,
	}
}

func (env *testEnv) seedSeries(t *testing.T, id string) {
	t.Helper()
	if err := env.catalog.CreateSeries(&models.Series{ID: id, Title: "Test Series", Status: "active"}); err != nil {
		t.Fatalf("Failed to seed series: %v", err)
	}
}

func validRequest(seriesID string) models.IngestionRequest {
	return models.IngestionRequest{
		SeriesID:      seriesID,
		EpisodeNumber: 1,
		Title:         "Pilot",
		Videos: []models.SourceVideo{
			{SourcePath: "gs://uploads/pilot-en.mp4", Language: "en"},
		},
	}
}

func TestIngestValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedSeries(t, "s1")

	mutate := []struct {
		name string
		mod  func(*models.IngestionRequest)
	}{
		{"missing series id", func(r *models.IngestionRequest) { r.SeriesID = "" }},
		{"missing episode number", func(r *models.IngestionRequest) { r.EpisodeNumber = 0 }},
		{"no videos", func(r *models.IngestionRequest) { r.Videos = nil }},
		{"too many videos", func(r *models.IngestionRequest) {
			v := r.Videos[0]
			r.Videos = []models.SourceVideo{v, v, v}
		}},
		{"empty source path", func(r *models.IngestionRequest) { r.Videos[0].SourcePath = "" }},
		{"bad language word", func(r *models.IngestionRequest) { r.Videos[0].Language = "english" }},
		{"uppercase language", func(r *models.IngestionRequest) { r.Videos[0].Language = "EN" }},
		{"bad region case", func(r *models.IngestionRequest) { r.Videos[0].Language = "pt-br" }},
	}

	for _, tc := range mutate {
		req := validRequest("s1")
		tc.mod(&req)
		_, err := env.pipeline.Ingest(context.Background(), req)
		if err == nil {
			t.Errorf("%s: expected rejection", tc.name)
			continue
		}
		if apperrors.KindOf(err) != apperrors.KindBadRequest {
			t.Errorf("%s: expected bad_request, got %s", tc.name, apperrors.KindOf(err))
		}
	}

	// Rejected requests must leave no trace behind
	eps, err := env.catalog.ListEpisodesBySeries("s1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(eps) != 0 {
		t.Errorf("Validation failures created %d episode records", len(eps))
	}
	if env.store.ObjectCount() != 0 {
		t.Errorf("Validation failures created %d objects", env.store.ObjectCount())
	}
}

func TestIngestUnknownSeries(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.pipeline.Ingest(context.Background(), validRequest("nope"))
	if err == nil {
		t.Fatal("Expected rejection for unknown series")
	}
	if apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Errorf("Expected not_found, got %s", apperrors.KindOf(err))
	}
}

func TestIngestEpisodeNumberConflict(t *testing.T) {
	env := newTestEnv(t)
	env.seedSeries(t, "s1")

	if _, err := env.pipeline.Ingest(context.Background(), validRequest("s1")); err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}

	_, err := env.pipeline.Ingest(context.Background(), validRequest("s1"))
	if err == nil {
		t.Fatal("Expected conflict on duplicate episode number")
	}
	if apperrors.KindOf(err) != apperrors.KindConflict {
		t.Errorf("Expected conflict, got %s", apperrors.KindOf(err))
	}

	eps, _ := env.catalog.ListEpisodesBySeries("s1")
	if len(eps) != 1 {
		t.Errorf("Expected exactly one committed episode, got %d", len(eps))
	}
}

func TestIngestCommitsMultiLanguageEpisode(t *testing.T) {
	env := newTestEnv(t)
	env.seedSeries(t, "s1")

	req := validRequest("s1")
	req.Videos = append(req.Videos, models.SourceVideo{
		SourcePath: "gs://uploads/pilot-hi.mp4", Language: "hi",
	})

	ep, err := env.pipeline.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(ep.Tracks) != 2 {
		t.Fatalf("Expected 2 tracks, got %d", len(ep.Tracks))
	}
	for i, lang := range []string{"en", "hi"} {
		track := ep.Tracks[i]
		if track.Language != lang {
			t.Errorf("Track %d: expected language %s, got %s", i, lang, track.Language)
		}
		if !strings.HasPrefix(track.PlaybackURL, "https://") {
			t.Errorf("Track %s: playback URL not signed: %q", lang, track.PlaybackURL)
		}
		wantPlaylist := fmt.Sprintf("hls/%s/%s/playlist.m3u8", ep.ID, lang)
		if track.PlaylistPath != wantPlaylist {
			t.Errorf("Track %s: playlist path %q, want %q", lang, track.PlaylistPath, wantPlaylist)
		}
		if track.FirstSegmentPath == "" {
			t.Errorf("Track %s: first segment path missing", lang)
		}
	}

	// Persisted record matches the returned one
	stored, err := env.catalog.GetEpisode(ep.ID)
	if err != nil {
		t.Fatalf("Episode not persisted: %v", err)
	}
	if len(stored.Tracks) != 2 {
		t.Errorf("Stored episode has %d tracks, want 2", len(stored.Tracks))
	}

	// The published playlist carries signed segment references
	playlist, err := env.store.GetText(context.Background(), ep.Tracks[0].PlaylistPath)
	if err != nil {
		t.Fatalf("Rewritten playlist missing: %v", err)
	}
	if strings.Contains(playlist, "seg000.ts\n") {
		t.Error("Playlist still carries raw segment references")
	}

	records, err := env.history.List()
	if err != nil {
		t.Fatalf("History read failed: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != history.OutcomeCommitted {
		t.Errorf("Expected one committed history record, got %+v", records)
	}
}

func TestIngestRollsBackOnSecondTrackFailure(t *testing.T) {
	env := newTestEnv(t, "hi")
	env.seedSeries(t, "s1")

	req := validRequest("s1")
	req.Videos = append(req.Videos, models.SourceVideo{
		SourcePath: "gs://uploads/pilot-hi.mp4", Language: "hi",
	})

	_, err := env.pipeline.Ingest(context.Background(), req)
	if err == nil {
		t.Fatal("Expected ingest to fail when the second track fails")
	}
	if apperrors.KindOf(err) != apperrors.KindUpstreamFailure {
		t.Errorf("Expected upstream_failure, got %s", apperrors.KindOf(err))
	}
	if !strings.Contains(err.Error(), "hi") {
		t.Errorf("Error should name the failing language: %v", err)
	}

	// No partial episode may survive, in the catalog or in storage
	eps, _ := env.catalog.ListEpisodesBySeries("s1")
	if len(eps) != 0 {
		t.Errorf("Rolled-back ingest left %d episode records", len(eps))
	}
	if env.store.ObjectCount() != 0 {
		t.Errorf("Rolled-back ingest left %d objects in storage", env.store.ObjectCount())
	}

	records, err := env.history.List()
	if err != nil {
		t.Fatalf("History read failed: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != history.OutcomeRolledBack {
		t.Fatalf("Expected one rolled_back history record, got %+v", records)
	}
	if records[0].Error == "" {
		t.Error("Rolled-back record should carry the failure text")
	}
}

func TestIngestRejectsBadSourceScheme(t *testing.T) {
	env := newTestEnv(t)
	env.seedSeries(t, "s1")

	req := validRequest("s1")
	req.Videos[0].SourcePath = "https://example.com/pilot.mp4"

	_, err := env.pipeline.Ingest(context.Background(), req)
	if err == nil {
		t.Fatal("Expected rejection of non-bucket source path")
	}
	if apperrors.KindOf(err) != apperrors.KindBadRequest {
		t.Errorf("Expected bad_request, got %s", apperrors.KindOf(err))
	}

	// The provisional record must have been rolled back
	eps, _ := env.catalog.ListEpisodesBySeries("s1")
	if len(eps) != 0 {
		t.Errorf("Expected no surviving episode records, got %d", len(eps))
	}
}
