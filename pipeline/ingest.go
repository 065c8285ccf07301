package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/omzoxima/adminpannelbackend/apperrors"
	"github.com/omzoxima/adminpannelbackend/catalog"
	"github.com/omzoxima/adminpannelbackend/history"
	"github.com/omzoxima/adminpannelbackend/logger"
	"github.com/omzoxima/adminpannelbackend/manifest"
	"github.com/omzoxima/adminpannelbackend/models"
	"github.com/omzoxima/adminpannelbackend/storage"
	"github.com/omzoxima/adminpannelbackend/transcoder"

	"github.com/google/uuid"
)

// Language codes are two lowercase letters with an optional region suffix,
// e.g. "en" or "pt-BR".
var languagePattern = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)

// Pipeline ingests uploaded episodes: it validates the request, creates a
// provisional catalog record, drives one transcode-and-rewrite cycle per
// language, and commits the finished track list in a single write. Any
// failure after the provisional record exists rolls the record back and
// best-effort deletes whatever output already landed in storage.
type Pipeline struct {
	Catalog  *catalog.Store
	Objects  storage.Store
	Runner   *transcoder.Runner
	Rewriter *manifest.Rewriter
	History  *history.Store // optional

	MaxVideos   int
	PlaybackTTL time.Duration
	Profile     transcoder.QualityProfile

	// DetachFromCaller keeps transcode jobs running when the requesting
	// client disconnects, so their output can still be cleaned up instead
	// of leaking under a job id nobody will query again.
	DetachFromCaller bool
}

// Ingest runs one ingestion request to completion and returns the committed
// episode. All validation happens before any record or external job is
// created.
func (p *Pipeline) Ingest(ctx context.Context, req models.IngestionRequest) (*models.Episode, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}

	if _, err := p.Catalog.GetSeries(req.SeriesID); err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil, apperrors.Newf(apperrors.KindNotFound, "series %s not found", req.SeriesID)
		}
		return nil, err
	}

	// Provisional record: persisted now so its id exists for error messages
	// and cleanup, committed with tracks only at the very end
	ep := &models.Episode{
		ID:            uuid.NewString(),
		SeriesID:      req.SeriesID,
		EpisodeNumber: req.EpisodeNumber,
		Title:         req.Title,
		Description:   req.Description,
	}
	if err := p.Catalog.CreateEpisode(ep); err != nil {
		return nil, err
	}
	logger.Infof("Created provisional episode %s (series %s, number %d)", ep.ID, ep.SeriesID, ep.EpisodeNumber)

	jobCtx := ctx
	if p.DetachFromCaller {
		jobCtx = context.Background()
	}

	var tracks []models.LanguageTrack
	var createdFolders []string
	for _, video := range req.Videos {
		folder := fmt.Sprintf("hls/%s/%s/", ep.ID, video.Language)
		createdFolders = append(createdFolders, folder)

		track, err := p.processLanguage(jobCtx, video, folder)
		if err != nil {
			p.rollback(ep, createdFolders, err)
			return nil, err
		}
		tracks = append(tracks, track)
	}

	// The single point where partial results become visible
	ep.Tracks = tracks
	if err := p.Catalog.SaveEpisode(ep); err != nil {
		p.rollback(ep, createdFolders, err)
		return nil, err
	}
	p.record(ep, history.OutcomeCommitted, nil)
	logger.Infof("Committed episode %s with %d language tracks", ep.ID, len(tracks))
	return ep, nil
}

// processLanguage runs submit, await and rewrite for one (video, language)
// pair and returns its finished track.
func (p *Pipeline) processLanguage(ctx context.Context, video models.SourceVideo, folder string) (models.LanguageTrack, error) {
	outputURI := p.Objects.URI(folder)

	handle, err := p.Runner.Submit(ctx, video.SourcePath, outputURI, p.profile())
	if err != nil {
		return models.LanguageTrack{}, err
	}

	result, err := p.Runner.AwaitCompletion(ctx, handle)
	if err != nil {
		return models.LanguageTrack{}, apperrors.Wrap(apperrors.KindUpstreamFailure,
			fmt.Sprintf("transcode interrupted for language %s", video.Language), err)
	}
	if result.State != transcoder.ResultSucceeded {
		msg := result.Message
		if msg == "" {
			msg = "no detail reported"
		}
		return models.LanguageTrack{}, apperrors.Newf(apperrors.KindUpstreamFailure,
			"transcode %s for language %s: %s", result.State, video.Language, msg)
	}

	playlistPath := folder + "playlist.m3u8"
	rewrite, err := p.Rewriter.Rewrite(ctx, playlistPath, folder, p.PlaybackTTL)
	if err != nil {
		return models.LanguageTrack{}, err
	}

	return models.LanguageTrack{
		Language:         video.Language,
		PlaylistPath:     rewrite.PlaylistPath,
		FirstSegmentPath: rewrite.FirstSegmentPath,
		PlaybackURL:      rewrite.SignedPlaylistURL,
	}, nil
}

// validate checks the request shape before any side effect happens.
func (p *Pipeline) validate(req models.IngestionRequest) error {
	if req.SeriesID == "" {
		return apperrors.New(apperrors.KindBadRequest, "seriesId is required")
	}
	if req.EpisodeNumber <= 0 {
		return apperrors.New(apperrors.KindBadRequest, "episodeNumber is required")
	}
	if len(req.Videos) == 0 {
		return apperrors.New(apperrors.KindBadRequest, "at least one video is required")
	}
	max := p.MaxVideos
	if max <= 0 {
		max = 2
	}
	if len(req.Videos) > max {
		return apperrors.Newf(apperrors.KindBadRequest, "at most %d videos are accepted per request", max)
	}
	for _, video := range req.Videos {
		if video.SourcePath == "" {
			return apperrors.New(apperrors.KindBadRequest, "every video needs a sourcePath")
		}
		if !languagePattern.MatchString(video.Language) {
			return apperrors.Newf(apperrors.KindBadRequest, "invalid language code %q", video.Language)
		}
	}
	return nil
}

func (p *Pipeline) profile() transcoder.QualityProfile {
	if p.Profile == "" {
		return transcoder.ProfileSD
	}
	return p.Profile
}

// rollback deletes the provisional record and best-effort removes partial
// storage output. Cleanup failures are logged; the original failure is what
// the caller sees either way.
func (p *Pipeline) rollback(ep *models.Episode, folders []string, cause error) {
	logger.Warnf("Rolling back episode %s: %v", ep.ID, cause)

	if err := p.Catalog.DeleteEpisode(ep.ID); err != nil {
		logger.Errorf("Failed to delete provisional episode %s: %v", ep.ID, err)
	}
	ctx := context.Background()
	for _, folder := range folders {
		if err := p.Objects.DeletePrefix(ctx, folder); err != nil {
			logger.Errorf("Failed to clean up storage folder %s: %v", folder, err)
		}
	}
	p.record(ep, history.OutcomeRolledBack, cause)
}

// record writes the ingestion outcome to the history store, if one is wired.
func (p *Pipeline) record(ep *models.Episode, outcome history.Outcome, cause error) {
	if p.History == nil {
		return
	}
	rec := history.Record{
		EpisodeID: ep.ID,
		SeriesID:  ep.SeriesID,
		Title:     ep.Title,
		Outcome:   outcome,
	}
	for _, t := range ep.Tracks {
		rec.Languages = append(rec.Languages, t.Language)
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := p.History.Add(rec); err != nil {
		logger.Errorf("Failed to record ingestion history for %s: %v", ep.ID, err)
	}
}
