package manifest

import (
	"context"
	"strings"
	"time"

	"github.com/omzoxima/adminpannelbackend/apperrors"
	"github.com/omzoxima/adminpannelbackend/logger"
	"github.com/omzoxima/adminpannelbackend/storage"

	"golang.org/x/sync/errgroup"
)

// segmentExtensions are the media container extensions that mark a playlist
// line as a segment reference.
var segmentExtensions = []string{".ts", ".m4s"}

// IsSegmentLine reports whether a playlist line names a media segment.
// Directives (starting with #), blank lines and anything not ending in a
// known segment extension pass through a rewrite untouched.
func IsSegmentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return false
	}
	for _, ext := range segmentExtensions {
		if strings.HasSuffix(trimmed, ext) {
			return true
		}
	}
	return false
}

// Result is the outcome of one playlist rewrite.
type Result struct {
	SignedPlaylistURL string // time-limited URL for the rewritten playlist
	PlaylistPath      string // object path of the rewritten playlist
	FirstSegmentPath  string // object path of the first segment, for spot checks
}

// Rewriter replaces every segment reference in a playlist with a signed,
// expiring URL and re-uploads the playlist in place.
//
// Rewriting is one-shot per fresh playlist: running it again over its own
// output finds no segment lines and leaves the already-signed URLs behind.
type Rewriter struct {
	Objects     storage.Store
	Concurrency int // parallel signing fan-out, defaults to 8
}

// Rewrite downloads the playlist at playlistPath, signs every segment under
// folder for expiry, substitutes the references and re-uploads the playlist.
// A single segment that cannot be signed fails the whole rewrite; no partial
// playlist is ever published.
func (rw *Rewriter) Rewrite(ctx context.Context, playlistPath, folder string, expiry time.Duration) (Result, error) {
	text, err := rw.Objects.GetText(ctx, playlistPath)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindStorageFailure, "failed to download playlist", err)
	}

	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}

	lines := strings.Split(text, "\n")

	// Collect distinct segment names in first-seen order
	var segments []string
	seen := make(map[string]bool)
	for _, line := range lines {
		if !IsSegmentLine(line) {
			continue
		}
		name := strings.TrimSpace(line)
		if !seen[name] {
			seen[name] = true
			segments = append(segments, name)
		}
	}

	// Sign all segments concurrently; they are independent read-only
	// operations so ordering does not matter
	signed := make([]string, len(segments))
	limit := rw.Concurrency
	if limit <= 0 {
		limit = 8
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, name := range segments {
		g.Go(func() error {
			url, err := rw.Objects.SignedReadURL(gctx, folder+name, expiry)
			if err != nil {
				return apperrors.Wrap(apperrors.KindStorageFailure, "failed to sign segment "+name, err)
			}
			signed[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	signedByName := make(map[string]string, len(segments))
	for i, name := range segments {
		signedByName[name] = signed[i]
	}

	// Substitute segment lines, preserving order and every other line verbatim
	out := make([]string, len(lines))
	for i, line := range lines {
		if IsSegmentLine(line) {
			out[i] = signedByName[strings.TrimSpace(line)]
		} else {
			out[i] = line
		}
	}

	rewritten := strings.Join(out, "\n")
	if err := rw.Objects.Put(ctx, playlistPath, []byte(rewritten), storage.ContentTypePlaylist, storage.CacheShortLived); err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindStorageFailure, "failed to upload rewritten playlist", err)
	}

	playlistURL, err := rw.Objects.SignedReadURL(ctx, playlistPath, expiry)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindStorageFailure, "failed to sign playlist", err)
	}

	firstSegment := ""
	if len(segments) > 0 {
		firstSegment = folder + segments[0]
	}
	logger.Debugf("Rewrote playlist %s: %d segment references signed", playlistPath, len(segments))

	return Result{
		SignedPlaylistURL: playlistURL,
		PlaylistPath:      playlistPath,
		FirstSegmentPath:  firstSegment,
	}, nil
}
