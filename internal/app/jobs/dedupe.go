package jobs

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osterhagen/airchart/internal/domain/catalog"
)

// Dedupe sweeps the catalog for tracks sharing an external URI, merging
// each group into its first-seen row. Duplicates only appear when two
// concurrent resolutions raced before the store enforced uniqueness, so a
// normal run finds nothing.
func (r *Runner) Dedupe(ctx context.Context) error {
	tracks, err := r.deps.Tracks.ListOrderedByURI(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list tracks")
	}

	merged := 0
	for i := 0; i < len(tracks); {
		j := i + 1
		for j < len(tracks) && tracks[j].SpotifyURI == tracks[i].SpotifyURI {
			if err := r.deps.Corrector.Merge(ctx, &tracks[j], &tracks[i]); err != nil {
				return errors.Wrapf(err, "failed to merge duplicate of %s", tracks[i].SpotifyURI)
			}
			merged++
			j++
		}
		i = j
	}

	zlog.Info().Int("tracks", len(tracks)).Int("merged", merged).Msg("dedupe sweep done")
	return nil
}

// Fix repairs one mis-resolved track. Input is validated before any I/O.
func (r *Runner) Fix(ctx context.Context, trackID, correctedURI string) error {
	if trackID == "" {
		return errors.Mark(errors.New("track id is required"), catalog.ErrValidation)
	}
	if !strings.HasPrefix(correctedURI, "spotify:track:") {
		return errors.Mark(
			errors.Newf("corrected uri %q is not a spotify track uri", correctedURI),
			catalog.ErrValidation)
	}
	return r.deps.Corrector.Fix(ctx, trackID, correctedURI)
}
