// Package jobs provides the scheduler-facing entry points. Each job is a
// function of the current time and the injected clients; no state is kept
// between invocations beyond what the catalog persists, so a failed job is
// safe to re-invoke.
package jobs

import (
	"time"

	"github.com/osterhagen/airchart/internal/app/correction"
	"github.com/osterhagen/airchart/internal/app/ranking"
	"github.com/osterhagen/airchart/internal/app/resolver"
	"github.com/osterhagen/airchart/internal/app/syncer"
	"github.com/osterhagen/airchart/internal/domain/catalog"
	"github.com/osterhagen/airchart/internal/domain/playlist"
	"github.com/osterhagen/airchart/internal/infra/config"
)

// createdBySystem tags playlist records owned by the jobs, as opposed to
// hand-curated ones.
const createdBySystem = "system"

// Deps are the collaborators a Runner needs.
type Deps struct {
	Tracks        catalog.TrackRepository
	Playlists     playlist.Repository
	Resolver      *resolver.TrackResolver
	Syncer        *syncer.Syncer
	Ranking       *ranking.Aggregator
	Corrector     *correction.Corrector
	RankingConfig config.RankingConfig
}

// Runner executes jobs against one set of collaborators.
type Runner struct {
	deps Deps
}

// NewRunner creates a job runner.
func NewRunner(deps Deps) *Runner {
	return &Runner{deps: deps}
}

// dayOf truncates t to its calendar day.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
