// Package endpoints implements the management and feed HTTP surface (§6):
// gin handlers backed by the Store, refresh scheduler, retention sweeper and
// feed generator, adapted from the teacher's internal/endpoints package
// (which exposed a single backup/jobs API) to the much larger channel/
// episode/queue/feed surface this specification requires.
package endpoints

import (
	"time"

	"channelcast/internal/feed"
	"channelcast/internal/refresh"
	"channelcast/internal/retention"
	"channelcast/internal/store"
)

// Deps bundles everything a handler needs, built once in main and passed to
// SetupRoutes.
type Deps struct {
	Store     *store.Store
	Refresh   *refresh.Scheduler
	Retention *retention.Sweeper
	Feed      *feed.Generator

	DataDir   string
	Version   string
	StartedAt time.Time
}
