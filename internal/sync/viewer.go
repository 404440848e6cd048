package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/dukerupert/hearthquest/internal/model"
)

// DefaultPollInterval is the conservative polling fallback cadence.
const DefaultPollInterval = 5 * time.Second

// Fetcher reads the authoritative aggregates a viewer displays. Every event
// and every poll tick goes through a full refetch rather than trusting event
// payloads, which sidesteps ordering and partial-delivery bugs in the push
// transport.
type Fetcher interface {
	FetchDayLogs(profileID int64, date string) ([]model.DailyLog, error)
	FetchChallenge(profileID int64) (*model.Challenge, error)
}

// Snapshot is a viewer's local copy of the aggregates for one (child, date).
type Snapshot struct {
	Logs      []model.DailyLog
	Challenge *model.Challenge
}

// awaitingReview reports whether the snapshot is in a waiting state: a review
// has been requested and no result recorded yet. While waiting, the viewer
// polls regardless of push events so a dropped event cannot stall it.
func (s Snapshot) awaitingReview() bool {
	requested := false
	for _, l := range s.Logs {
		if l.HasResult() {
			return false
		}
		if l.ValidationRequested {
			requested = true
		}
	}
	return requested
}

// Viewer keeps one connected client's local state reconciled with the
// authoritative store. Local optimistic edits are applied immediately and
// unconditionally overwritten by the next authoritative refetch; the writer
// field sets are disjoint per actor, so last-fetch-wins is safe.
type Viewer struct {
	feed         *Feed
	fetcher      Fetcher
	familyID     int64
	profileID    int64
	date         string
	pollInterval time.Duration
	logger       *slog.Logger

	mu   gosync.RWMutex
	snap Snapshot

	cancel context.CancelFunc
	done   chan struct{}
}

func NewViewer(feed *Feed, fetcher Fetcher, familyID, profileID int64, date string, logger *slog.Logger) *Viewer {
	return &Viewer{
		feed:         feed,
		fetcher:      fetcher,
		familyID:     familyID,
		profileID:    profileID,
		date:         date,
		pollInterval: DefaultPollInterval,
		logger:       logger,
	}
}

// SetPollInterval overrides the fallback poll cadence. Tests use this to
// avoid real five-second waits.
func (v *Viewer) SetPollInterval(d time.Duration) {
	v.pollInterval = d
}

// Start performs the initial authoritative fetch, subscribes to the feed, and
// launches the reconciliation loop. Stop releases the subscription and the
// poll timer.
func (v *Viewer) Start(ctx context.Context) error {
	if err := v.Refresh(); err != nil {
		return fmt.Errorf("initial fetch: %w", err)
	}

	sub := v.feed.Subscribe(Filter{FamilyID: v.familyID})
	if sub == nil {
		return fmt.Errorf("feed is shut down")
	}

	ctx, v.cancel = context.WithCancel(ctx)
	v.done = make(chan struct{})
	go v.loop(ctx, sub)
	return nil
}

// Stop cancels the reconciliation loop and waits for it to release its
// subscription and timer. In-flight refetches complete; the next viewer to
// start simply fetches fresh state.
func (v *Viewer) Stop() {
	if v.cancel != nil {
		v.cancel()
		<-v.done
	}
}

func (v *Viewer) loop(ctx context.Context, sub *Subscription) {
	defer close(v.done)
	// sub is reassigned on resubscribe; close whichever is current on exit.
	defer func() { sub.Close() }()

	ticker := time.NewTicker(v.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				// Subscription released underneath us — reattach, unless
				// the feed has shut down for good.
				if sub = v.feed.Subscribe(Filter{FamilyID: v.familyID}); sub == nil {
					return
				}
				continue
			}
			if v.relevant(e) {
				if err := v.Refresh(); err != nil {
					v.logger.Warn("refetch after event failed", "error", err)
				}
			}
		case <-ticker.C:
			v.mu.RLock()
			waiting := v.snap.awaitingReview()
			v.mu.RUnlock()
			if waiting {
				if err := v.Refresh(); err != nil {
					v.logger.Warn("poll refetch failed", "error", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// relevant reports whether an event concerns the aggregates this viewer
// displays. Family scoping already happened in the subscription filter.
func (v *Viewer) relevant(e Event) bool {
	switch e.Table {
	case TableDailyLogs:
		return e.ProfileID == v.profileID && (e.Date == "" || e.Date == v.date)
	case TableChallenges:
		return e.ProfileID == v.profileID
	case TableMissions, TableProfiles:
		return true
	default:
		return false
	}
}

// Refresh replaces the local snapshot wholesale with authoritative state.
func (v *Viewer) Refresh() error {
	logs, err := v.fetcher.FetchDayLogs(v.profileID, v.date)
	if err != nil {
		return fmt.Errorf("fetch day logs: %w", err)
	}
	ch, err := v.fetcher.FetchChallenge(v.profileID)
	if err != nil {
		return fmt.Errorf("fetch challenge: %w", err)
	}

	v.mu.Lock()
	v.snap = Snapshot{Logs: logs, Challenge: ch}
	v.mu.Unlock()
	return nil
}

// ApplyLocal applies an optimistic edit to the local snapshot. The edit is
// visible immediately and lives only until the next authoritative refetch.
func (v *Viewer) ApplyLocal(edit func(*Snapshot)) {
	v.mu.Lock()
	edit(&v.snap)
	v.mu.Unlock()
}

// Snapshot returns a copy of the viewer's current local state.
func (v *Viewer) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	snap := Snapshot{Challenge: v.snap.Challenge}
	snap.Logs = make([]model.DailyLog, len(v.snap.Logs))
	copy(snap.Logs, v.snap.Logs)
	return snap
}
