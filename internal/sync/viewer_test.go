package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/dukerupert/hearthquest/internal/model"
)

// stubFetcher serves authoritative state from memory so viewer reconciliation
// can be exercised without a database.
type stubFetcher struct {
	mu      gosync.Mutex
	logs    []model.DailyLog
	ch      *model.Challenge
	fetches int
}

func (s *stubFetcher) FetchDayLogs(profileID int64, date string) ([]model.DailyLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	out := make([]model.DailyLog, len(s.logs))
	copy(out, s.logs)
	return out, nil
}

func (s *stubFetcher) FetchChallenge(profileID int64) (*model.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch, nil
}

func (s *stubFetcher) set(logs []model.DailyLog) {
	s.mu.Lock()
	s.logs = logs
	s.mu.Unlock()
}

func pendingLog(missionID int64) model.DailyLog {
	return model.DailyLog{
		MissionID:           missionID,
		ProfileID:           2,
		Date:                "2026-03-01",
		ChildCompleted:      true,
		ValidationRequested: true,
	}
}

func closedLog(missionID int64) model.DailyLog {
	result := model.ResultSuccess
	l := pendingLog(missionID)
	l.ValidationRequested = false
	l.ParentValidated = true
	l.ValidationResult = &result
	return l
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestViewerRefetchesOnEvent(t *testing.T) {
	feed := NewFeed(testLogger())
	fetcher := &stubFetcher{}
	v := NewViewer(feed, fetcher, 1, 2, "2026-03-01", testLogger())
	v.SetPollInterval(time.Hour) // events only

	if err := v.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer v.Stop()

	fetcher.set([]model.DailyLog{pendingLog(10)})
	feed.Publish(Event{Table: TableDailyLogs, Action: ActionUpserted, FamilyID: 1, ProfileID: 2, Date: "2026-03-01"})

	waitFor(t, func() bool {
		snap := v.Snapshot()
		return len(snap.Logs) == 1 && snap.Logs[0].ValidationRequested
	})
}

func TestViewerIgnoresOtherChildsLogs(t *testing.T) {
	feed := NewFeed(testLogger())
	fetcher := &stubFetcher{}
	v := NewViewer(feed, fetcher, 1, 2, "2026-03-01", testLogger())
	v.SetPollInterval(time.Hour)

	if err := v.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer v.Stop()

	before := func() int {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return fetcher.fetches
	}()

	// Different profile's ledger changed; this viewer must not refetch.
	feed.Publish(Event{Table: TableDailyLogs, Action: ActionUpserted, FamilyID: 1, ProfileID: 99, Date: "2026-03-01"})
	time.Sleep(50 * time.Millisecond)

	fetcher.mu.Lock()
	after := fetcher.fetches
	fetcher.mu.Unlock()
	if after != before {
		t.Errorf("fetches went %d -> %d on irrelevant event", before, after)
	}
}

// A dropped push event must not strand a waiting viewer: while the snapshot
// shows a pending review, the poll fallback refetches and converges on the
// authoritative outcome.
func TestViewerPollConvergesAfterDroppedEvent(t *testing.T) {
	feed := NewFeed(testLogger())
	fetcher := &stubFetcher{logs: []model.DailyLog{pendingLog(10)}}
	v := NewViewer(feed, fetcher, 1, 2, "2026-03-01", testLogger())
	v.SetPollInterval(10 * time.Millisecond)

	if err := v.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer v.Stop()

	snap := v.Snapshot()
	if len(snap.Logs) != 1 || !snap.Logs[0].ValidationRequested {
		t.Fatalf("initial snapshot not pending review: %+v", snap.Logs)
	}

	// The parent closes the day, but the push event never arrives.
	fetcher.set([]model.DailyLog{closedLog(10)})

	waitFor(t, func() bool {
		snap := v.Snapshot()
		return len(snap.Logs) == 1 && snap.Logs[0].HasResult()
	})
}

func TestViewerStopsPollingWhenNotWaiting(t *testing.T) {
	feed := NewFeed(testLogger())
	fetcher := &stubFetcher{logs: []model.DailyLog{closedLog(10)}}
	v := NewViewer(feed, fetcher, 1, 2, "2026-03-01", testLogger())
	v.SetPollInterval(10 * time.Millisecond)

	if err := v.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer v.Stop()

	fetcher.mu.Lock()
	initial := fetcher.fetches
	fetcher.mu.Unlock()

	time.Sleep(100 * time.Millisecond)

	fetcher.mu.Lock()
	after := fetcher.fetches
	fetcher.mu.Unlock()
	if after != initial {
		t.Errorf("viewer kept polling a settled day: %d -> %d fetches", initial, after)
	}
}

func TestApplyLocalOverwrittenByRefresh(t *testing.T) {
	feed := NewFeed(testLogger())
	fetcher := &stubFetcher{logs: []model.DailyLog{pendingLog(10)}}
	v := NewViewer(feed, fetcher, 1, 2, "2026-03-01", testLogger())
	v.SetPollInterval(time.Hour)

	if err := v.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer v.Stop()

	// Optimistic local edit shows immediately.
	v.ApplyLocal(func(s *Snapshot) {
		s.Logs[0].ChildCompleted = false
	})
	if v.Snapshot().Logs[0].ChildCompleted {
		t.Fatal("optimistic edit not visible")
	}

	// The authoritative refetch wins wholesale.
	if err := v.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !v.Snapshot().Logs[0].ChildCompleted {
		t.Error("refresh did not overwrite the optimistic edit")
	}
}

func TestViewerResubscribesAfterFeedRestart(t *testing.T) {
	feed := NewFeed(testLogger())
	fetcher := &stubFetcher{}
	v := NewViewer(feed, fetcher, 1, 2, "2026-03-01", testLogger())
	v.SetPollInterval(time.Hour)

	if err := v.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer v.Stop()

	waitFor(t, func() bool { return feed.SubscriberCount() == 1 })

	// Simulate the transport dropping: close the live subscription out from
	// under the viewer. The loop must resubscribe rather than spin or exit.
	feed.mu.Lock()
	for sub := range feed.subs {
		delete(feed.subs, sub)
		close(sub.ch)
	}
	feed.mu.Unlock()

	waitFor(t, func() bool { return feed.SubscriberCount() == 1 })

	fetcher.set([]model.DailyLog{pendingLog(10)})
	feed.Publish(Event{Table: TableDailyLogs, Action: ActionUpserted, FamilyID: 1, ProfileID: 2, Date: "2026-03-01"})
	waitFor(t, func() bool { return len(v.Snapshot().Logs) == 1 })
}

func TestViewerExitsWhenFeedShutsDown(t *testing.T) {
	feed := NewFeed(testLogger())
	fetcher := &stubFetcher{}

	v := NewViewer(feed, fetcher, 1, 2, "2026-03-01", testLogger())
	v.SetPollInterval(time.Hour)
	if err := v.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	feed.Close()

	// The loop must terminate on its own, not spin on resubscribes until
	// someone cancels it.
	select {
	case <-v.done:
	case <-time.After(2 * time.Second):
		t.Fatal("viewer loop still running after feed shutdown")
	}
	v.Stop()
}

func TestViewerStartOnClosedFeed(t *testing.T) {
	feed := NewFeed(testLogger())
	feed.Close()

	v := NewViewer(feed, &stubFetcher{}, 1, 2, "2026-03-01", testLogger())
	if err := v.Start(context.Background()); err == nil {
		t.Fatal("expected error starting a viewer on a closed feed")
	}
}
