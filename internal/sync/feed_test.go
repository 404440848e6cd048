package sync

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubscribeAndPublish(t *testing.T) {
	f := NewFeed(testLogger())
	sub := f.Subscribe(Filter{FamilyID: 1})
	defer sub.Close()

	f.Publish(Event{Table: TableDailyLogs, Action: ActionUpserted, FamilyID: 1, ProfileID: 2, Date: "2026-03-01"})

	select {
	case e := <-sub.C:
		if e.Table != TableDailyLogs || e.ProfileID != 2 {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestFamilyFilterScopesDelivery(t *testing.T) {
	f := NewFeed(testLogger())
	mine := f.Subscribe(Filter{FamilyID: 1})
	theirs := f.Subscribe(Filter{FamilyID: 2})
	defer mine.Close()
	defer theirs.Close()

	f.Publish(Event{Table: TableDailyLogs, Action: ActionUpserted, FamilyID: 1})

	select {
	case <-mine.C:
	case <-time.After(time.Second):
		t.Fatal("matching subscriber got nothing")
	}

	select {
	case e := <-theirs.C:
		t.Errorf("event leaked to other family: %+v", e)
	default:
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	f := NewFeed(testLogger())
	sub := f.Subscribe(Filter{})
	defer sub.Close()

	// Overfill the buffer; publish must not block and overflow is dropped.
	for i := 0; i < subscriptionBuffer+5; i++ {
		f.Publish(Event{Table: TableDailyLogs, Action: ActionUpserted, FamilyID: 1, RowID: int64(i)})
	}

	if got := len(sub.C); got != subscriptionBuffer {
		t.Errorf("buffered events = %d, want %d", got, subscriptionBuffer)
	}
}

func TestCloseShutsSubscriberChannels(t *testing.T) {
	f := NewFeed(testLogger())
	sub := f.Subscribe(Filter{})

	f.Close()

	select {
	case _, ok := <-sub.C:
		if ok {
			t.Error("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	// Subscribing after close reports shutdown instead of handing out a
	// dead subscription a consumer would spin on.
	late := f.Subscribe(Filter{})
	if late != nil {
		t.Error("expected nil subscription from post-close subscribe")
	}
	late.Close() // nil-safe
}

func TestUnsubscribeRemovesSubscriber(t *testing.T) {
	f := NewFeed(testLogger())
	sub := f.Subscribe(Filter{})
	if n := f.SubscriberCount(); n != 1 {
		t.Fatalf("subscriber count = %d, want 1", n)
	}

	sub.Close()
	if n := f.SubscriberCount(); n != 0 {
		t.Errorf("subscriber count = %d, want 0", n)
	}

	// Double close is safe.
	sub.Close()
}

func TestFilterMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		event  Event
		want   bool
	}{
		{"zero filter matches all", Filter{}, Event{FamilyID: 9}, true},
		{"family match", Filter{FamilyID: 1}, Event{FamilyID: 1}, true},
		{"family mismatch", Filter{FamilyID: 1}, Event{FamilyID: 2}, false},
		{"profile match", Filter{ProfileID: 3}, Event{FamilyID: 1, ProfileID: 3}, true},
		{"profile mismatch", Filter{ProfileID: 3}, Event{FamilyID: 1, ProfileID: 4}, false},
		{"profile filter ignores family-wide events", Filter{ProfileID: 3}, Event{FamilyID: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.event); got != tt.want {
				t.Errorf("Matches(%+v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}
