// Package sync propagates ledger and challenge mutations to connected
// viewers. The feed is an in-process change-notification bus with
// at-least-once, lossy delivery: subscriber buffers are bounded and a full
// buffer drops the event. Consumers must treat events as refetch hints, never
// as state.
package sync

import (
	"log/slog"
	gosync "sync"
)

type Table string

const (
	TableDailyLogs  Table = "daily_logs"
	TableChallenges Table = "challenges"
	TableMissions   Table = "missions"
	TableProfiles   Table = "profiles"
)

type Action string

const (
	ActionUpserted Action = "upserted"
	ActionDeleted  Action = "deleted"
)

// Event identifies a changed row. It carries enough identity for a consumer
// to decide whether to refetch, and nothing more: no payload, so a duplicated
// or reordered event can never corrupt a viewer.
type Event struct {
	Table     Table  `json:"table"`
	Action    Action `json:"action"`
	RowID     int64  `json:"row_id,omitempty"`
	FamilyID  int64  `json:"family_id"`
	ProfileID int64  `json:"profile_id,omitempty"`
	Date      string `json:"date,omitempty"`
}

// Filter scopes a subscription. Zero fields match everything.
type Filter struct {
	FamilyID  int64
	ProfileID int64
}

// Matches reports whether the event falls inside the filter's scope.
func (f Filter) Matches(e Event) bool {
	if f.FamilyID != 0 && e.FamilyID != f.FamilyID {
		return false
	}
	if f.ProfileID != 0 && e.ProfileID != 0 && e.ProfileID != f.ProfileID {
		return false
	}
	return true
}

const subscriptionBuffer = 16

// Subscription is one consumer's view of the feed. Close it to release the
// subscriber; a closed C means the subscription was released underneath the
// consumer, which may call Subscribe again — nil from Subscribe means the
// feed has shut down for good and the consumer should stop.
type Subscription struct {
	C      <-chan Event
	feed   *Feed
	ch     chan Event
	filter Filter
}

// Close detaches the subscription from the feed. Safe on a nil subscription
// so consumer cleanup paths need no feed-shutdown special case.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.feed.unsubscribe(s)
}

// Feed fans events out to subscribers.
type Feed struct {
	mu     gosync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
	logger *slog.Logger
}

func NewFeed(logger *slog.Logger) *Feed {
	return &Feed{
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers a consumer for events matching the filter. Returns nil
// once the feed has shut down; handing out a dead subscription instead would
// turn every consumer's resubscribe path into a busy loop.
func (f *Feed) Subscribe(filter Filter) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	ch := make(chan Event, subscriptionBuffer)
	sub := &Subscription{C: ch, feed: f, ch: ch, filter: filter}
	f.subs[sub] = struct{}{}
	return sub
}

func (f *Feed) unsubscribe(sub *Subscription) {
	f.mu.Lock()
	if _, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		close(sub.ch)
	}
	f.mu.Unlock()
}

// Publish delivers the event to every matching subscriber. Delivery is
// best-effort: a subscriber with a full buffer misses the event and relies on
// its polling fallback.
func (f *Feed) Publish(e Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for sub := range f.subs {
		if !sub.filter.Matches(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			f.logger.Debug("subscriber buffer full, dropping event",
				"table", e.Table, "action", e.Action, "family_id", e.FamilyID)
		}
	}
}

// Close shuts the feed down and closes every subscriber channel.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for sub := range f.subs {
		delete(f.subs, sub)
		close(sub.ch)
	}
}

// SubscriberCount returns the number of attached subscriptions.
func (f *Feed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
