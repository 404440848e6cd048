package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"

	"github.com/dustin/go-humanize"

	"github.com/dukerupert/hearthquest/internal/model"
	"github.com/dukerupert/hearthquest/internal/store"
	"github.com/dukerupert/hearthquest/internal/sync"
	"github.com/dukerupert/hearthquest/internal/workflow"
)

// Notifier consumes the change feed and turns workflow transitions into push
// notifications: the parent hears when a child requests review, the child
// hears the day's outcome. State transitions are detected by refetching the
// authoritative day state, never by trusting event payloads.
type Notifier struct {
	service    *Service
	flow       *workflow.Service
	push       *store.PushStore
	profiles   *store.ProfileStore
	challenges *store.ChallengeStore
	feed       *sync.Feed
	logger     *slog.Logger

	mu        gosync.Mutex
	lastState map[string]workflow.State

	cancel context.CancelFunc
	done   chan struct{}
}

func NewNotifier(svc *Service, flow *workflow.Service, pushStore *store.PushStore, profileStore *store.ProfileStore, challengeStore *store.ChallengeStore, feed *sync.Feed, logger *slog.Logger) *Notifier {
	return &Notifier{
		service:    svc,
		flow:       flow,
		push:       pushStore,
		profiles:   profileStore,
		challenges: challengeStore,
		feed:       feed,
		logger:     logger,
		lastState:  make(map[string]workflow.State),
	}
}

// Start launches the feed consumer loop.
func (n *Notifier) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})

	go func() {
		defer close(n.done)

		sub := n.feed.Subscribe(sync.Filter{})
		if sub == nil {
			return
		}
		defer func() { sub.Close() }()

		for {
			select {
			case e, ok := <-sub.C:
				if !ok {
					if sub = n.feed.Subscribe(sync.Filter{}); sub == nil {
						return
					}
					continue
				}
				if e.Table == sync.TableDailyLogs && e.ProfileID != 0 && e.Date != "" {
					n.handleDayChange(ctx, e)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the consumer loop and waits for it to exit.
func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
		<-n.done
	}
}

func (n *Notifier) handleDayChange(ctx context.Context, e sync.Event) {
	state, _, err := n.flow.DayState(e.FamilyID, e.ProfileID, e.Date)
	if err != nil {
		n.logger.Warn("refetch day state", "error", err)
		return
	}

	key := fmt.Sprintf("%d/%s", e.ProfileID, e.Date)
	n.mu.Lock()
	prev := n.lastState[key]
	n.lastState[key] = state
	n.mu.Unlock()

	if state == prev {
		return
	}

	child, err := n.profiles.GetByID(e.ProfileID)
	if err != nil || child == nil {
		return
	}

	switch state {
	case workflow.StatePendingParentReview:
		parent, err := n.profiles.Parent(e.FamilyID)
		if err != nil || parent == nil {
			return
		}
		n.notify(ctx, parent.ID, Payload{
			Title: "Review requested",
			Body:  fmt.Sprintf("%s finished today's missions and is waiting for your review.", child.Name),
			Tag:   model.NotifTypeReviewRequested,
		})
	case workflow.StateDayAccepted:
		n.notify(ctx, child.ID, Payload{
			Title: "Day validated!",
			Body:  "All missions approved. Your streak is growing.",
			Tag:   model.NotifTypeDayOutcome,
		})
		if ch, err := n.challenges.Latest(e.FamilyID, e.ProfileID); err == nil {
			n.NotifyStreak(ctx, ch)
		}
	case workflow.StateDayRejected:
		n.notify(ctx, child.ID, Payload{
			Title: "Day not validated",
			Body:  "Some missions were not approved today. Tomorrow is a fresh start.",
			Tag:   model.NotifTypeDayOutcome,
		})
	}
}

// NotifyStreak tells the child how far along the challenge is after a
// successful day close.
func (n *Notifier) NotifyStreak(ctx context.Context, ch *model.Challenge) {
	if ch == nil {
		return
	}
	n.notify(ctx, ch.ProfileID, streakPayload(ch))
}

func streakPayload(ch *model.Challenge) Payload {
	var body string
	if ch.Finished() {
		body = fmt.Sprintf("Challenge complete! Reward: %s", ch.RewardText)
	} else {
		body = fmt.Sprintf("That's your %s day in a row. %d to go!",
			humanize.Ordinal(ch.CurrentStreak), ch.DurationDays-ch.CurrentStreak)
	}
	return Payload{
		Title: "Streak update",
		Body:  body,
		Tag:   model.NotifTypeDayOutcome,
	}
}

func (n *Notifier) notify(ctx context.Context, profileID int64, payload Payload) {
	subs, err := n.push.ListByProfile(profileID)
	if err != nil {
		n.logger.Warn("list push subscriptions", "error", err)
		return
	}

	for i := range subs {
		sub := subs[i]
		if err := n.service.Send(ctx, &sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if err := n.push.Delete(sub.ID); err != nil {
					n.logger.Warn("prune expired subscription", "error", err)
				}
				continue
			}
			n.logger.Warn("send push", "profile_id", profileID, "error", err)
		}
	}
}
