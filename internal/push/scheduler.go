package push

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/dukerupert/hearthquest/internal/model"
	"github.com/dukerupert/hearthquest/internal/store"
)

// Scheduler periodically checks mission reminder times and notifies the
// children they apply to.
type Scheduler struct {
	mu       gosync.RWMutex
	service  *Service
	notifier *Notifier
	families *store.FamilyStore
	missions *store.MissionStore
	profiles *store.ProfileStore
	logs     *store.DailyLogStore
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}

	// sent tracks reminders already delivered this day, keyed by
	// mission/profile/date/time so a reminder fires at most once.
	sent map[string]struct{}
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(svc *Service, notifier *Notifier, fs *store.FamilyStore, ms *store.MissionStore, ps *store.ProfileStore, ls *store.DailyLogStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:  svc,
		notifier: notifier,
		families: fs,
		missions: ms,
		profiles: ps,
		logs:     ls,
		interval: 60 * time.Second,
		logger:   logger,
		sent:     make(map[string]struct{}),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx, time.Now())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	familyIDs, err := s.families.ListIDs()
	if err != nil {
		s.logger.Warn("reminder scheduler: list families", "error", err)
		return
	}

	for _, fid := range familyIDs {
		s.checkFamilyReminders(ctx, fid, now)
	}
}

func (s *Scheduler) checkFamilyReminders(ctx context.Context, familyID int64, now time.Time) {
	missions, err := s.missions.ListByFamily(familyID)
	if err != nil {
		s.logger.Warn("reminder scheduler: list missions", "error", err)
		return
	}

	hhmm := now.Format("15:04")
	date := now.Format("2006-01-02")

	for _, m := range missions {
		if !reminderDue(m, hhmm) {
			continue
		}
		targets, err := s.reminderTargets(familyID, m)
		if err != nil {
			s.logger.Warn("reminder scheduler: resolve targets", "error", err)
			continue
		}
		for _, profileID := range targets {
			key := fmt.Sprintf("%d/%d/%s/%s", m.ID, profileID, date, hhmm)
			s.mu.Lock()
			_, already := s.sent[key]
			if !already {
				s.sent[key] = struct{}{}
			}
			s.mu.Unlock()
			if already {
				continue
			}

			// Skip reminders for missions already checked off today.
			log, err := s.logs.GetByKey(m.ID, profileID, date)
			if err == nil && log != nil && log.ChildCompleted {
				continue
			}

			s.notifier.notify(ctx, profileID, Payload{
				Title: "Mission reminder",
				Body:  fmt.Sprintf("Time for: %s", m.Title),
				Tag:   model.NotifTypeMissionReminder,
			})
		}
	}
}

func reminderDue(m model.Mission, hhmm string) bool {
	for _, t := range m.ReminderTimes {
		if t == hhmm {
			return true
		}
	}
	return false
}

// reminderTargets resolves a mission's reminder audience: the assigned child,
// or every child in the family for unassigned missions.
func (s *Scheduler) reminderTargets(familyID int64, m model.Mission) ([]int64, error) {
	if m.AssignedTo != nil {
		return []int64{*m.AssignedTo}, nil
	}
	children, err := s.profiles.Children(familyID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(children))
	for i, c := range children {
		ids[i] = c.ID
	}
	return ids, nil
}
