package sync

import (
	"github.com/dukerupert/hearthquest/internal/model"
	"github.com/dukerupert/hearthquest/internal/store"
)

// StoreFetcher adapts the sqlite stores to the Fetcher interface, giving
// in-process viewers (kiosk displays, embedded clients) authoritative reads.
// It carries the viewer's family so challenge reads stay inside the tenant.
type StoreFetcher struct {
	logs       *store.DailyLogStore
	challenges *store.ChallengeStore
	familyID   int64
}

func NewStoreFetcher(ls *store.DailyLogStore, cs *store.ChallengeStore, familyID int64) *StoreFetcher {
	return &StoreFetcher{logs: ls, challenges: cs, familyID: familyID}
}

func (f *StoreFetcher) FetchDayLogs(profileID int64, date string) ([]model.DailyLog, error) {
	return f.logs.ListForDay(profileID, date)
}

func (f *StoreFetcher) FetchChallenge(profileID int64) (*model.Challenge, error) {
	return f.challenges.Latest(f.familyID, profileID)
}
