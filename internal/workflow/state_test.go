package workflow

import (
	"testing"

	"github.com/dukerupert/hearthquest/internal/model"
)

func mission(id int64) model.Mission {
	return model.Mission{ID: id, Title: "m"}
}

func logFor(missionID int64, completed, validated, requested bool, result *model.ValidationResult) model.DailyLog {
	return model.DailyLog{
		MissionID:           missionID,
		ChildCompleted:      completed,
		ParentValidated:     validated,
		ValidationRequested: requested,
		ValidationResult:    result,
	}
}

func TestComputeState(t *testing.T) {
	success := model.ResultSuccess
	failure := model.ResultFailure

	tests := []struct {
		name     string
		missions []model.Mission
		logs     []model.DailyLog
		want     State
	}{
		{
			name:     "no logs at all",
			missions: []model.Mission{mission(1), mission(2)},
			logs:     nil,
			want:     StateInProgress,
		},
		{
			name:     "some missions unchecked",
			missions: []model.Mission{mission(1), mission(2)},
			logs:     []model.DailyLog{logFor(1, true, false, false, nil)},
			want:     StateInProgress,
		},
		{
			name:     "all checked, not requested",
			missions: []model.Mission{mission(1), mission(2)},
			logs: []model.DailyLog{
				logFor(1, true, false, false, nil),
				logFor(2, true, false, false, nil),
			},
			want: StateAwaitingRequest,
		},
		{
			name:     "requested",
			missions: []model.Mission{mission(1)},
			logs:     []model.DailyLog{logFor(1, true, false, true, nil)},
			want:     StatePendingParentReview,
		},
		{
			name:     "accepted",
			missions: []model.Mission{mission(1)},
			logs:     []model.DailyLog{logFor(1, true, true, false, &success)},
			want:     StateDayAccepted,
		},
		{
			name:     "rejected",
			missions: []model.Mission{mission(1)},
			logs:     []model.DailyLog{logFor(1, true, false, false, &failure)},
			want:     StateDayRejected,
		},
		{
			name:     "result wins over requested flag",
			missions: []model.Mission{mission(1), mission(2)},
			logs: []model.DailyLog{
				logFor(1, true, true, true, &success),
				logFor(2, true, true, true, nil),
			},
			want: StateDayAccepted,
		},
		{
			name:     "no missions",
			missions: nil,
			logs:     nil,
			want:     StateInProgress,
		},
		{
			name:     "unchecked toggle back",
			missions: []model.Mission{mission(1)},
			logs:     []model.DailyLog{logFor(1, false, false, false, nil)},
			want:     StateInProgress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeState(tt.missions, tt.logs); got != tt.want {
				t.Errorf("ComputeState() = %q, want %q", got, tt.want)
			}
		})
	}
}
