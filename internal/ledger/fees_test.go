package ledger

import "testing"

func TestFeeScheduleClamp(t *testing.T) {
	cases := []struct {
		name     string
		schedule FeeSchedule
		amount   int64
		want     int64
	}{
		{"one percent", FeeSchedule{Rate: 0.01, Min: 1, Max: 500}, 200, 2},
		{"minimum applies", FeeSchedule{Rate: 0.01, Min: 5, Max: 500}, 100, 5},
		{"maximum applies", FeeSchedule{Rate: 0.01, Min: 1, Max: 500}, 100_000, 500},
		{"base plus rate", FeeSchedule{Base: 10, Rate: 0.02, Min: 1, Max: 1_000}, 1_000, 30},
		{"no upper bound", FeeSchedule{Rate: 0.01, Min: 1}, 1_000_000, 10_000},
		{"rounds to nearest", FeeSchedule{Rate: 0.01}, 250, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.schedule.Fee(tc.amount); got != tc.want {
				t.Fatalf("fee(%d) = %d, want %d", tc.amount, got, tc.want)
			}
		})
	}
}
