package repository

import "testing"

func TestRoundProgress(t *testing.T) {
	cases := []struct {
		completed int
		total     int
		want      float64
	}{
		{0, 12, 0},
		{1, 1, 100.0},
		{5, 12, 41.67},
		{10, 12, 83.33},
		{12, 12, 100.0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{0, 0, 0},
	}
	for _, tc := range cases {
		if got := RoundProgress(tc.completed, tc.total); got != tc.want {
			t.Fatalf("RoundProgress(%d, %d) = %v, want %v", tc.completed, tc.total, got, tc.want)
		}
	}
}
