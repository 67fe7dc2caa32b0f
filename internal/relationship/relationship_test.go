package relationship

import (
	"math/rand"
	"testing"
)

func TestApplyDeltaClamps(t *testing.T) {
	cases := []struct {
		name  string
		score int
		delta int
		want  int
	}{
		{"simple add", 10, 2, 12},
		{"simple subtract", 10, -2, 8},
		{"clamp at floor", 1, -2, 0},
		{"clamp at ceiling", 99, 2, 100},
		{"already at floor", 0, -2, 0},
		{"already at ceiling", 100, 2, 100},
		{"zero delta", 42, 0, 42},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ApplyDelta(c.score, c.delta); got != c.want {
				t.Errorf("ApplyDelta(%d, %d) = %d, want %d", c.score, c.delta, got, c.want)
			}
		})
	}
}

func TestApplyDeltaNeverLeavesRange(t *testing.T) {
	// Any sequence of deltas in [-2, 2] must keep the score in [0, 100].
	score := 10
	for i := 0; i < 10000; i++ {
		score = ApplyDelta(score, rand.Intn(5)-2)
		if score < 0 || score > 100 {
			t.Fatalf("score left legal range at iteration %d: %d", i, score)
		}
	}
}

func TestTierOfBoundaries(t *testing.T) {
	cases := []struct {
		score int
		want  Tier
	}{
		{0, TierStranger},
		{1, TierAcquaint},
		{25, TierAcquaint},
		{26, TierFriend},
		{50, TierFriend},
		{51, TierCloseFriend},
		{75, TierCloseFriend},
		{76, TierBestFriend},
		{100, TierBestFriend},
	}
	for _, c := range cases {
		if got := TierOf(c.score); got != c.want {
			t.Errorf("TierOf(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestTierOfIsTotal(t *testing.T) {
	if got := TierOf(-50); got != TierStranger {
		t.Errorf("TierOf(-50) = %s, want %s", got, TierStranger)
	}
	if got := TierOf(1000); got != TierBestFriend {
		t.Errorf("TierOf(1000) = %s, want %s", got, TierBestFriend)
	}
}
