package review

import "testing"

func TestRewardPolicyAmount(t *testing.T) {
	policy := RewardPolicy{BaseAmount: 100, MinAmount: 50, MaxAmount: 200, Decimals: 0}

	cases := []struct {
		name    string
		quality int
		want    int64
	}{
		{"quality 50 clamps to minimum", 50, 50},
		{"quality 30 clamps to minimum", 30, 50},
		{"quality 0 clamps to minimum", 0, 50},
		{"quality 75 pays proportionally", 75, 75},
		{"quality 100 pays base", 100, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.Amount(tc.quality); got != tc.want {
				t.Fatalf("Amount(%d) = %d, want %d", tc.quality, got, tc.want)
			}
		})
	}

	generous := RewardPolicy{BaseAmount: 1000, MinAmount: 50, MaxAmount: 200, Decimals: 0}
	if got := generous.Amount(90); got != 200 {
		t.Fatalf("Amount() = %d, want clamp to 200", got)
	}
}

func TestRewardPolicyBaseUnitScaling(t *testing.T) {
	policy := RewardPolicy{BaseAmount: 100, MinAmount: 50, MaxAmount: 200, Decimals: 8}
	if got := policy.Amount(50); got != 50_0000_0000 {
		t.Fatalf("Amount() = %d, want 5e9 base units", got)
	}
}
