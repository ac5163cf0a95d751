package review

// RewardPolicy bounds the token payout computed from the quality score.
// Amounts are whole tokens; scaling to ledger base units happens last.
type RewardPolicy struct {
	BaseAmount int64
	MinAmount  int64
	MaxAmount  int64
	Decimals   int
}

// Amount computes clamp(base * quality/100, min, max) scaled to the
// ledger's base-unit precision.
func (p RewardPolicy) Amount(qualityScore int) int64 {
	raw := p.BaseAmount * int64(qualityScore) / 100
	if raw < p.MinAmount {
		raw = p.MinAmount
	}
	if raw > p.MaxAmount {
		raw = p.MaxAmount
	}

	scale := int64(1)
	for i := 0; i < p.Decimals; i++ {
		scale *= 10
	}
	return raw * scale
}
