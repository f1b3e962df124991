package models

import "strings"

// Tier is a subscription plan.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
	TierVIP  Tier = "vip"
)

// NormalizeTier maps any stored or user supplied plan string onto a known tier.
// Matching is case-insensitive; empty or unknown values become TierFree.
func NormalizeTier(raw string) Tier {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(TierVIP):
		return TierVIP
	case string(TierPro):
		return TierPro
	case string(TierFree):
		return TierFree
	default:
		return TierFree
	}
}

// Label is the upper-case display form ("FREE", "PRO", "VIP").
func (t Tier) Label() string {
	return strings.ToUpper(string(NormalizeTier(string(t))))
}

// QuotaExempt reports whether the tier bypasses the daily message limit.
func (t Tier) QuotaExempt() bool {
	return t == TierVIP
}
