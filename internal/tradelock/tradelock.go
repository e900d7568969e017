// Package tradelock implements the platform trade-lock policy.
//
// Steam locks trades for 7 days after the trade is created, but items only
// unlock once per day at midnight PST, so the effective lock runs between
// 7 and 8 days depending on the time of day at withdrawal.
package tradelock

import "time"

// PST in this policy is the fixed UTC-8 zone; the unlock boundary does not
// follow daylight saving.
var pst = time.FixedZone("PST", -8*60*60)

// UnlockInstant returns the moment the trade lock clears for an item
// withdrawn at withdrawnAt: midnight PST on the eighth day after.
func UnlockInstant(withdrawnAt time.Time) time.Time {
	t := withdrawnAt.In(pst).AddDate(0, 0, 8)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, pst)
}

// IsTradable reports whether an asset withdrawn at withdrawnAt has cleared
// the trade lock by now. The comparison is inclusive at minute granularity
// so a sweep landing exactly on the unlock minute counts as tradable.
// Both arguments may be in any timezone; only the offset against PST
// matters.
func IsTradable(withdrawnAt, now time.Time) bool {
	unlock := UnlockInstant(withdrawnAt)
	return now.After(unlock) || now.Truncate(time.Minute).Equal(unlock)
}
