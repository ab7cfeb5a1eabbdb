// Package quota is the admission policy for scan requests. It is pure
// decision logic: given the current balance record, the requested scan kind
// and the catalog, it returns admit or deny with a reason. It performs no
// I/O, so identical inputs always produce identical decisions.
package quota

import (
	balancedomain "github.com/complyscan/complyscan/internal/balance/domain"
	"github.com/complyscan/complyscan/internal/config"
)

const (
	ReasonUnknownScanKind     = "unknown_scan_kind"
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonDailyLimitReached   = "daily_limit_reached"
)

type Decision struct {
	Admit  bool
	Reason string

	// Cost is the catalog cost of the requested kind. Zero when the kind is
	// unknown.
	Cost int64
}

func admit(cost int64) Decision {
	return Decision{Admit: true, Cost: cost}
}

func deny(reason string, cost int64) Decision {
	return Decision{Admit: false, Reason: reason, Cost: cost}
}

// Decide evaluates admission for one scan request. today is the caller's
// UTC calendar date in clock.DateLayout form; the daily ceiling only binds
// when the record's date-of-record is today, otherwise the counter is
// treated as reset.
func Decide(record balancedomain.BalanceRecord, kind string, catalog config.CatalogConfig, today string) Decision {
	entry, ok := catalog.Lookup(kind)
	if !ok {
		return deny(ReasonUnknownScanKind, 0)
	}
	if record.Balance < entry.Credits {
		return deny(ReasonInsufficientBalance, entry.Credits)
	}
	if record.LastScanDate == today && record.DailyScanCount >= catalog.DailyScanLimit {
		return deny(ReasonDailyLimitReached, entry.Credits)
	}
	return admit(entry.Credits)
}
