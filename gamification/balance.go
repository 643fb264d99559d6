/*
balance.go - Rolling 7-day energy balance read model

PURPOSE:
  Summarizes the active energy log entries of the last seven days into a
  single percentage: how much of the energy moved was restorative. The UI
  renders the percentage with a traffic-light zone.

KEY CONCEPTS:
  - TotalEnergyMoved: sum of absolute values of active entries in window
  - PositiveEnergy: sum of positive values only
  - Percentage: PositiveEnergy / TotalEnergyMoved * 100, rounded to two
    decimals. A quiet week (no movement) reads as a neutral 50.00 GREEN.
*/
package gamification

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Zone is the traffic-light reading of an energy balance.
type Zone string

const (
	ZoneRed    Zone = "RED"    // below 40: mostly draining work
	ZoneGreen  Zone = "GREEN"  // 40 to 60: balanced
	ZoneYellow Zone = "YELLOW" // above 60: mostly restorative
)

// BalanceWindowDays is the rolling window length.
const BalanceWindowDays = 7

// Balance is the computed read model.
type Balance struct {
	Percentage       decimal.Decimal
	Zone             Zone
	TotalEnergyMoved int
	PositiveEnergy   int
	WindowDays       int
}

// BalanceCalculator computes balances from the energy log.
type BalanceCalculator struct {
	// Now returns the current instant. Tests pin it; nil means time.Now.
	Now func() time.Time
}

func (c *BalanceCalculator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

// Balance computes the rolling window balance for the user. Only active
// entries count: reversed entries remain in the log but do not move the
// needle.
func (c *BalanceCalculator) Balance(ctx context.Context, s Store, userID UserID) (Balance, error) {
	since := c.now().Add(-BalanceWindowDays * 24 * time.Hour)
	entries, err := s.ActiveEntriesSince(ctx, userID, since)
	if err != nil {
		return Balance{}, err
	}

	var total, positive int
	for _, e := range entries {
		if e.Value >= 0 {
			positive += e.Value
			total += e.Value
		} else {
			total -= e.Value
		}
	}

	b := Balance{
		TotalEnergyMoved: total,
		PositiveEnergy:   positive,
		WindowDays:       BalanceWindowDays,
	}
	if total == 0 {
		b.Percentage = decimal.NewFromInt(50)
		b.Zone = ZoneGreen
		return b, nil
	}

	b.Percentage = decimal.NewFromInt(int64(positive)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
	b.Zone = zoneFor(b.Percentage)
	return b, nil
}

func zoneFor(pct decimal.Decimal) Zone {
	switch {
	case pct.LessThan(decimal.NewFromInt(40)):
		return ZoneRed
	case pct.GreaterThan(decimal.NewFromInt(60)):
		return ZoneYellow
	default:
		return ZoneGreen
	}
}
