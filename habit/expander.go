/*
expander.go - Pure expansion of a recurrence rule over a date window

PURPOSE:
  Maps a RecurrenceRule and a closed date window [from, to] to the ordered
  list of calendar dates on which the rule fires. This is the one piece of
  the engine with no side effects at all - the unit to property-test.

ALGORITHM:
  Walk every calendar day in the window and ask the rule whether it fires:
  - empty ByDay, or DAILY present      -> fires every day
  - WEEKLY with no explicit weekdays   -> fires every day (degrades to daily)
  - day's weekday code listed          -> fires

  An inverted or empty window yields an empty list. There are no error
  conditions; malformed rules are rejected by Validate before expansion.

SEE ALSO:
  - rule.go: RecurrenceRule.FiresOn
  - reconciler.go: applies the pattern window and generation limits
*/
package habit

import "time"

// Expand returns the ordered calendar dates in [from, to] (inclusive, UTC
// midnights) on which the rule fires. Pure: no clock, no storage.
func Expand(rule RecurrenceRule, from, to time.Time) []time.Time {
	start := DateOf(from)
	end := DateOf(to)

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if rule.FiresOn(d) {
			dates = append(dates, d)
		}
	}
	return dates
}
