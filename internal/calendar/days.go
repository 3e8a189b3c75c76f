package calendar

import (
	"math"
	"time"
)

// AddBusinessDays advances from start one calendar day at a time and returns the
// date on which the n-th business day (not a weekend, not excluded) is reached.
// n <= 0 returns start unchanged.
func AddBusinessDays(start time.Time, n int, excluded DateSet) time.Time {
	current := Day(start)
	if n <= 0 {
		return current
	}
	counted := 0
	for counted < n {
		current = current.AddDate(0, 0, 1)
		if IsWeekend(current) || excluded.Contains(current) {
			continue
		}
		counted++
	}
	return current
}

// CountBusinessDays counts non-weekend, non-holiday days in the inclusive range [start, end].
func CountBusinessDays(start, end time.Time, holidays DateSet) int {
	first := Day(start)
	last := Day(end)
	if last.Before(first) {
		return 0
	}
	count := 0
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if IsWeekend(d) || holidays.Contains(d) {
			continue
		}
		count++
	}
	return count
}

// EffectiveWorkdays is the productive share of the business days in [start, end].
func EffectiveWorkdays(start, end time.Time, holidays DateSet, capacityFactor float64) int {
	cf := NormalizeCapacityFactor(capacityFactor)
	return int(math.Floor(snap(float64(CountBusinessDays(start, end, holidays)) * cf)))
}

// RealisticDuration converts idealized effort days into the calendar business days
// needed once the capacity factor is applied.
func RealisticDuration(effortDays float64, capacityFactor float64) int {
	if effortDays <= 0 || math.IsNaN(effortDays) || math.IsInf(effortDays, 0) {
		return 0
	}
	cf := NormalizeCapacityFactor(capacityFactor)
	return int(math.Ceil(snap(effortDays / cf)))
}

// NormalizeCapacityFactor returns cf, or the default when cf is outside (0, 1].
func NormalizeCapacityFactor(cf float64) float64 {
	if cf <= 0 || cf > 1 || math.IsNaN(cf) {
		return DefaultCapacityFactor
	}
	return cf
}

// MonthsBetween returns the number of calendar months spanned by [start, end].
// A started partial month counts as a whole month; the result is never negative.
func MonthsBetween(start, end time.Time) int {
	first := Day(start)
	last := Day(end)
	if !last.After(first) {
		return 0
	}
	months := (last.Year()-first.Year())*12 + int(last.Month()) - int(first.Month())
	if last.Day() > first.Day() {
		months++
	}
	if months < 0 {
		return 0
	}
	return months
}

// snap removes binary floating point noise before floor/ceil so that values such as
// 1.7/0.85 round as 2 and not 3.
func snap(v float64) float64 {
	const scale = 1e9
	return math.Round(v*scale) / scale
}
