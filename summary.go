package vitalsbot

import (
	"context"
	"time"

	"github.com/kristjanh/vitalsbot/internal/timekit"
)

// TodaySummary is the cross-domain snapshot for the local day.
type TodaySummary struct {
	WeightLatest *QueryResult
	WeightValue  *float64
	StepsToday   *float64
	SleepMinutes *float64
	HeartAvg     *float64
}

// PeriodSummary aggregates the last N days.
type PeriodSummary struct {
	Days          int
	WeightFirst   *float64
	WeightLast    *float64
	WeightDelta   *float64
	StepsAvg      *float64
	StepsTotal    *float64
	SleepAvgMins  *float64
	HeartAvg      *float64
}

// TodaySnapshot gathers today's numbers across every available domain.
// Unavailable domains are skipped, not errors; only transient failures
// (catalog down, pool timeout) propagate.
func (e *Engine) TodaySnapshot(ctx context.Context, loc *time.Location) (*TodaySummary, error) {
	start, end := timekit.TodayRangeUTC(loc)
	s := &TodaySummary{}

	if e.resolver.Available("weight") {
		latest, err := e.DomainLatest(ctx, "weight")
		if err != nil {
			return nil, err
		}
		s.WeightLatest = latest
		s.WeightValue = e.domainCell(latest, "weight", FieldValue)
	}
	if e.resolver.Available("steps") {
		sum, err := e.DomainSumRange(ctx, "steps", start, end)
		if err != nil {
			return nil, err
		}
		s.StepsToday = sum
	}
	if e.resolver.Available("sleep") {
		latest, err := e.DomainLatest(ctx, "sleep")
		if err != nil {
			return nil, err
		}
		s.SleepMinutes = e.domainCell(latest, "sleep", FieldValue)
	}
	if e.resolver.Available("heart") {
		avg, err := e.DomainAvgRange(ctx, "heart", start, end)
		if err != nil {
			return nil, err
		}
		s.HeartAvg = avg
	}
	return s, nil
}

// PeriodReport aggregates the last days days across every available domain.
func (e *Engine) PeriodReport(ctx context.Context, days int, loc *time.Location) (*PeriodSummary, error) {
	start := timekit.DaysAgoUTC(days, loc)
	_, end := timekit.TodayRangeUTC(loc)
	s := &PeriodSummary{Days: days}

	if e.resolver.Available("weight") {
		rows, err := e.DomainRange(ctx, "weight", start, end)
		if err != nil {
			return nil, err
		}
		first, last := e.firstLastValue(rows, "weight")
		s.WeightFirst, s.WeightLast = first, last
		if first != nil && last != nil {
			delta := *last - *first
			s.WeightDelta = &delta
		}
	}
	if e.resolver.Available("steps") {
		avg, err := e.DomainAvgRange(ctx, "steps", start, end)
		if err != nil {
			return nil, err
		}
		total, err := e.DomainSumRange(ctx, "steps", start, end)
		if err != nil {
			return nil, err
		}
		s.StepsAvg, s.StepsTotal = avg, total
	}
	if e.resolver.Available("sleep") {
		avg, err := e.DomainAvgRange(ctx, "sleep", start, end)
		if err != nil {
			return nil, err
		}
		s.SleepAvgMins = avg
	}
	if e.resolver.Available("heart") {
		avg, err := e.DomainAvgRange(ctx, "heart", start, end)
		if err != nil {
			return nil, err
		}
		s.HeartAvg = avg
	}
	return s, nil
}

// domainCell pulls the resolved logical-field cell out of a one-row result.
func (e *Engine) domainCell(result *QueryResult, domainID, field string) *float64 {
	if result == nil || len(result.Rows) == 0 {
		return nil
	}
	d, err := e.resolver.Domain(domainID)
	if err != nil {
		return nil
	}
	col := d.Column(field)
	for i, name := range result.Columns {
		if equalFold(name, col) && i < len(result.Rows[0]) {
			return asFloat(result.Rows[0][i])
		}
	}
	return nil
}

// firstLastValue extracts the first and last non-nil value-column cells from
// an oldest-first range result.
func (e *Engine) firstLastValue(result *QueryResult, domainID string) (*float64, *float64) {
	if result == nil || len(result.Rows) == 0 {
		return nil, nil
	}
	d, err := e.resolver.Domain(domainID)
	if err != nil {
		return nil, nil
	}
	col := d.Column(FieldValue)
	idx := -1
	for i, name := range result.Columns {
		if equalFold(name, col) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}
	var first, last *float64
	for _, row := range result.Rows {
		if idx >= len(row) {
			continue
		}
		if f := asFloat(row[idx]); f != nil {
			if first == nil {
				first = f
			}
			last = f
		}
	}
	return first, last
}
