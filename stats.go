package vitalsbot

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Domain statistics. Every query here is built from a resolved mapping:
// table and column identifiers come from the catalog, never from user text,
// and all literal values are bound parameters.
//
// Each operation retries once through re-resolution when execution fails
// with a schema mismatch (relation or column vanished); a second failure
// flips the domain to unavailable.

// DomainLatest returns the most recent record of a domain as a one-row
// result, or nil rows if the table is empty.
func (e *Engine) DomainLatest(ctx context.Context, domainID string) (*QueryResult, error) {
	var result *QueryResult
	err := e.withDomain(ctx, domainID, func(d *ResolvedDomain) error {
		sql := fmt.Sprintf(`SELECT * FROM %s ORDER BY %s DESC LIMIT 1`,
			quoteIdent(d.Table.Name), quoteIdent(d.Column(FieldTimestamp)))
		var err error
		result, err = e.run(ctx, sql, nil, 1)
		return err
	})
	return result, err
}

// DomainRecent returns one page of records, newest first.
func (e *Engine) DomainRecent(ctx context.Context, domainID string, limit, offset int) (*QueryResult, error) {
	if limit <= 0 || limit > e.config.Query.MaxPageSize {
		limit = e.config.Query.PageSize
	}
	if offset < 0 {
		offset = 0
	}
	var result *QueryResult
	err := e.withDomain(ctx, domainID, func(d *ResolvedDomain) error {
		sql := fmt.Sprintf(`SELECT * FROM %s ORDER BY %s DESC LIMIT $1 OFFSET $2`,
			quoteIdent(d.Table.Name), quoteIdent(d.Column(FieldTimestamp)))
		var err error
		result, err = e.run(ctx, sql, []any{limit, offset}, limit)
		return err
	})
	return result, err
}

// DomainCount returns the total number of rows in the domain's table.
func (e *Engine) DomainCount(ctx context.Context, domainID string) (int64, error) {
	var count int64
	err := e.withDomain(ctx, domainID, func(d *ResolvedDomain) error {
		sql := fmt.Sprintf(`SELECT count(*) FROM %s`, quoteIdent(d.Table.Name))
		v, err := e.queryValue(ctx, sql)
		if err != nil {
			return err
		}
		count = asInt64(v)
		return nil
	})
	return count, err
}

// DomainRange returns records within [start, end), oldest first.
func (e *Engine) DomainRange(ctx context.Context, domainID string, start, end time.Time) (*QueryResult, error) {
	var result *QueryResult
	err := e.withDomain(ctx, domainID, func(d *ResolvedDomain) error {
		ts := quoteIdent(d.Column(FieldTimestamp))
		sql := fmt.Sprintf(`SELECT * FROM %s WHERE %s >= $1 AND %s < $2 ORDER BY %s ASC LIMIT $3`,
			quoteIdent(d.Table.Name), ts, ts, ts)
		var err error
		result, err = e.run(ctx, sql, []any{start, end, e.config.Query.MaxRows}, e.config.Query.MaxRows)
		return err
	})
	return result, err
}

// DomainSumRange sums the value column over [start, end). Nil when the
// range holds no rows.
func (e *Engine) DomainSumRange(ctx context.Context, domainID string, start, end time.Time) (*float64, error) {
	return e.aggregateRange(ctx, domainID, "SUM", start, end)
}

// DomainAvgRange averages the value column over [start, end).
func (e *Engine) DomainAvgRange(ctx context.Context, domainID string, start, end time.Time) (*float64, error) {
	return e.aggregateRange(ctx, domainID, "AVG", start, end)
}

func (e *Engine) aggregateRange(ctx context.Context, domainID, agg string, start, end time.Time) (*float64, error) {
	var out *float64
	err := e.withDomain(ctx, domainID, func(d *ResolvedDomain) error {
		ts := quoteIdent(d.Column(FieldTimestamp))
		sql := fmt.Sprintf(`SELECT %s(%s) FROM %s WHERE %s >= $1 AND %s < $2`,
			agg, quoteIdent(d.Column(FieldValue)), quoteIdent(d.Table.Name), ts, ts)
		v, err := e.queryValue(ctx, sql, start, end)
		if err != nil {
			return err
		}
		out = asFloat(v)
		return nil
	})
	return out, err
}

// TrendAverages compares the mean of the last n values against the mean of
// the n before that. Either average is nil when there is not enough data.
func (e *Engine) TrendAverages(ctx context.Context, domainID string, n int) (recent, previous *float64, err error) {
	if n <= 0 {
		n = 7
	}
	err = e.withDomain(ctx, domainID, func(d *ResolvedDomain) error {
		sql := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s DESC LIMIT $1`,
			quoteIdent(d.Column(FieldValue)), quoteIdent(d.Table.Name), quoteIdent(d.Column(FieldTimestamp)))
		result, rerr := e.run(ctx, sql, []any{n * 2}, n*2)
		if rerr != nil {
			return rerr
		}
		var values []float64
		for _, row := range result.Rows {
			if len(row) > 0 {
				if f := asFloat(row[0]); f != nil {
					values = append(values, *f)
				}
			}
		}
		if len(values) == 0 {
			return nil
		}
		if len(values) <= n {
			recent = mean(values)
			return nil
		}
		recent = mean(values[:n])
		previous = mean(values[n:])
		return nil
	})
	return recent, previous, err
}

// SparklineValues returns the last n values ordered oldest-first, with nils
// preserved for gaps.
func (e *Engine) SparklineValues(ctx context.Context, domainID string, n int) ([]*float64, error) {
	if n <= 0 {
		n = 30
	}
	var out []*float64
	err := e.withDomain(ctx, domainID, func(d *ResolvedDomain) error {
		sql := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s DESC LIMIT $1`,
			quoteIdent(d.Column(FieldValue)), quoteIdent(d.Table.Name), quoteIdent(d.Column(FieldTimestamp)))
		result, err := e.run(ctx, sql, []any{n}, n)
		if err != nil {
			return err
		}
		out = make([]*float64, 0, len(result.Rows))
		// Reverse to oldest-first.
		for i := len(result.Rows) - 1; i >= 0; i-- {
			row := result.Rows[i]
			if len(row) == 0 {
				out = append(out, nil)
				continue
			}
			out = append(out, asFloat(row[0]))
		}
		return nil
	})
	return out, err
}

// withDomain resolves the cached mapping, runs fn, and on a schema-mismatch
// failure re-resolves exactly once before giving up. The old mapping stays
// valid for requests already in flight.
func (e *Engine) withDomain(ctx context.Context, domainID string, fn func(d *ResolvedDomain) error) error {
	d, err := e.resolver.Domain(domainID)
	if err != nil {
		return err
	}
	err = fn(d)
	if err == nil || !IsSchemaMismatch(err) {
		return err
	}

	e.logger.Warn().
		Str("domain", domainID).
		Err(err).
		Msg("schema mismatch, attempting re-resolution")
	d, rerr := e.resolver.Reresolve(ctx, domainID)
	if rerr != nil {
		return rerr
	}
	return fn(d)
}

func mean(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	m := sum / float64(len(vals))
	return &m
}

func asFloat(v any) *float64 {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		return &val
	case float32:
		f := float64(val)
		return &f
	case int64:
		f := float64(val)
		return &f
	case int32:
		f := float64(val)
		return &f
	case int16:
		f := float64(val)
		return &f
	case int:
		f := float64(val)
		return &f
	default:
		return nil
	}
}

func asInt64(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int32:
		return int64(val)
	case int:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}

// quoteIdent escapes a SQL identifier: doubles embedded double-quotes and
// wraps in double-quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
