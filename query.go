package vitalsbot

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kristjanh/vitalsbot/internal/readonly"
	"github.com/kristjanh/vitalsbot/internal/sqlguard"
)

// Execute runs a validated raw query through the full read-only pipeline.
// The ValidatedQuery must come from sqlguard.Validate — there is no path
// from unvalidated text to execution.
func (e *Engine) Execute(ctx context.Context, vq sqlguard.ValidatedQuery) (*QueryResult, error) {
	return e.run(ctx, vq.SQL, nil, vq.AppliedLimit)
}

// ExecuteBuilt runs a builder-produced parameterized statement.
func (e *Engine) ExecuteBuilt(ctx context.Context, sql string, args []any, appliedLimit int) (*QueryResult, error) {
	return e.run(ctx, sql, args, appliedLimit)
}

// run is the single execution path: slot gate, AST second-line defense,
// read-only transaction, row collection. The connection and transaction are
// released/rolled back on every exit, including cancellation.
func (e *Engine) run(ctx context.Context, sql string, args []any, appliedLimit int) (*QueryResult, error) {
	startTime := time.Now()

	release, err := e.slots.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	// Second line of defense behind the validator: anything the parser does
	// not recognize as a single SELECT is rejected, never demoted.
	if err := readonly.Check(sql); err != nil {
		return nil, fmt.Errorf("statement refused by read-only guard: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(e.config.Query.TimeoutSeconds)*time.Second)
	defer cancel()

	conn, err := e.pool.Acquire(queryCtx)
	if err != nil {
		return nil, classifyExecError(err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(queryCtx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, classifyExecError(err)
	}
	// Parent ctx on purpose: if the query timed out, queryCtx is already
	// cancelled and the rollback would fail with it.
	defer tx.Rollback(ctx)

	rows, err := tx.Query(queryCtx, sql, args...)
	if err != nil {
		return nil, classifyExecError(err)
	}

	result, err := collectRows(rows)
	if err != nil {
		return nil, classifyExecError(err)
	}
	result.AppliedLimit = appliedLimit
	result.Elapsed = time.Since(startTime)

	e.touch()
	e.logger.Info().
		Str("sql", truncateForLog(sql, 200)).
		Dur("duration", result.Elapsed).
		Int("row_count", len(result.Rows)).
		Msg("query executed")

	return result, nil
}

// queryValue runs a single-value aggregate inside the same pipeline and
// returns the scalar (nil for NULL or no rows).
func (e *Engine) queryValue(ctx context.Context, sql string, args ...any) (any, error) {
	result, err := e.run(ctx, sql, args, 1)
	if err != nil {
		return nil, err
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return nil, nil
	}
	return result.Rows[0][0], nil
}

// collectRows reads all rows into a QueryResult with converted cell values.
func collectRows(rows pgx.Rows) (*QueryResult, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	out := make([][]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = convertValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &QueryResult{Columns: columns, Rows: out}, nil
}

// convertValue normalizes pgx-returned values into display-friendly types.
func convertValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case float32:
		return normalizeFloat(float64(val))
	case float64:
		return normalizeFloat(val)
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN {
			return "NaN"
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			b, merr := val.MarshalJSON()
			if merr != nil {
				return nil
			}
			return string(b)
		}
		return f.Float64
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = convertValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = convertValue(item)
		}
		return out
	default:
		return val
	}
}

func normalizeFloat(f float64) any {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return f
}

// truncateForLog keeps log entries bounded.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...[truncated]"
}
