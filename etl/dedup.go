package etl

import (
	"context"
	"time"

	"sewstat/analysis"
	"sewstat/database"
)

// RetransmitOffset is added by firmware to the log id of a resent record
const RetransmitOffset = 1000

// LogChecker looks up already stored logs
type LogChecker interface {
	HasAdjustedLog(ctx context.Context, field database.LogIDField, id int, row analysis.RawLogRow) (bool, error)
}

// rangeChecker consults the store only for rows dated outside the range
// being replaced. Stored rows inside it are swapped out by the same run,
// so the batch alone decides what is a retransmit there.
type rangeChecker struct {
	checker  LogChecker
	from, to time.Time
}

func (c rangeChecker) HasAdjustedLog(ctx context.Context, field database.LogIDField, id int, row analysis.RawLogRow) (bool, error) {
	day, ok := analysis.ParseDate(row.Date)
	if !ok || (!day.Before(c.from) && !day.After(c.to)) {
		return false, nil
	}
	return c.checker.HasAdjustedLog(ctx, field, id, row)
}

type slotKey struct {
	field   database.LogIDField
	id      int
	machine string
	date    string
	start   string
	end     string
}

func newSlotKey(field database.LogIDField, id int, r analysis.RawLogRow) slotKey {
	return slotKey{field: field, id: id, machine: r.MachineID, date: r.Date, start: r.StartTime, end: r.EndTime}
}

// DeduplicateLogIDs normalizes retransmitted log ids. An id above
// RetransmitOffset is reduced by it, and the row is dropped when a row with
// the reduced id already exists for the same machine, date and time slot,
// either in the store or earlier in the batch.
func DeduplicateLogIDs(ctx context.Context, checker LogChecker, rows []analysis.RawLogRow) ([]analysis.RawLogRow, int, error) {
	seen := make(map[slotKey]struct{}, len(rows)*2)
	out := make([]analysis.RawLogRow, 0, len(rows))
	dropped := 0

	for _, row := range rows {
		dup := false
		for _, f := range []database.LogIDField{database.TxLogID, database.StrLogID} {
			id := logID(row, f)
			if id <= RetransmitOffset {
				continue
			}
			adjusted := id - RetransmitOffset
			if _, ok := seen[newSlotKey(f, adjusted, row)]; ok {
				dup = true
				break
			}
			if checker != nil {
				exists, err := checker.HasAdjustedLog(ctx, f, adjusted, row)
				if err != nil {
					return nil, dropped, err
				}
				if exists {
					dup = true
					break
				}
			}
			setLogID(&row, f, adjusted)
		}
		if dup {
			dropped++
			continue
		}

		seen[newSlotKey(database.TxLogID, row.TxLogID, row)] = struct{}{}
		seen[newSlotKey(database.StrLogID, row.StrLogID, row)] = struct{}{}
		out = append(out, row)
	}
	return out, dropped, nil
}

func logID(r analysis.RawLogRow, f database.LogIDField) int {
	if f == database.TxLogID {
		return r.TxLogID
	}
	return r.StrLogID
}

func setLogID(r *analysis.RawLogRow, f database.LogIDField, id int) {
	if f == database.TxLogID {
		r.TxLogID = id
	} else {
		r.StrLogID = id
	}
}
