package database

import (
	"context"
	"fmt"

	"weighbridge/internal/weighment"
)

// ChangeRecord is one row of change_log, written by triggers on every
// insert, update and delete of the domain tables.
type ChangeRecord struct {
	Seq int64
	weighment.ChangeEvent
}

// LatestChangeSeq returns the highest change_log sequence, or 0 when empty.
func (s *SQLDatabase) LatestChangeSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM change_log`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("reading latest change sequence: %w", err)
	}
	return seq, nil
}

// ChangesSince returns up to limit change records with seq > after, oldest first.
func (s *SQLDatabase) ChangesSince(ctx context.Context, after int64, limit int) ([]ChangeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT seq, table_name, op, row_id, changed_at FROM change_log WHERE seq > ? ORDER BY seq LIMIT ?`),
		after, limit)
	if err != nil {
		return nil, fmt.Errorf("reading change log: %w", err)
	}
	defer rows.Close()

	var records []ChangeRecord
	for rows.Next() {
		var r ChangeRecord
		if err := rows.Scan(&r.Seq, &r.Table, &r.Op, &r.RowID, &r.At); err != nil {
			return nil, fmt.Errorf("scanning change log: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading change log: %w", err)
	}
	return records, nil
}
