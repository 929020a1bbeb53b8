package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/room-booking/internal/persistence"
)

type scheduleRow struct {
	ID          string        `db:"id"`
	RoomID      string        `db:"room_id"`
	RequesterID string        `db:"requester_id"`
	StartAt     int64         `db:"start_at"`
	EndAt       int64         `db:"end_at"`
	CreatedAt   int64         `db:"created_at"`
	CancelledAt sql.NullInt64 `db:"cancelled_at"`
}

func (r scheduleRow) toDomain() persistence.RoomSchedule {
	schedule := persistence.RoomSchedule{
		ID:          r.ID,
		RoomID:      r.RoomID,
		RequesterID: r.RequesterID,
		Start:       fromNanos(r.StartAt),
		End:         fromNanos(r.EndAt),
		CreatedAt:   fromNanos(r.CreatedAt),
	}
	if r.CancelledAt.Valid {
		cancelled := fromNanos(r.CancelledAt.Int64)
		schedule.CancelledAt = &cancelled
	}
	return schedule
}

const scheduleColumns = `id, room_id, requester_id, start_at, end_at, created_at, cancelled_at`

// insertIfFree inserts the row only when no active schedule of the same room
// overlaps it. The check and the insert are one statement, so the decision is
// made against committed state at write time.
const insertIfFree = `
INSERT INTO room_schedules (id, room_id, requester_id, start_at, end_at, created_at)
SELECT ?, ?, ?, ?, ?, ?
WHERE NOT EXISTS (
	SELECT 1 FROM room_schedules
	WHERE room_id = ? AND cancelled_at IS NULL AND start_at < ? AND ? < end_at
)`

// LoadActiveSchedules returns the room's active schedules ordered by start.
func (s *Store) LoadActiveSchedules(ctx context.Context, roomID string) ([]persistence.RoomSchedule, error) {
	var rows []scheduleRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+scheduleColumns+` FROM room_schedules
		 WHERE room_id = ? AND cancelled_at IS NULL
		 ORDER BY start_at, id`, roomID)
	if err != nil {
		return nil, mapError(err)
	}
	return toSchedules(rows), nil
}

// InsertSchedule stores schedule unless an active overlapping schedule exists,
// in which case persistence.ErrOverlap is returned.
func (s *Store) InsertSchedule(ctx context.Context, schedule persistence.RoomSchedule) (persistence.RoomSchedule, error) {
	if schedule.ID == "" || !schedule.Storable() {
		return persistence.RoomSchedule{}, persistence.ErrConstraintViolation
	}
	err := s.retry.WithRetry(ctx, func() error {
		return s.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			return insertScheduleTx(ctx, tx, schedule)
		})
	})
	if err != nil {
		return persistence.RoomSchedule{}, err
	}
	return normalise(schedule), nil
}

// CancelSchedule sets cancelled_at on an active schedule. Cancelling a
// cancelled schedule is a no-op; an unknown ID is persistence.ErrNotFound.
func (s *Store) CancelSchedule(ctx context.Context, id string, at time.Time) error {
	return s.retry.WithRetry(ctx, func() error {
		return s.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			var cancelled sql.NullInt64
			if err := tx.GetContext(ctx, &cancelled, `SELECT cancelled_at FROM room_schedules WHERE id = ?`, id); err != nil {
				return mapError(err)
			}
			if cancelled.Valid {
				return nil
			}
			_, err := tx.ExecContext(ctx,
				`UPDATE room_schedules SET cancelled_at = ? WHERE id = ? AND cancelled_at IS NULL`,
				toNanos(at), id)
			return mapError(err)
		})
	})
}

// GetSchedule retrieves a schedule by ID regardless of its state.
func (s *Store) GetSchedule(ctx context.Context, id string) (persistence.RoomSchedule, error) {
	var row scheduleRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+scheduleColumns+` FROM room_schedules WHERE id = ?`, id); err != nil {
		return persistence.RoomSchedule{}, mapError(err)
	}
	return row.toDomain(), nil
}

// ListSchedules returns schedules intersecting [filter.From, filter.To),
// ordered by start then ID.
func (s *Store) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.RoomSchedule, error) {
	var (
		where []string
		args  []any
	)
	if filter.RoomID != "" {
		where = append(where, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if !filter.IncludeCancelled {
		where = append(where, "cancelled_at IS NULL")
	}
	if !filter.To.IsZero() {
		where = append(where, "start_at < ?")
		args = append(args, toNanos(filter.To))
	}
	if !filter.From.IsZero() {
		where = append(where, "end_at > ?")
		args = append(args, toNanos(filter.From))
	}

	query := `SELECT ` + scheduleColumns + ` FROM room_schedules`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY start_at, id`

	var rows []scheduleRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err)
	}
	return toSchedules(rows), nil
}

// ReplaceSchedule cancels cancelID and inserts next in one transaction. If the
// old schedule is missing or already cancelled it returns persistence.ErrNotFound;
// if next overlaps another active schedule it returns persistence.ErrOverlap.
// Either way the transaction is rolled back.
func (s *Store) ReplaceSchedule(ctx context.Context, cancelID string, at time.Time, next persistence.RoomSchedule) (persistence.RoomSchedule, error) {
	if next.ID == "" || !next.Storable() {
		return persistence.RoomSchedule{}, persistence.ErrConstraintViolation
	}
	err := s.retry.WithRetry(ctx, func() error {
		return s.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			res, err := tx.ExecContext(ctx,
				`UPDATE room_schedules SET cancelled_at = ? WHERE id = ? AND cancelled_at IS NULL`,
				toNanos(at), cancelID)
			if err != nil {
				return mapError(err)
			}
			if err := requireAffected(res); err != nil {
				return err
			}
			return insertScheduleTx(ctx, tx, next)
		})
	})
	if err != nil {
		return persistence.RoomSchedule{}, err
	}
	return normalise(next), nil
}

func insertScheduleTx(ctx context.Context, tx *sqlx.Tx, schedule persistence.RoomSchedule) error {
	start, end := toNanos(schedule.Start), toNanos(schedule.End)
	res, err := tx.ExecContext(ctx, insertIfFree,
		schedule.ID, schedule.RoomID, schedule.RequesterID, start, end, toNanos(schedule.CreatedAt),
		schedule.RoomID, end, start,
	)
	if err != nil {
		return mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if affected == 0 {
		return persistence.ErrOverlap
	}
	return nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func normalise(schedule persistence.RoomSchedule) persistence.RoomSchedule {
	schedule.Start = schedule.Start.UTC()
	schedule.End = schedule.End.UTC()
	schedule.CreatedAt = schedule.CreatedAt.UTC()
	schedule.CancelledAt = nil
	return schedule
}

func toSchedules(rows []scheduleRow) []persistence.RoomSchedule {
	schedules := make([]persistence.RoomSchedule, 0, len(rows))
	for _, row := range rows {
		schedules = append(schedules, row.toDomain())
	}
	return schedules
}
