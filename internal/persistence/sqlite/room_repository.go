package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

type branchRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	CreatedAt int64  `db:"created_at"`
}

func (r branchRow) toDomain() persistence.Branch {
	return persistence.Branch{ID: r.ID, Name: r.Name, CreatedAt: fromNanos(r.CreatedAt)}
}

type roomRow struct {
	ID        string `db:"id"`
	BranchID  string `db:"branch_id"`
	Name      string `db:"name"`
	Detail    string `db:"detail"`
	Active    bool   `db:"active"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r roomRow) toDomain() persistence.Room {
	return persistence.Room{
		ID:        r.ID,
		BranchID:  r.BranchID,
		Name:      r.Name,
		Detail:    r.Detail,
		Active:    r.Active,
		CreatedAt: fromNanos(r.CreatedAt),
		UpdatedAt: fromNanos(r.UpdatedAt),
	}
}

const roomColumns = `id, branch_id, name, detail, active, created_at, updated_at`

// CreateBranch inserts a new branch.
func (s *Store) CreateBranch(ctx context.Context, branch persistence.Branch) error {
	if branch.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO branches (id, name, created_at) VALUES (?, ?, ?)`,
			branch.ID, branch.Name, toNanos(branch.CreatedAt),
		)
		return err
	})
}

// GetBranch retrieves a branch by ID.
func (s *Store) GetBranch(ctx context.Context, id string) (persistence.Branch, error) {
	var row branchRow
	if err := s.db.GetContext(ctx, &row, `SELECT id, name, created_at FROM branches WHERE id = ?`, id); err != nil {
		return persistence.Branch{}, mapError(err)
	}
	return row.toDomain(), nil
}

// ListBranches returns all branches ordered by name.
func (s *Store) ListBranches(ctx context.Context) ([]persistence.Branch, error) {
	var rows []branchRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, created_at FROM branches ORDER BY name, id`); err != nil {
		return nil, mapError(err)
	}
	branches := make([]persistence.Branch, 0, len(rows))
	for _, row := range rows {
		branches = append(branches, row.toDomain())
	}
	return branches, nil
}

// CreateRoom inserts a new room. The branch must exist.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO rooms (`+roomColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			room.ID, room.BranchID, room.Name, room.Detail, room.Active,
			toNanos(room.CreatedAt), toNanos(room.UpdatedAt),
		)
		return err
	})
}

// UpdateRoom updates the mutable fields of a room.
func (s *Store) UpdateRoom(ctx context.Context, room persistence.Room) error {
	return s.retry.WithRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE rooms SET branch_id = ?, name = ?, detail = ?, active = ?, updated_at = ? WHERE id = ?`,
			room.BranchID, room.Name, room.Detail, room.Active, toNanos(room.UpdatedAt), room.ID,
		)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	var row roomRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id); err != nil {
		return persistence.Room{}, mapError(err)
	}
	return row.toDomain(), nil
}

// ListRooms returns rooms matching filter ordered by name.
func (s *Store) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	var (
		where []string
		args  []any
	)
	if filter.BranchID != "" {
		where = append(where, "branch_id = ?")
		args = append(args, filter.BranchID)
	}
	if filter.ActiveOnly {
		where = append(where, "active = 1")
	}

	query := `SELECT ` + roomColumns + ` FROM rooms`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name, id`

	var rows []roomRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err)
	}
	rooms := make([]persistence.Room, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, row.toDomain())
	}
	return rooms, nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
