// Package memory provides an in-process implementation of the persistence
// contracts. It is used by tests and by single-node deployments that do not
// need durability.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// Storage keeps branches, rooms and schedules in maps guarded by one RWMutex.
type Storage struct {
	mu        sync.RWMutex
	branches  map[string]persistence.Branch
	rooms     map[string]persistence.Room
	schedules map[string]persistence.RoomSchedule
}

var (
	_ persistence.BranchRepository = (*Storage)(nil)
	_ persistence.RoomRepository   = (*Storage)(nil)
	_ persistence.ScheduleStore    = (*Storage)(nil)
)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		branches:  make(map[string]persistence.Branch),
		rooms:     make(map[string]persistence.Room),
		schedules: make(map[string]persistence.RoomSchedule),
	}
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// --- BranchRepository implementation ---

// CreateBranch stores a new branch.
func (s *Storage) CreateBranch(ctx context.Context, branch persistence.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.branches[branch.ID]; ok {
		return fmt.Errorf("memory: branch %s: %w", branch.ID, persistence.ErrDuplicate)
	}
	branch.CreatedAt = branch.CreatedAt.UTC()
	s.branches[branch.ID] = branch
	return nil
}

// GetBranch retrieves a branch by ID.
func (s *Storage) GetBranch(ctx context.Context, id string) (persistence.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branch, ok := s.branches[id]
	if !ok {
		return persistence.Branch{}, persistence.ErrNotFound
	}
	return branch, nil
}

// ListBranches returns all branches ordered by name.
func (s *Storage) ListBranches(ctx context.Context) ([]persistence.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branches := make([]persistence.Branch, 0, len(s.branches))
	for _, branch := range s.branches {
		branches = append(branches, branch)
	}
	sort.Slice(branches, func(i, j int) bool {
		if branches[i].Name == branches[j].Name {
			return branches[i].ID < branches[j].ID
		}
		return branches[i].Name < branches[j].Name
	})
	return branches, nil
}

// --- RoomRepository implementation ---

// CreateRoom stores a new room. The owning branch must exist.
func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("memory: room %s: %w", room.ID, persistence.ErrDuplicate)
	}
	if _, ok := s.branches[room.BranchID]; !ok {
		return fmt.Errorf("memory: branch %s: %w", room.BranchID, persistence.ErrForeignKeyViolation)
	}
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// UpdateRoom replaces a room's mutable fields.
func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rooms[room.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if room.BranchID != existing.BranchID {
		if _, ok := s.branches[room.BranchID]; !ok {
			return fmt.Errorf("memory: branch %s: %w", room.BranchID, persistence.ErrForeignKeyViolation)
		}
	}
	room.CreatedAt = existing.CreatedAt
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return cloneRoom(room), nil
}

// ListRooms returns rooms matching the filter ordered by name.
func (s *Storage) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if filter.BranchID != "" && room.BranchID != filter.BranchID {
			continue
		}
		if filter.ActiveOnly && !room.Active {
			continue
		}
		rooms = append(rooms, cloneRoom(room))
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

// --- ScheduleStore implementation ---

// LoadActiveSchedules returns the room's active schedules ordered by start.
func (s *Storage) LoadActiveSchedules(ctx context.Context, roomID string) ([]persistence.RoomSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.activeLocked(roomID, ""), nil
}

// InsertSchedule stores schedule unless it overlaps an active schedule of the
// same room.
func (s *Storage) InsertSchedule(ctx context.Context, schedule persistence.RoomSchedule) (persistence.RoomSchedule, error) {
	if err := ctx.Err(); err != nil {
		return persistence.RoomSchedule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.admitLocked(schedule, ""); err != nil {
		return persistence.RoomSchedule{}, err
	}
	stored := cloneSchedule(schedule)
	s.schedules[stored.ID] = stored
	return cloneSchedule(stored), nil
}

// CancelSchedule marks a schedule cancelled. Already-cancelled schedules keep
// their original cancellation time.
func (s *Storage) CancelSchedule(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule, ok := s.schedules[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if schedule.CancelledAt != nil {
		return nil
	}
	cancelled := at.UTC()
	schedule.CancelledAt = &cancelled
	s.schedules[id] = schedule
	return nil
}

// GetSchedule retrieves a schedule by ID, cancelled or not.
func (s *Storage) GetSchedule(ctx context.Context, id string) (persistence.RoomSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedule, ok := s.schedules[id]
	if !ok {
		return persistence.RoomSchedule{}, persistence.ErrNotFound
	}
	return cloneSchedule(schedule), nil
}

// ListSchedules returns schedules intersecting the filter window ordered by
// start, then ID.
func (s *Storage) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.RoomSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var schedules []persistence.RoomSchedule
	for _, schedule := range s.schedules {
		if matchesScheduleFilter(schedule, filter) {
			schedules = append(schedules, cloneSchedule(schedule))
		}
	}
	sortSchedules(schedules)
	return schedules, nil
}

// ReplaceSchedule cancels cancelID and inserts next atomically.
func (s *Storage) ReplaceSchedule(ctx context.Context, cancelID string, at time.Time, next persistence.RoomSchedule) (persistence.RoomSchedule, error) {
	if err := ctx.Err(); err != nil {
		return persistence.RoomSchedule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.schedules[cancelID]
	if !ok || old.CancelledAt != nil {
		return persistence.RoomSchedule{}, persistence.ErrNotFound
	}
	if err := s.admitLocked(next, cancelID); err != nil {
		return persistence.RoomSchedule{}, err
	}

	cancelled := at.UTC()
	old.CancelledAt = &cancelled
	s.schedules[cancelID] = old
	stored := cloneSchedule(next)
	s.schedules[stored.ID] = stored
	return cloneSchedule(stored), nil
}

// admitLocked mirrors the SQL store's constraints and conditional insert.
func (s *Storage) admitLocked(schedule persistence.RoomSchedule, ignoreID string) error {
	if _, ok := s.schedules[schedule.ID]; ok {
		return fmt.Errorf("memory: schedule %s: %w", schedule.ID, persistence.ErrDuplicate)
	}
	if !schedule.Start.Before(schedule.End) {
		return fmt.Errorf("memory: schedule %s: start must precede end: %w", schedule.ID, persistence.ErrConstraintViolation)
	}
	if !schedule.Storable() {
		return fmt.Errorf("memory: schedule %s: instant out of range: %w", schedule.ID, persistence.ErrConstraintViolation)
	}
	if _, ok := s.rooms[schedule.RoomID]; !ok {
		return fmt.Errorf("memory: room %s: %w", schedule.RoomID, persistence.ErrForeignKeyViolation)
	}
	for _, existing := range s.activeLocked(schedule.RoomID, ignoreID) {
		if existing.Start.Before(schedule.End) && schedule.Start.Before(existing.End) {
			return persistence.ErrOverlap
		}
	}
	return nil
}

func (s *Storage) activeLocked(roomID, ignoreID string) []persistence.RoomSchedule {
	var schedules []persistence.RoomSchedule
	for id, schedule := range s.schedules {
		if id == ignoreID || schedule.RoomID != roomID || schedule.CancelledAt != nil {
			continue
		}
		schedules = append(schedules, cloneSchedule(schedule))
	}
	sortSchedules(schedules)
	return schedules
}

func cloneRoom(room persistence.Room) persistence.Room {
	room.CreatedAt = room.CreatedAt.UTC()
	room.UpdatedAt = room.UpdatedAt.UTC()
	return room
}

func cloneSchedule(schedule persistence.RoomSchedule) persistence.RoomSchedule {
	clone := schedule
	clone.Start = schedule.Start.UTC()
	clone.End = schedule.End.UTC()
	clone.CreatedAt = schedule.CreatedAt.UTC()
	if schedule.CancelledAt != nil {
		cancelled := schedule.CancelledAt.UTC()
		clone.CancelledAt = &cancelled
	}
	return clone
}

func sortSchedules(schedules []persistence.RoomSchedule) {
	sort.Slice(schedules, func(i, j int) bool {
		if schedules[i].Start.Equal(schedules[j].Start) {
			return schedules[i].ID < schedules[j].ID
		}
		return schedules[i].Start.Before(schedules[j].Start)
	})
}

func matchesScheduleFilter(schedule persistence.RoomSchedule, filter persistence.ScheduleFilter) bool {
	if filter.RoomID != "" && schedule.RoomID != filter.RoomID {
		return false
	}
	if !filter.IncludeCancelled && schedule.CancelledAt != nil {
		return false
	}
	if !filter.To.IsZero() && !schedule.Start.Before(filter.To) {
		return false
	}
	if !filter.From.IsZero() && !filter.From.Before(schedule.End) {
		return false
	}
	return true
}
