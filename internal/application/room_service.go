package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/example/room-booking/internal/persistence"
)

const (
	maxNameLength   = 100
	maxDetailLength = 1000
)

// CatalogRepository captures the persistence operations needed by RoomService.
type CatalogRepository interface {
	persistence.BranchRepository
	persistence.RoomRepository
}

// RoomService maintains the catalog of branches and rooms. Mutations are
// restricted to administrators.
type RoomService struct {
	catalog     CatalogRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(catalog CatalogRepository, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(catalog, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(catalog CatalogRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{catalog: catalog, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateBranch registers a new branch.
func (s *RoomService) CreateBranch(ctx context.Context, params CreateBranchParams) (branch Branch, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateBranch", "principal_id", params.Principal.RequesterID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create branch", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("branch_id", branch.ID).InfoContext(ctx, "branch created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrForbidden
		return
	}
	vErr := &ValidationError{}
	name := validateName(vErr, "name", params.Name)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	record := persistence.Branch{ID: s.idGenerator(), Name: name, CreatedAt: s.now().UTC()}
	if err = s.catalog.CreateBranch(ctx, record); err != nil {
		err = mapCatalogError("CreateBranch", err)
		return
	}
	branch = toBranch(record)
	return
}

// ListBranches returns every branch ordered by name.
func (s *RoomService) ListBranches(ctx context.Context) ([]Branch, error) {
	if s == nil {
		return nil, fmt.Errorf("RoomService is nil")
	}
	records, err := s.catalog.ListBranches(ctx)
	if err != nil {
		err = mapCatalogError("ListBranches", err)
		s.loggerWith(ctx, "ListBranches").ErrorContext(ctx, "failed to list branches", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	branches := make([]Branch, 0, len(records))
	for _, record := range records {
		branches = append(branches, toBranch(record))
	}
	return branches, nil
}

// CreateRoom adds an active room to an existing branch.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.RequesterID,
		"branch_id", params.BranchID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrForbidden
		return
	}

	vErr := &ValidationError{}
	name := validateName(vErr, "name", params.Name)
	detail := strings.TrimSpace(params.Detail)
	if utf8.RuneCountInString(detail) > maxDetailLength {
		vErr.add("detail", fmt.Sprintf("detail must be at most %d characters", maxDetailLength))
	}
	if strings.TrimSpace(params.BranchID) == "" {
		vErr.add("branch_id", "branch_id is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, err = s.catalog.GetBranch(ctx, params.BranchID); err != nil {
		err = mapCatalogError("CreateRoom", err)
		return
	}

	now := s.now().UTC()
	record := persistence.Room{
		ID:        s.idGenerator(),
		BranchID:  params.BranchID,
		Name:      name,
		Detail:    detail,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.catalog.CreateRoom(ctx, record); err != nil {
		err = mapCatalogError("CreateRoom", err)
		return
	}
	room = toRoom(record)
	return
}

// ListRooms returns rooms matching the filter ordered by name.
func (s *RoomService) ListRooms(ctx context.Context, params ListRoomsParams) ([]Room, error) {
	if s == nil {
		return nil, fmt.Errorf("RoomService is nil")
	}
	records, err := s.catalog.ListRooms(ctx, persistence.RoomFilter{BranchID: params.BranchID, ActiveOnly: params.ActiveOnly})
	if err != nil {
		err = mapCatalogError("ListRooms", err)
		s.loggerWith(ctx, "ListRooms").ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	rooms := make([]Room, 0, len(records))
	for _, record := range records {
		rooms = append(rooms, toRoom(record))
	}
	return rooms, nil
}

// GetRoom returns a single room.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (Room, error) {
	if s == nil {
		return Room{}, fmt.Errorf("RoomService is nil")
	}
	record, err := s.catalog.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapCatalogError("GetRoom", err)
	}
	return toRoom(record), nil
}

// SetRoomStatus activates or deactivates a room. Deactivation blocks new
// bookings; existing bookings are left untouched.
func (s *RoomService) SetRoomStatus(ctx context.Context, params SetRoomStatusParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SetRoomStatus",
		"principal_id", params.Principal.RequesterID,
		"room_id", params.RoomID,
		"active", params.Active,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room status updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrForbidden
		return
	}

	var record persistence.Room
	if record, err = s.catalog.GetRoom(ctx, params.RoomID); err != nil {
		err = mapCatalogError("SetRoomStatus", err)
		return
	}
	if record.Active == params.Active {
		room = toRoom(record)
		return
	}

	record.Active = params.Active
	record.UpdatedAt = s.now().UTC()
	if err = s.catalog.UpdateRoom(ctx, record); err != nil {
		err = mapCatalogError("SetRoomStatus", err)
		return
	}
	room = toRoom(record)
	return
}

func validateName(vErr *ValidationError, field, value string) string {
	trimmed := strings.TrimSpace(value)
	switch {
	case trimmed == "":
		vErr.add(field, field+" is required")
	case utf8.RuneCountInString(trimmed) > maxNameLength:
		vErr.add(field, fmt.Sprintf("%s must be at most %d characters", field, maxNameLength))
	}
	return trimmed
}

func mapCatalogError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("branch_id", "branch does not exist")
		return vErr
	}
	return storeFailure(op, err)
}
