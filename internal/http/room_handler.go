package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/example/room-booking/internal/application"
)

type roomService interface {
	CreateBranch(ctx context.Context, params application.CreateBranchParams) (application.Branch, error)
	ListBranches(ctx context.Context) ([]application.Branch, error)
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	ListRooms(ctx context.Context, params application.ListRoomsParams) ([]application.Room, error)
	GetRoom(ctx context.Context, roomID string) (application.Room, error)
	SetRoomStatus(ctx context.Context, params application.SetRoomStatusParams) (application.Room, error)
}

// RoomHandler serves the branch and room catalog.
type RoomHandler struct {
	service   roomService
	validator *requestValidator
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, validator: newRequestValidator(), responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

// CreateBranch handles POST /branches.
func (h *RoomHandler) CreateBranch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w, h.responder)
	if !ok {
		return
	}

	var req branchRequest
	if !h.decode(w, r, "CreateBranch", &req) {
		return
	}

	logger := h.log(ctx, "CreateBranch")
	branch, err := h.service.CreateBranch(ctx, application.CreateBranchParams{Principal: principal, Name: req.Name})
	if err != nil {
		logger.ErrorContext(ctx, "branch creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	logger.With("branch_id", branch.ID).InfoContext(ctx, "branch created")
	h.responder.writeJSON(ctx, w, http.StatusCreated, branchResponse{Branch: toBranchDTO(branch)})
}

// ListBranches handles GET /branches.
func (h *RoomHandler) ListBranches(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	branches, err := h.service.ListBranches(ctx)
	if err != nil {
		h.log(ctx, "ListBranches").ErrorContext(ctx, "branch list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	out := make([]branchDTO, 0, len(branches))
	for _, branch := range branches {
		out = append(out, toBranchDTO(branch))
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, listBranchesResponse{Branches: out})
}

// CreateRoom handles POST /branches/:branchID/rooms.
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	branchID := ps.ByName("branchID")
	principal, ok := requirePrincipal(ctx, w, h.responder)
	if !ok {
		return
	}

	var req roomRequest
	if !h.decode(w, r, "CreateRoom", &req) {
		return
	}

	logger := h.log(ctx, "CreateRoom", "branch_id", branchID)
	room, err := h.service.CreateRoom(ctx, application.CreateRoomParams{
		Principal: principal,
		BranchID:  branchID,
		Name:      req.Name,
		Detail:    req.Detail,
	})
	if err != nil {
		logger.ErrorContext(ctx, "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	h.responder.writeJSON(ctx, w, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

// ListRooms handles GET /rooms?branch_id=&active=.
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	query := r.URL.Query()

	params := application.ListRoomsParams{BranchID: strings.TrimSpace(query.Get("branch_id"))}
	if raw := strings.TrimSpace(query.Get("active")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidBoolQuery)
			return
		}
		params.ActiveOnly = active
	}

	rooms, err := h.service.ListRooms(ctx, params)
	if err != nil {
		h.log(ctx, "ListRooms").ErrorContext(ctx, "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.log(ctx, "ListRooms").With("result_count", len(rooms)).DebugContext(ctx, "rooms listed")
	h.responder.writeJSON(ctx, w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

// GetRoom handles GET /rooms/:roomID.
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	room, err := h.service.GetRoom(ctx, ps.ByName("roomID"))
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

// SetStatus handles PATCH /rooms/:roomID/status.
func (h *RoomHandler) SetStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	roomID := ps.ByName("roomID")
	principal, ok := requirePrincipal(ctx, w, h.responder)
	if !ok {
		return
	}

	var req roomStatusRequest
	if !h.decode(w, r, "SetStatus", &req) {
		return
	}

	logger := h.log(ctx, "SetStatus", "room_id", roomID)
	room, err := h.service.SetRoomStatus(ctx, application.SetRoomStatusParams{
		Principal: principal,
		RoomID:    roomID,
		Active:    *req.Active,
	})
	if err != nil {
		logger.ErrorContext(ctx, "room status update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "room status updated", "active", room.Active)
	h.responder.writeJSON(ctx, w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) decode(w http.ResponseWriter, r *http.Request, operation string, req any) bool {
	return decodeRequest(w, r, req, h.validator, h.responder, h.log(r.Context(), operation))
}

type branchRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type roomRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Detail string `json:"detail" validate:"max=1000"`
}

type roomStatusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type branchResponse struct {
	Branch branchDTO `json:"branch"`
}

type listBranchesResponse struct {
	Branches []branchDTO `json:"branches"`
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type branchDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type roomDTO struct {
	ID        string `json:"id"`
	BranchID  string `json:"branch_id"`
	Name      string `json:"name"`
	Detail    string `json:"detail,omitempty"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toBranchDTO(branch application.Branch) branchDTO {
	return branchDTO{ID: branch.ID, Name: branch.Name, CreatedAt: formatTime(branch.CreatedAt)}
}

func toRoomDTO(room application.Room) roomDTO {
	return roomDTO{
		ID:        room.ID,
		BranchID:  room.BranchID,
		Name:      room.Name,
		Detail:    room.Detail,
		Active:    room.Active,
		CreatedAt: formatTime(room.CreatedAt),
		UpdatedAt: formatTime(room.UpdatedAt),
	}
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}
