package application_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/testfixtures"
)

func TestRoomServiceCatalog(t *testing.T) {
	t.Parallel()
	services := testfixtures.NewServiceFactory().NewServices(testfixtures.ServicesConfig{})
	ctx := context.Background()

	branch, err := services.Rooms.CreateBranch(ctx, application.CreateBranchParams{Principal: admin, Name: "  Tokyo  "})
	require.NoError(t, err)
	assert.Equal(t, "Tokyo", branch.Name)

	room, err := services.Rooms.CreateRoom(ctx, application.CreateRoomParams{
		Principal: admin, BranchID: branch.ID, Name: "Fuji", Detail: "12 seats",
	})
	require.NoError(t, err)
	assert.True(t, room.Active)

	rooms, err := services.Rooms.ListRooms(ctx, application.ListRoomsParams{BranchID: branch.ID})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.ID, rooms[0].ID)

	branches, err := services.Rooms.ListBranches(ctx)
	require.NoError(t, err)
	assert.Len(t, branches, 1)
}

func TestRoomServiceGeneratesIDsByDefault(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rooms := application.NewRoomService(testfixtures.NewSQLiteHarness(t).Store, nil, nil)

	branch, err := rooms.CreateBranch(ctx, application.CreateBranchParams{Principal: admin, Name: "Osaka"})
	require.NoError(t, err)
	assert.NotEmpty(t, branch.ID)

	room, err := rooms.CreateRoom(ctx, application.CreateRoomParams{Principal: admin, BranchID: branch.ID, Name: "Biwa"})
	require.NoError(t, err)
	assert.NotEmpty(t, room.ID)
	assert.NotEqual(t, branch.ID, room.ID)
}

func TestRoomServiceRequiresAdmin(t *testing.T) {
	t.Parallel()
	services := testfixtures.NewServiceFactory().NewServices(testfixtures.ServicesConfig{})
	ctx := context.Background()

	_, err := services.Rooms.CreateBranch(ctx, application.CreateBranchParams{Principal: alice, Name: "Osaka"})
	assert.ErrorIs(t, err, application.ErrForbidden)

	room := testfixtures.SeedRoom(t, services.Store)
	_, err = services.Rooms.SetRoomStatus(ctx, application.SetRoomStatusParams{Principal: alice, RoomID: room.ID})
	assert.ErrorIs(t, err, application.ErrForbidden)
}

func TestRoomServiceValidation(t *testing.T) {
	t.Parallel()
	services := testfixtures.NewServiceFactory().NewServices(testfixtures.ServicesConfig{})
	ctx := context.Background()

	_, err := services.Rooms.CreateRoom(ctx, application.CreateRoomParams{
		Principal: admin, Name: strings.Repeat("x", 101), Detail: strings.Repeat("y", 1001),
	})
	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name must be at most 100 characters", vErr.FieldErrors["name"])
	assert.Equal(t, "detail must be at most 1000 characters", vErr.FieldErrors["detail"])
	assert.Equal(t, "branch_id is required", vErr.FieldErrors["branch_id"])

	_, err = services.Rooms.CreateRoom(ctx, application.CreateRoomParams{Principal: admin, BranchID: "missing", Name: "Fuji"})
	assert.ErrorIs(t, err, application.ErrNotFound)
}

func TestDeactivatedRoomKeepsBookingsButAdmitsNoNewOnes(t *testing.T) {
	t.Parallel()
	services, room := newServices(t, testfixtures.ServicesConfig{})
	ctx := context.Background()
	start, end := testfixtures.Slot(0, time.Hour)
	existing := book(t, services.Bookings, alice, room.ID, start, end)

	updated, err := services.Rooms.SetRoomStatus(ctx, application.SetRoomStatusParams{Principal: admin, RoomID: room.ID, Active: false})
	require.NoError(t, err)
	assert.False(t, updated.Active)

	later := book(t, services.Bookings, alice, room.ID, end, end.Add(time.Hour))
	assert.Equal(t, application.ReasonRoomUnavailable, later.Rejection.Reason)

	stored, err := services.Store.GetSchedule(ctx, existing.Booking.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active())

	cancelled, err := services.Bookings.CancelBooking(ctx, application.CancelBookingParams{Principal: alice, ScheduleID: existing.Booking.ID})
	require.NoError(t, err)
	assert.Equal(t, application.CancelStatusCancelled, cancelled.Status)
}
