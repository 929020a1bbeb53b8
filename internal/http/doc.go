// Package http exposes the booking service over JSON/HTTP.
//
// The router exposes the following endpoints:
//   - POST /branches, GET /branches: branch catalog. Creation requires override authority.
//   - POST /branches/:branchID/rooms, GET /rooms, GET /rooms/:roomID,
//     PATCH /rooms/:roomID/status: room catalog. Deactivated rooms keep their
//     bookings but admit no new ones.
//   - POST /rooms/:roomID/bookings: body {"start","end"} in RFC3339. Responds 201
//     with the booking, 409 with the conflicting booking on overlap, 422 for an
//     empty or inverted interval and 503 with Retry-After when the store or the
//     room lock is unavailable.
//   - GET /rooms/:roomID/bookings?from=&to=&include_cancelled=: bookings
//     intersecting the window ordered by start.
//   - GET /rooms/:roomID/availability?start=&end=: {"free": bool}.
//   - PUT /bookings/:scheduleID: reschedule. DELETE /bookings/:scheduleID: cancel (204).
//   - GET /healthz, GET /metrics.
//
// The upstream gateway identifies the caller with X-Requester-ID and grants
// override authority with X-Requester-Override: true. Write endpoints answer
// 401 when no requester is supplied.
package http
