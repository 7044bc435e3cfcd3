// Package http exposes the agenda and task services over a JSON API.
//
// Every route below /api needs a principal, carried by the X-User-ID and
// X-User-Role headers and an optional X-Division-ID. A missing or unknown
// role is answered with 401 before any handler runs.
//
//   - /api/events: CRUD on calendar events. Create and update responses carry
//     a "warnings" list naming stored events of the same governor that overlap.
//     POST /api/events/{id}/status and /api/events/{id}/notes change the status
//     and append notes. POST /api/events/import reads a text/calendar body.
//   - /api/calendar/conflicts, /availability, /slots: conflict reports over a
//     day or range, availability of a candidate slot, and slot suggestions
//     over the configured working hours.
//   - /api/calendar.ics: the filtered listing as an iCalendar feed.
//   - /api/tasks: division tasks, their status changes and free-form history,
//     the follow-up list and /api/statistics/tasks.
//   - /api/divisions: division catalogue.
//   - /api/me/permissions and /api/me/access?path=: what the caller's role
//     grants and whether it may open a page.
//
// Listing and report responses carry an ETag; a matching If-None-Match is
// answered with 304. Errors share the errorResponse shape defined in
// responder.go. DTOs live next to the handler that produces them.
package http
