// Package api defines the JSON payloads exchanged with the pipeline backend
// and the small pure helpers that interpret them.
//
// Besides the wire structs it owns two conventions the rest of the client
// relies on: how a publication name becomes a display label when the backend
// has none, and how workflow keys embed a YYYYMMDD date that is shown as
// DD/MM/YYYY and entered as YYYY-MM-DD.
package api
