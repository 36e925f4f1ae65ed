// Package remote is the typed HTTP client for the publication pipeline API.
//
// Every endpoint the dashboard consumes has one method here; none of them
// cache anything. Failures are classified into NetworkError (the request did
// not complete), ValidationError (4xx, with the backend's detail message kept
// verbatim), ConflictError (duplicate name on create) and StatusError (5xx),
// so callers can decide between surfacing, degrading, and re-syncing.
package remote
