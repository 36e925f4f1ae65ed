// Package mockapi implements the pipeline HTTP API in memory.
//
// It backs the mock-server command and the package tests. Routes mirror the
// real backend, including its 400 "UNIQUE constraint failed" response on
// duplicate creates and 404 "Publication not found" on unknown names. Test
// hooks (SetLatency, FailNext, SetHook) let callers reorder or fail
// individual requests.
package mockapi
