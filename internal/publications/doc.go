// Package publications caches the backend's publication list and owns the
// create, edit, toggle and delete mutations.
//
// Only SetEnabled is optimistic. Every other mutation touches the cache after
// the backend confirms it, and at most one mutation per publication name may
// be outstanding at a time.
package publications
