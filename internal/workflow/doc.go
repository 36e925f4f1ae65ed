// Package workflow pages through the backend's workflow entries.
//
// The Pager keeps the current (page, search) query and the last applied
// Window. Every Load takes a ticket; a result whose ticket is no longer the
// newest is discarded with ErrStaleResultDiscarded, so a later request always
// wins regardless of completion order. Failed loads leave the previous window
// in place and mark it stale.
//
// Rows joins entries with publication labels for display. The join is
// read-only and falls back to a label derived from the publication name.
package workflow
