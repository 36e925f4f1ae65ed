// Package dashboard coordinates the publication store, workflow pager and
// health monitor.
//
// The Controller owns the polling cadence: every tick polls health, reloads
// the workflow window only while the workflow view is visible, and reloads
// publications when the cache is missing or was marked stale by a failed
// toggle. A kind that still has a request outstanding is skipped, so a slow
// backend never accumulates concurrent polls.
//
// User actions arrive as Intents through Dispatch. A confirmed publication
// change always reloads the publication list and, when visible, the workflow
// window with its current page and search. Renderers watch Changes.
package dashboard
