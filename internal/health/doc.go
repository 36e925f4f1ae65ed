// Package health tracks backend liveness and the countdown to its next
// scheduled check.
//
// Each Poll replaces the snapshot. Between polls Remaining decays the
// countdown against the local clock; the next poll corrects any drift.
package health
