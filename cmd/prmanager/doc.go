// Package main hosts the prmanager CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into dashboard
// intents against the pipeline API: publication management, workflow paging,
// manual downloads, out-of-band checks, and the live `watch` view. It
// centralizes configuration resolution and logger setup so subcommands only
// build intents and render results.
//
// Keep this package lean: state handling lives in internal/dashboard and the
// packages it coordinates; commands here only translate flags and print.
package main
