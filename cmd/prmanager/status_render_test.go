package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birabittoh/pr-manager/internal/api"
	"github.com/birabittoh/pr-manager/internal/health"
	"github.com/birabittoh/pr-manager/internal/workflow"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Pipeline", statusError, "offline", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Pipeline:", "[ERROR] offline")
	assert.Equal(t, want, got)
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Pipeline", statusOK, "online", true)
	assert.True(t, strings.HasPrefix(got, ansiGreen), "expected green prefix, got %q", got)
	assert.True(t, strings.HasSuffix(got, ansiReset), "expected reset suffix, got %q", got)
}

func TestShouldColorizeNonFile(t *testing.T) {
	assert.False(t, shouldColorize(io.Discard))
}

func TestFormatCountdown(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{-5 * time.Second, "00:00"},
		{0, "00:00"},
		{90 * time.Second, "01:30"},
		{59*time.Minute + 59*time.Second, "59:59"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatCountdown(tc.in), "formatCountdown(%s)", tc.in)
	}
}

func TestHealthLinesOnline(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	snap := health.Snapshot{
		Polled:       true,
		Live:         true,
		Status:       "OK",
		HasCountdown: true,
		NextCheck:    now.Add(75 * time.Second),
		ClockSkew:    2 * time.Minute,
	}
	lines := healthLines(snap, "http://pipeline", now, false)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "[OK] online (http://pipeline)")
	assert.Contains(t, lines[1], "in 01:15")
	assert.Contains(t, lines[2], "server clock 2m0s ahead")
}

func TestHealthLinesOffline(t *testing.T) {
	snap := health.Snapshot{Polled: true, Err: errors.New("connection refused")}
	lines := healthLines(snap, "http://pipeline", time.Now(), false)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[ERROR] offline")
	assert.Contains(t, lines[1], "[WARN] unknown")
}

func TestThreadLines(t *testing.T) {
	snap := health.Snapshot{Threads: []api.Thread{
		{Name: "scheduler", IsAlive: true},
		{Name: "ocr", IsAlive: false},
	}}
	lines := threadLines(snap, false)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[OK] alive")
	assert.Contains(t, lines[1], "[ERROR] stopped")
}

func TestPaginationCaption(t *testing.T) {
	assert.Empty(t, paginationCaption(workflow.Pagination{Visible: false}))
	assert.Equal(t, "  Page 1 of 3 »", paginationCaption(workflow.Pagination{Visible: true, NextEnabled: true, Page: 1, TotalPages: 3}))
	assert.Equal(t, "« Page 3 of 3  ", paginationCaption(workflow.Pagination{Visible: true, PrevEnabled: true, Page: 3, TotalPages: 3}))
}
