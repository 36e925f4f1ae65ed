package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/birabittoh/pr-manager/internal/health"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiClear  = "\x1b[H\x1b[2J"
)

const (
	statusLabelWidth = 14
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// healthLines renders liveness and the next-check countdown at now.
func healthLines(snap health.Snapshot, baseURL string, now time.Time, colorize bool) []string {
	var lines []string
	switch snap.State() {
	case health.StateOnline:
		lines = append(lines, renderStatusLine("Pipeline", statusOK, "online ("+baseURL+")", colorize))
	case health.StateUnknown:
		lines = append(lines, renderStatusLine("Pipeline", statusInfo, "checking "+baseURL, colorize))
	default:
		message := "offline (" + baseURL + ")"
		if snap.Err == nil && snap.Status != "" {
			message = fmt.Sprintf("status %q (%s)", snap.Status, baseURL)
		}
		lines = append(lines, renderStatusLine("Pipeline", statusError, message, colorize))
	}

	if snap.HasCountdown {
		lines = append(lines, renderStatusLine("Next check", statusInfo, "in "+formatCountdown(snap.Remaining(now)), colorize))
	} else {
		lines = append(lines, renderStatusLine("Next check", statusWarn, "unknown", colorize))
	}
	if snap.Live && absDuration(snap.ClockSkew) >= time.Minute {
		lines = append(lines, renderStatusLine("Clock skew", statusWarn, formatSkew(snap.ClockSkew), colorize))
	}
	return lines
}

func threadLines(snap health.Snapshot, colorize bool) []string {
	lines := make([]string, 0, len(snap.Threads))
	for _, thread := range snap.Threads {
		kind := statusOK
		if !thread.IsAlive {
			kind = statusError
		}
		message := thread.Status
		if message == "" {
			message = "alive"
			if !thread.IsAlive {
				message = "stopped"
			}
		}
		lines = append(lines, renderStatusLine(thread.Name, kind, message, colorize))
	}
	return lines
}

// formatCountdown renders d as MM:SS, or HH:MM:SS from one hour up.
func formatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	hours, minutes, seconds := total/3600, (total%3600)/60, total%60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func formatSkew(d time.Duration) string {
	direction := "ahead"
	if d < 0 {
		direction = "behind"
	}
	return fmt.Sprintf("server clock %s %s", absDuration(d).Round(time.Second), direction)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
