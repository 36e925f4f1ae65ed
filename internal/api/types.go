package api

import (
	"strings"
	"time"
)

// HealthStatusOK is the status value the backend reports when the pipeline is live.
const HealthStatusOK = "ok"

// Publication describes a configured source feed in a transport-friendly format.
type Publication struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	IssueID     string `json:"issue_id"`
	MaxScale    int    `json:"max_scale"`
	Language    string `json:"language"`
	Enabled     bool   `json:"enabled"`
}

// Label returns the display name, falling back to the name-derived form.
func (p Publication) Label() string {
	if label := strings.TrimSpace(p.DisplayName); label != "" {
		return label
	}
	return DeriveDisplayName(p.Name)
}

// PublicationCreate is the body of POST /api/publications.
type PublicationCreate struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	IssueID     string `json:"issue_id"`
	MaxScale    int    `json:"max_scale"`
	Language    string `json:"language"`
}

// PublicationPatch is the body of PATCH /api/publications/{name}. Nil fields are omitted.
type PublicationPatch struct {
	DisplayName *string `json:"display_name,omitempty"`
	IssueID     *string `json:"issue_id,omitempty"`
	MaxScale    *int    `json:"max_scale,omitempty"`
	Language    *string `json:"language,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p PublicationPatch) Empty() bool {
	return p.DisplayName == nil && p.IssueID == nil && p.MaxScale == nil && p.Language == nil && p.Enabled == nil
}

// Apply returns a copy of pub with the patch fields applied.
func (p PublicationPatch) Apply(pub Publication) Publication {
	if p.DisplayName != nil {
		pub.DisplayName = strings.TrimSpace(*p.DisplayName)
	}
	if p.IssueID != nil {
		pub.IssueID = *p.IssueID
	}
	if p.MaxScale != nil {
		pub.MaxScale = *p.MaxScale
	}
	if p.Language != nil {
		pub.Language = *p.Language
	}
	if p.Enabled != nil {
		pub.Enabled = *p.Enabled
	}
	return pub
}

// WorkflowEntry is the per-date processing record for one publication.
type WorkflowEntry struct {
	PublicationName string `json:"publication_name"`
	Key             string `json:"key,omitempty"`
	Date            string `json:"date,omitempty"`
	Downloaded      bool   `json:"downloaded"`
	OCRProcessed    bool   `json:"ocr_processed"`
	Uploaded        bool   `json:"uploaded"`
}

// ID returns the opaque composite identity of the entry.
func (e WorkflowEntry) ID() string {
	if key := strings.TrimSpace(e.Key); key != "" {
		return key
	}
	return e.PublicationName + fileKeySeparator + e.WireDate()
}

// WireDate returns the entry's YYYYMMDD date, read from Date or extracted from Key.
func (e WorkflowEntry) WireDate() string {
	if date := strings.TrimSpace(e.Date); isWireDate(date) {
		return date
	}
	if date, err := WireDate(e.Date); err == nil {
		return date
	}
	if date, ok := DateFromKey(e.Key); ok {
		return date
	}
	return strings.TrimSpace(e.Date)
}

// Stage returns the furthest pipeline stage the entry reached.
func (e WorkflowEntry) Stage() string {
	switch {
	case e.Uploaded:
		return StageUploaded
	case e.OCRProcessed:
		return StageOCR
	case e.Downloaded:
		return StageDownloaded
	default:
		return StagePending
	}
}

// Pipeline stage labels reported by WorkflowEntry.Stage.
const (
	StagePending    = "pending"
	StageDownloaded = "downloaded"
	StageOCR        = "ocr"
	StageUploaded   = "uploaded"
)

// WorkflowPage is the body of GET /api/workflow.
type WorkflowPage struct {
	Workflows  []WorkflowEntry `json:"workflows"`
	TotalPages int             `json:"total_pages"`
}

// HealthSnapshot is the body of GET /api/health.
type HealthSnapshot struct {
	Status             string `json:"status"`
	Timestamp          string `json:"timestamp"`
	NextCheckInSeconds int    `json:"next_check_in_seconds"`
}

// ServerTime parses Timestamp. Backends emit ISO-8601 with or without zone and
// fraction; zoneless values are read as local time.
func (h HealthSnapshot) ServerTime() (time.Time, bool) {
	value := strings.TrimSpace(h.Timestamp)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02 15:04:05.999999"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Thread describes one backend worker thread.
type Thread struct {
	Name    string `json:"name"`
	IsAlive bool   `json:"is_alive"`
	Status  string `json:"status"`
}

// DownloadRequest is the body of POST /api/download.
type DownloadRequest struct {
	PublicationName string   `json:"publication_name"`
	Dates           []string `json:"dates"`
}

// DownloadResult is the response of POST /api/download.
type DownloadResult struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// CheckItem is the item shape the mock backend reports from POST /api/check.
// Clients only count the items.
type CheckItem struct {
	PublicationName string `json:"publication_name"`
	Date            string `json:"date"`
}

// ErrorBody is the JSON shape of 4xx responses.
type ErrorBody struct {
	Detail string `json:"detail"`
}
