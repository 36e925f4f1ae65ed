package workflow

import "github.com/birabittoh/pr-manager/internal/api"

// Row is a workflow entry joined with its publication for display.
type Row struct {
	ID           string
	Publication  string
	Label        string
	Resolved     bool
	Date         string
	DisplayDate  string
	Downloaded   bool
	OCRProcessed bool
	Uploaded     bool
	Stage        string
}

// Pagination describes which paging affordances apply to the current window.
type Pagination struct {
	Visible     bool
	PrevEnabled bool
	NextEnabled bool
	Page        int
	TotalPages  int
}

// Rows joins the current window with the resolver. Unknown publications get
// a label derived from their name.
func (p *Pager) Rows() []Row {
	window := p.Window()
	rows := make([]Row, 0, len(window.Entries))
	for _, entry := range window.Entries {
		rows = append(rows, p.row(entry))
	}
	return rows
}

func (p *Pager) row(entry api.WorkflowEntry) Row {
	label, ok := "", false
	if p.resolver != nil {
		label, ok = p.resolver.Label(entry.PublicationName)
	}
	if !ok || label == "" {
		label = api.DeriveDisplayName(entry.PublicationName)
		ok = false
	}

	date := entry.WireDate()
	display := api.FormatDisplayDate(date)
	if date == "" {
		display = api.DisplayDateFromKey(entry.Key)
	}
	return Row{
		ID:           entry.ID(),
		Publication:  entry.PublicationName,
		Label:        label,
		Resolved:     ok,
		Date:         date,
		DisplayDate:  display,
		Downloaded:   entry.Downloaded,
		OCRProcessed: entry.OCRProcessed,
		Uploaded:     entry.Uploaded,
		Stage:        entry.Stage(),
	}
}

// Controls reports the paging affordances for the current window.
func (p *Pager) Controls() Pagination {
	window := p.Window()
	return paginationFor(window.Page, window.TotalPages)
}

func paginationFor(page, total int) Pagination {
	if page < 1 {
		page = 1
	}
	return Pagination{
		Visible:     total > 1,
		PrevEnabled: total > 1 && page > 1,
		NextEnabled: total > 1 && page < total,
		Page:        page,
		TotalPages:  total,
	}
}
