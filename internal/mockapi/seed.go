package mockapi

import (
	"time"

	"github.com/birabittoh/pr-manager/internal/api"
)

var seedPublications = []api.Publication{
	{Name: "corriere-della-sera", DisplayName: "Corriere della Sera", IssueID: "CDSR", MaxScale: 3, Language: "it", Enabled: true},
	{Name: "la-gazzetta", IssueID: "GZZT", MaxScale: 2, Language: "it", Enabled: true},
	{Name: "daily-times", DisplayName: "The Daily Times", IssueID: "DLTM", MaxScale: 4, Language: "en", Enabled: true},
	{Name: "le-monde", IssueID: "LMND", MaxScale: 3, Language: "fr", Enabled: false},
}

// Seed fills the backend with sample publications and days of workflow
// history ending at the server clock's current day.
func (s *Server) Seed(days int) {
	if days < 1 {
		days = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pub := range seedPublications {
		s.publications[pub.Name] = pub
	}
	// An orphaned entry whose publication was removed.
	retired := "weekly-review"

	today := s.now()
	for offset := days - 1; offset >= 0; offset-- {
		date := today.AddDate(0, 0, -offset).Format("20060102")
		for i, pub := range seedPublications {
			if !pub.Enabled {
				continue
			}
			entry := api.WorkflowEntry{
				PublicationName: pub.Name,
				Date:            date,
				Downloaded:      true,
				OCRProcessed:    offset > 0 || i%2 == 0,
				Uploaded:        offset > 1,
			}
			if i%2 == 0 {
				entry.Key = pub.IssueID + date + "00"
			} else {
				entry.Key = pub.Name + "_" + date + ".pdf"
			}
			s.upsertEntryLocked(entry)
		}
		if offset == days-1 {
			s.upsertEntryLocked(api.WorkflowEntry{
				PublicationName: retired,
				Key:             retired + "_" + date + ".pdf",
				Date:            date,
				Downloaded:      true,
				OCRProcessed:    true,
				Uploaded:        true,
			})
		}
	}
	s.nextCheck = today.Add(s.checkInterval / 2).Truncate(time.Second)
}
