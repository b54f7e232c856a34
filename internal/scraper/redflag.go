package scraper

import (
	"strings"

	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/normalize"
)

// ContainsRedFlag returns true if any red flag term appears anywhere in the
// candidate's title, company or description. Matching ignores case and
// diacritics.
//
// Candidates that hit a red flag are discarded before they reach the store.
func ContainsRedFlag(c model.Candidate, redFlags []string) bool {
	if len(redFlags) == 0 {
		return false
	}
	combined := normalize.Fold(c.Title + " " + c.Company + " " + c.Description)
	for _, flag := range redFlags {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}
		if strings.Contains(combined, normalize.Fold(flag)) {
			return true
		}
	}
	return false
}
