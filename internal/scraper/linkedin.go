package scraper

import (
	"github.com/PuerkitoBio/goquery"

	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/normalize"
)

const (
	linkedInBase  = "https://www.linkedin.com"
	linkedInTag   = "li"
	linkedInCards = ".base-card, .job-card-container, .jobs-search__results-list li"
	linkedInDate  = "time, .job-search-card__listdate"
)

// NewLinkedIn builds the extractor for the public (guest) LinkedIn job search
// page. Only cards present in the served HTML are seen.
func NewLinkedIn(src model.Source, deps Deps) Extractor {
	e := newHTMLExtractor(src, deps, false)
	base := deps.Settings.Param("base_url", linkedInBase)

	e.layers = []layer{{name: "cards", extract: func(doc *goquery.Document) ([]model.Candidate, bool) {
		sel := doc.Find(linkedInCards)
		return e.each(sel, func(s *goquery.Selection) (model.Candidate, bool) {
			title := firstText(s, "h3, .base-search-card__title, .job-card-list__title", 0)
			link := firstAttr(s, "a", "href")
			if title == "" || link == "" {
				return model.Candidate{}, false
			}
			url := normalize.NormalizeURL(link, base)

			dateText := firstAttr(s, linkedInDate, "datetime")
			if dateText == "" {
				dateText = s.Find(linkedInDate).First().Text()
			}
			posted, _ := normalize.ParseDateAt(dateText, e.now())

			return model.Candidate{
				ExternalID:  normalize.ExternalID(linkedInTag, url),
				Title:       title,
				Company:     orDefault(firstText(s, "h4, .base-search-card__subtitle, .job-card-container__company-name", 0), "Empresa confidencial"),
				Location:    orDefault(firstText(s, ".job-search-card__location, .job-card-container__metadata-item", 0), "Uruguay"),
				Description: orDefault(firstText(s, ".base-search-card__snippet, .job-card-list__snippet", 1000), "Visita LinkedIn para más detalles."),
				URL:         url,
				PostedDate:  posted,
				Category:    "general",
			}, true
		}), sel.Length() > 0
	}}}
	return e
}
