package scraper

import (
	"github.com/PuerkitoBio/goquery"

	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/normalize"
)

const (
	buscoJobsBase  = "https://www.buscojobs.com.uy"
	buscoJobsTag   = "buscojobs"
	buscoJobsCards = ".job-item, .job-card, article.job, .offer-item"
)

// NewBuscoJobs builds the extractor for the BuscoJobs listing page.
func NewBuscoJobs(src model.Source, deps Deps) Extractor {
	e := newHTMLExtractor(src, deps, false)
	base := deps.Settings.Param("base_url", buscoJobsBase)

	e.layers = []layer{{name: "cards", extract: func(doc *goquery.Document) ([]model.Candidate, bool) {
		sel := doc.Find(buscoJobsCards)
		return e.each(sel, func(s *goquery.Selection) (model.Candidate, bool) {
			title := firstText(s, "h2, h3, .job-title, .title", 0)
			if title == "" {
				return model.Candidate{}, false
			}
			url := normalize.NormalizeURL(firstAttr(s, "a", "href"), base)
			return model.Candidate{
				ExternalID:  normalize.ExternalID(buscoJobsTag, url),
				Title:       title,
				Company:     orDefault(firstText(s, ".company, .employer, .company-name", 0), "No especificada"),
				Location:    orDefault(firstText(s, ".location, .city, .place", 0), "Uruguay"),
				Description: orDefault(firstText(s, ".description, .summary, p", 500), title),
				URL:         url,
				PostedDate:  e.dateOr(s.Find(".date, .posted, time").Text()),
			}, true
		}), sel.Length() > 0
	}}}
	return e
}
