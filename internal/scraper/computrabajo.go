package scraper

import (
	"github.com/PuerkitoBio/goquery"

	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/normalize"
)

const (
	compuTrabajoBase   = "https://uy.computrabajo.com"
	compuTrabajoTag    = "computrabajo"
	compuTrabajoOffers = `article[data-link], .box_offer, .job-offer, div[id*="offer"]`
)

// NewCompuTrabajo builds the extractor for the CompuTrabajo listing page.
func NewCompuTrabajo(src model.Source, deps Deps) Extractor {
	e := newHTMLExtractor(src, deps, false)
	base := deps.Settings.Param("base_url", compuTrabajoBase)

	e.layers = []layer{{name: "offers", extract: func(doc *goquery.Document) ([]model.Candidate, bool) {
		sel := doc.Find(compuTrabajoOffers)
		return e.each(sel, func(s *goquery.Selection) (model.Candidate, bool) {
			title := firstText(s, `h2, h3, .js-o-link, a[class*="title"]`, 0)
			if title == "" {
				return model.Candidate{}, false
			}
			link := firstAttr(s, "a", "href")
			if link == "" {
				link, _ = s.Attr("data-link")
			}
			url := normalize.NormalizeURL(link, base)
			return model.Candidate{
				ExternalID:  normalize.ExternalID(compuTrabajoTag, url),
				Title:       title,
				Company:     orDefault(firstText(s, `.company, [class*="company"]`, 0), "No especificada"),
				Location:    orDefault(firstText(s, `.location, [class*="location"], [class*="lugar"]`, 0), "Uruguay"),
				Description: orDefault(firstText(s, ".offer_description, p", 500), title),
				URL:         url,
				PostedDate:  e.dateOr(s.Find(`.date, time, [class*="fecha"]`).Text()),
				Salary:      strPtr(firstText(s, `.salary, [class*="salario"]`, 0)),
			}, true
		}), sel.Length() > 0
	}}}
	return e
}
