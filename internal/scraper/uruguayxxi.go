package scraper

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/normalize"
)

const (
	uruguayXXIBase        = "https://www.uruguayxxi.gub.uy"
	uruguayXXITag         = "uxxi"
	uruguayXXICompany     = "Uruguay XXI"
	uruguayXXIDescription = "Llamado o licitación de Uruguay XXI. Visita el enlace para más información."

	uruguayXXIItems = ".llamados-item, .job-listing, article.llamado, .licitacion-item"
	uruguayXXILinks = "main a, .content a, #content a"

	minRelevantLinkLen = 10
)

var tenderKeywords = []string{"llamado", "licitación", "concurso"}

// NewUruguayXXI builds the strict extractor for the Uruguay XXI tenders page.
// A page with neither listing items nor content links is an error.
func NewUruguayXXI(src model.Source, deps Deps) Extractor {
	e := newHTMLExtractor(src, deps, true)
	base := deps.Settings.Param("base_url", uruguayXXIBase)

	e.layers = []layer{
		{name: "items", extract: func(doc *goquery.Document) ([]model.Candidate, bool) {
			sel := doc.Find(uruguayXXIItems)
			return e.each(sel, func(s *goquery.Selection) (model.Candidate, bool) {
				return e.uruguayXXIItem(s, base)
			}), sel.Length() > 0
		}},
		{name: "links", extract: func(doc *goquery.Document) ([]model.Candidate, bool) {
			sel := doc.Find(uruguayXXILinks)
			return e.each(sel, func(s *goquery.Selection) (model.Candidate, bool) {
				return e.uruguayXXILink(s, base)
			}), sel.Length() > 0
		}},
	}
	return e
}

func (e *htmlExtractor) uruguayXXIItem(s *goquery.Selection, base string) (model.Candidate, bool) {
	title := firstText(s, "h2, h3, .title, .llamado-title", 0)
	if title == "" {
		title = firstText(s, "a", 0)
	}
	if utf8.RuneCountInString(title) < normalize.MinTitleLen {
		return model.Candidate{}, false
	}
	title, closing := normalize.SplitClosingDate(title)

	url := normalize.NormalizeURL(firstAttr(s, "a", "href"), base)

	description := firstText(s, "p, .description, .excerpt", 1000)
	if description == "" {
		description = normalize.CleanText(strings.Replace(s.Text(), title, "", 1), 1000)
	}

	return model.Candidate{
		ExternalID:  normalize.ExternalID(uruguayXXITag, url),
		Title:       title,
		Company:     uruguayXXICompany,
		Location:    "Uruguay",
		Description: orDefault(description, uruguayXXIDescription),
		URL:         url,
		PostedDate:  e.dateOr(s.Find(".date, .fecha, time").Text()),
		ClosingDate: closing,
		JobType:     "Licitación/Llamado",
		Category:    "gobierno",
	}, true
}

func (e *htmlExtractor) uruguayXXILink(s *goquery.Selection, base string) (model.Candidate, bool) {
	text := normalize.CleanText(s.Text(), 0)
	href, _ := s.Attr("href")
	if !isRelevantTenderLink(text, href) {
		return model.Candidate{}, false
	}
	title, closing := normalize.SplitClosingDate(text)
	url := normalize.NormalizeURL(href, base)

	return model.Candidate{
		ExternalID:  normalize.ExternalID(uruguayXXITag, url),
		Title:       title,
		Company:     uruguayXXICompany,
		Location:    "Uruguay",
		Description: uruguayXXIDescription,
		URL:         url,
		PostedDate:  e.today(),
		ClosingDate: closing,
		JobType:     "Licitación/Llamado",
		Category:    "gobierno",
	}, true
}

func isRelevantTenderLink(text, href string) bool {
	if utf8.RuneCountInString(text) < minRelevantLinkLen || href == "" {
		return false
	}
	if strings.Contains(href, "#") || strings.Contains(href, "javascript:") {
		return false
	}
	return normalize.ContainsAny(text, tenderKeywords...)
}
