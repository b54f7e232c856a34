package scraper

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/normalize"
)

const (
	concursaBase        = "https://www.uruguayconcursa.gub.uy"
	concursaListingURL  = concursaBase + "/Portal/servlet/com.si.recsel.dspllamados62"
	concursaTag         = "uc"
	concursaCompany     = "Uruguay Concursa - ONSC"
	concursaJobType     = "Concurso Público"
	concursaLinkDefault = "Concurso público del Estado. Visita el portal de Uruguay Concursa para más detalles."

	concursaRows       = "table tr, .listado tr, .resultado tr, tbody tr"
	concursaContainers = ".llamado, .job-item, .concurso, article, .resultado-item"
)

var (
	// callNumber matches "123/2025" but not the tail of "15/03/2025".
	callNumber   = regexp.MustCompile(`(?:^|[^\d/])(\d{1,5}/\d{4})(?:$|[^\d/])`)
	cellDate     = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)
	onlyDigits   = regexp.MustCompile(`^\d+$`)
	navLinkWords = regexp.MustCompile(`(?i)inicio|mapa|accesibilidad|sesi[oó]n|registrarse`)
)

func findCallNumber(text string) string {
	if m := callNumber.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// NewUruguayConcursa builds the extractor for the civil-service calls portal.
// It tries table rows carrying a call number, then listing containers, then
// bare links.
func NewUruguayConcursa(src model.Source, deps Deps) Extractor {
	e := newHTMLExtractor(src, deps, false)
	base := deps.Settings.Param("base_url", concursaBase)

	e.layers = []layer{
		{name: "rows", extract: func(doc *goquery.Document) ([]model.Candidate, bool) {
			rows := doc.Find(concursaRows).FilterFunction(func(_ int, s *goquery.Selection) bool {
				text := s.Text()
				return findCallNumber(text) != "" || normalize.ContainsAny(text, "llamado")
			})
			return e.each(rows, func(s *goquery.Selection) (model.Candidate, bool) {
				return e.concursaRow(s, base)
			}), rows.Length() > 0
		}},
		{name: "containers", extract: func(doc *goquery.Document) ([]model.Candidate, bool) {
			sel := doc.Find(concursaContainers)
			return e.each(sel, func(s *goquery.Selection) (model.Candidate, bool) {
				return e.concursaContainer(s, base)
			}), sel.Length() > 0
		}},
		{name: "links", extract: func(doc *goquery.Document) ([]model.Candidate, bool) {
			sel := doc.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
				href, _ := s.Attr("href")
				if href == "" {
					return false
				}
				return normalize.ContainsAny(href, "llamado", "concurso") || findCallNumber(s.Text()) != ""
			})
			return e.each(sel, func(s *goquery.Selection) (model.Candidate, bool) {
				return e.concursaLink(s, base)
			}), sel.Length() > 0
		}},
	}
	return e
}

// concursaRow reads a results table row:
// [number, agency, description, dates..., status].
func (e *htmlExtractor) concursaRow(row *goquery.Selection, base string) (model.Candidate, bool) {
	cells := row.Find("td")
	if cells.Length() == 0 {
		return model.Candidate{}, false
	}
	number := findCallNumber(row.Text())
	if number == "" {
		return model.Candidate{}, false
	}

	var agency, title string
	var dates []string
	cells.Each(func(i int, cell *goquery.Selection) {
		text := normalize.CleanText(cell.Text(), 0)
		if d := cellDate.FindString(text); d != "" {
			if iso, ok := normalize.ParseDateAt(d, e.now()); ok {
				dates = append(dates, iso)
			}
			return
		}
		if utf8.RuneCountInString(text) < 3 || findCallNumber(text) != "" || onlyDigits.MatchString(text) {
			return
		}
		switch {
		case i <= 2 && agency == "":
			agency = text
		case title == "" && utf8.RuneCountInString(text) > 20:
			title = text
		}
	})

	company := concursaCompany
	if agency != "" {
		company = agency + " - ONSC"
	}
	if title == "" {
		title = "Llamado " + number
	}

	url := concursaListingURL
	if href := firstAttr(row, "a", "href"); href != "" {
		url = normalize.NormalizeURL(href, base)
	}

	c := model.Candidate{
		ExternalID:  normalize.ExternalID(concursaTag, url+number),
		Title:       normalize.CleanText(title, 200),
		Company:     normalize.CleanText(company, 100),
		Location:    "Uruguay",
		Description: fmt.Sprintf("Llamado %s - %s. Consulta los detalles en el portal de Uruguay Concursa.", number, company),
		URL:         url,
		PostedDate:  e.today(),
		JobType:     concursaJobType,
		Category:    "gobierno",
	}
	if len(dates) > 0 {
		c.PostedDate = dates[0]
	}
	if len(dates) > 1 {
		c.ClosingDate = &dates[1]
	}
	return c, true
}

func (e *htmlExtractor) concursaContainer(s *goquery.Selection, base string) (model.Candidate, bool) {
	title := firstText(s, "h1, h2, h3, h4, .title, .titulo", 0)
	if utf8.RuneCountInString(title) < 5 {
		return model.Candidate{}, false
	}

	company := concursaCompany
	if agency := firstText(s, ".organismo, .departamento, .institucion, .company", 0); agency != "" {
		company = agency + " - ONSC"
	}

	href := firstAttr(s, "a", "href")
	if href == "" {
		href, _ = s.Closest("a").Attr("href")
	}
	url := e.source.URL
	if href != "" {
		url = normalize.NormalizeURL(href, base)
	}

	return model.Candidate{
		ExternalID:  normalize.ExternalID(concursaTag, url),
		Title:       title,
		Company:     company,
		Location:    "Uruguay",
		Description: orDefault(firstText(s, ".descripcion, .description, p", 1000), title),
		URL:         url,
		PostedDate:  e.dateOr(s.Find(".fecha, .date, time").First().Text()),
		JobType:     concursaJobType,
		Category:    "gobierno",
	}, true
}

func (e *htmlExtractor) concursaLink(s *goquery.Selection, base string) (model.Candidate, bool) {
	href, _ := s.Attr("href")
	text := normalize.CleanText(s.Text(), 0)
	if href == "" || utf8.RuneCountInString(text) < minRelevantLinkLen || navLinkWords.MatchString(text) {
		return model.Candidate{}, false
	}

	url := normalize.NormalizeURL(href, base)
	title := text
	if number := findCallNumber(text); number != "" {
		title += " - Llamado " + number
	}

	return model.Candidate{
		ExternalID:  normalize.ExternalID(concursaTag, url),
		Title:       normalize.CleanText(title, 200),
		Company:     concursaCompany,
		Location:    "Uruguay",
		Description: concursaLinkDefault,
		URL:         url,
		PostedDate:  e.today(),
		JobType:     concursaJobType,
		Category:    "gobierno",
	}, true
}
