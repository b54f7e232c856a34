package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobtracker/ingestion-service/internal/fetcher"
	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/normalize"
)

// layer is one extraction strategy. matched reports whether any structural
// anchor for the strategy was present, independently of how many
// candidates survived.
type layer struct {
	name    string
	extract func(doc *goquery.Document) (cands []model.Candidate, matched bool)
}

// htmlExtractor fetches one HTML page and runs its layers in order; the
// first layer yielding valid candidates wins.
type htmlExtractor struct {
	source   model.Source
	strict   bool
	getter   Getter
	redFlags []string
	logger   *slog.Logger
	now      func() time.Time
	layers   []layer
}

func newHTMLExtractor(src model.Source, deps Deps, strict bool) *htmlExtractor {
	deps = deps.withDefaults()
	return &htmlExtractor{
		source:   src,
		strict:   strict,
		getter:   deps.Getter,
		redFlags: deps.Settings.RedFlags,
		logger:   deps.Logger.With("source", src.ID),
		now:      deps.Now,
	}
}

func (e *htmlExtractor) Extract(ctx context.Context) ([]model.Candidate, error) {
	body, err := e.getter.Fetch(ctx, e.source.URL)
	if err != nil {
		if errors.Is(err, fetcher.ErrFetchExhausted) {
			e.logger.Warn("fetch exhausted, no candidates this run", "url", e.source.URL, "err", err)
			return nil, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Warn("fetch failed, no candidates this run", "url", e.source.URL, "err", err)
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return e.unparseable(fmt.Errorf("parse html: %w", err))
	}

	anyAnchor := false
	for _, l := range e.layers {
		raw, matched := l.extract(doc)
		anyAnchor = anyAnchor || matched
		kept := e.accept(raw)
		if len(kept) > 0 {
			e.logger.Info("extracted candidates", "layer", l.name, "found", len(kept))
			return kept, nil
		}
		if matched {
			e.logger.Debug("layer matched but produced no valid candidates", "layer", l.name)
		}
	}

	if !anyAnchor {
		return e.unparseable(ErrUnparseableDocument)
	}
	e.logger.Warn("no valid candidates found")
	return nil, nil
}

func (e *htmlExtractor) unparseable(err error) ([]model.Candidate, error) {
	if e.strict {
		return nil, err
	}
	e.logger.Warn("document not recognised, no candidates this run", "err", err)
	return nil, nil
}

// accept validates, drops red flags and removes duplicate identities.
func (e *htmlExtractor) accept(raw []model.Candidate) []model.Candidate {
	seen := make(map[string]struct{}, len(raw))
	out := make([]model.Candidate, 0, len(raw))
	for _, c := range raw {
		if !normalize.IsValidCandidate(c) {
			continue
		}
		if ContainsRedFlag(c, e.redFlags) {
			e.logger.Debug("candidate dropped by red flag", "externalId", c.ExternalID)
			continue
		}
		if _, dup := seen[c.ExternalID]; dup {
			continue
		}
		seen[c.ExternalID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// each runs fn on every node of sel. A panic in fn only loses that node.
func (e *htmlExtractor) each(sel *goquery.Selection, fn func(*goquery.Selection) (model.Candidate, bool)) []model.Candidate {
	var out []model.Candidate
	sel.Each(func(i int, s *goquery.Selection) {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Warn("error processing item", "index", i, "panic", r)
			}
		}()
		if c, ok := fn(s); ok {
			out = append(out, c)
		}
	})
	return out
}

func (e *htmlExtractor) today() string {
	return normalize.Today(e.now())
}

// dateOr parses text or falls back to today.
func (e *htmlExtractor) dateOr(text string) string {
	if iso, ok := normalize.ParseDateAt(text, e.now()); ok {
		return iso
	}
	return e.today()
}

func firstText(s *goquery.Selection, selector string, maxLen int) string {
	return normalize.CleanText(s.Find(selector).First().Text(), maxLen)
}

func firstAttr(s *goquery.Selection, selector, attr string) string {
	v, _ := s.Find(selector).First().Attr(attr)
	return v
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
