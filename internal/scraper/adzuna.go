package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"jobtracker/ingestion-service/internal/fetcher"
	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/normalize"
)

const (
	adzunaBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize = 50
	adzunaMaxPages = 3 // max 150 results per run
	adzunaTag      = "adzuna"
)

// adzunaExtractor reads the Adzuna public search API. It needs the app_id
// and app_key params; without them it returns no candidates.
type adzunaExtractor struct {
	source   model.Source
	getter   Getter
	settings Settings
	logger   *slog.Logger
	now      func() time.Time
}

// NewAdzuna builds the Adzuna API extractor. Params: app_id, app_key,
// country (default "gb"), what, where, max_pages.
func NewAdzuna(src model.Source, deps Deps) Extractor {
	deps = deps.withDefaults()
	return &adzunaExtractor{
		source:   src,
		getter:   deps.Getter,
		settings: deps.Settings,
		logger:   deps.Logger.With("source", src.ID),
		now:      deps.Now,
	}
}

// adzunaResponse mirrors the top-level Adzuna JSON response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

// adzunaResult mirrors a single Adzuna job listing.
type adzunaResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Company      adzunaName     `json:"company"`
	Location     adzunaName     `json:"location"`
	Category     adzunaCategory `json:"category"`
	SalaryMin    float64        `json:"salary_min"`
	SalaryMax    float64        `json:"salary_max"`
	RedirectURL  string         `json:"redirect_url"`
	Created      string         `json:"created"`
	ContractTime string         `json:"contract_time"`
}

type adzunaName struct {
	DisplayName string `json:"display_name"`
}

type adzunaCategory struct {
	Label string `json:"label"`
}

func (a *adzunaExtractor) Extract(ctx context.Context) ([]model.Candidate, error) {
	appID, appKey := a.settings.Param("app_id", ""), a.settings.Param("app_key", "")
	if appID == "" || appKey == "" {
		a.logger.Warn("adzuna app_id / app_key not set, skipping")
		return nil, nil
	}

	maxPages := adzunaMaxPages
	if v, err := strconv.Atoi(a.settings.Param("max_pages", "")); err == nil && v > 0 {
		maxPages = v
	}

	var out []model.Candidate
	seen := make(map[string]struct{})
	for page := 1; page <= maxPages; page++ {
		batch, err := a.fetchPage(ctx, appID, appKey, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, fetcher.ErrFetchExhausted) {
				a.logger.Warn("fetch exhausted, keeping earlier pages", "page", page, "kept", len(out), "err", err)
			} else {
				a.logger.Warn("adzuna page failed, keeping earlier pages", "page", page, "kept", len(out), "err", err)
			}
			break
		}
		out = append(out, a.accept(batch, seen)...)
		if len(batch) < adzunaPageSize {
			break
		}
	}
	a.logger.Info("extracted candidates", "found", len(out))
	return out, nil
}

func (a *adzunaExtractor) fetchPage(ctx context.Context, appID, appKey string, page int) ([]adzunaResult, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", a.settings.Param("base_url", adzunaBaseURL), a.settings.Param("country", "gb"), page)

	params := url.Values{}
	params.Set("app_id", appID)
	params.Set("app_key", appKey)
	params.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	if what := a.settings.Param("what", ""); what != "" {
		params.Set("what", what)
	}
	if where := a.settings.Param("where", ""); where != "" {
		params.Set("where", where)
	}
	params.Set("content-type", "application/json")
	params.Set("sort_by", "date")

	body, err := a.getter.Fetch(ctx, endpoint+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp adzunaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	return resp.Results, nil
}

// accept converts one page of results, skipping ids already in seen. seen is
// shared by every page of one Extract call.
func (a *adzunaExtractor) accept(results []adzunaResult, seen map[string]struct{}) []model.Candidate {
	out := make([]model.Candidate, 0, len(results))
	for _, r := range results {
		posted, _ := normalize.ParseDateAt(r.Created, a.now())
		c := model.Candidate{
			ExternalID:  adzunaTag + "-" + r.ID,
			Title:       normalize.CleanText(r.Title, 200),
			Company:     normalize.CleanText(r.Company.DisplayName, 100),
			Location:    normalize.CleanText(r.Location.DisplayName, 100),
			Description: normalize.StripTags(r.Description, 1000),
			URL:         r.RedirectURL,
			PostedDate:  posted,
			Salary:      salaryRange(r.SalaryMin, r.SalaryMax),
			JobType:     r.ContractTime,
			Category:    r.Category.Label,
		}
		if r.ID == "" || !normalize.IsValidCandidate(c) || ContainsRedFlag(c, a.settings.RedFlags) {
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

func salaryRange(lo, hi float64) *string {
	var s string
	switch {
	case lo > 0 && hi > 0 && hi != lo:
		s = fmt.Sprintf("%.0f - %.0f", lo, hi)
	case lo > 0:
		s = fmt.Sprintf("%.0f", lo)
	case hi > 0:
		s = fmt.Sprintf("%.0f", hi)
	default:
		return nil
	}
	return &s
}
