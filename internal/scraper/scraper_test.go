package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"jobtracker/ingestion-service/internal/fetcher"
	"jobtracker/ingestion-service/internal/model"
)

var fixedNow = time.Date(2030, 3, 10, 12, 0, 0, 0, time.UTC)

type getterFunc func(ctx context.Context, url string) ([]byte, error)

func (f getterFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

func staticPage(html string) Getter {
	return getterFunc(func(context.Context, string) ([]byte, error) { return []byte(html), nil })
}

func exhaustedGetter() Getter {
	return getterFunc(func(_ context.Context, url string) ([]byte, error) {
		return nil, &fetcher.ExhaustedError{URL: url, Attempts: 3, Err: errors.New("connection refused")}
	})
}

func testDeps(g Getter) Deps {
	return Deps{
		Getter: g,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return fixedNow },
	}
}

func testSource(id, url string) model.Source {
	return model.Source{ID: id, Name: id, URL: url, Enabled: true}
}

func candidateFixture() model.Candidate {
	return model.Candidate{
		ExternalID:  "t-1",
		Title:       "Stage développeur",
		Company:     "Acme",
		Description: "Reuniones semanales con el equipo",
		URL:         "https://x/1",
	}
}
