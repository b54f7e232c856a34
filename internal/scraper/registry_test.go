package scraper

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtracker/ingestion-service/internal/model"
)

type stubExtractor struct{ id string }

func (s stubExtractor) Extract(context.Context) ([]model.Candidate, error) { return nil, nil }

func TestDefaultRegistry_BuiltIns(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{
		SourceAdzuna, SourceBuscoJobs, SourceCompuTrabajo,
		SourceLinkedIn, SourceUruguayConcursa, SourceUruguayXXI,
	}, r.IDs())

	for _, id := range r.IDs() {
		ex, err := r.Resolve(testSource(id, "https://x"), testDeps(staticPage("")))
		require.NoError(t, err, id)
		assert.NotNil(t, ex, id)
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(testSource("nowhere", ""), Deps{})
	assert.ErrorIs(t, err, ErrUnconfiguredSource)
	assert.False(t, r.IsSupported("nowhere"))
}

func TestRegistry_RegisterOverwritesAndUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register("acme", func(model.Source, Deps) Extractor { return stubExtractor{id: "v1"} })
	r.Register("acme", func(model.Source, Deps) Extractor { return stubExtractor{id: "v2"} })

	ex, err := r.Resolve(testSource("acme", ""), Deps{})
	require.NoError(t, err)
	assert.Equal(t, stubExtractor{id: "v2"}, ex)

	r.Unregister("acme")
	assert.False(t, r.IsSupported("acme"))
	r.Unregister("acme")
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := NewDefaultRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		id := fmt.Sprintf("src-%d", i)
		go func() {
			defer wg.Done()
			r.Register(id, func(model.Source, Deps) Extractor { return stubExtractor{id: id} })
		}()
		go func() {
			defer wg.Done()
			_, _ = r.Resolve(testSource(SourceBuscoJobs, ""), testDeps(staticPage("")))
			_ = r.IsSupported(id)
		}()
	}
	wg.Wait()
	assert.Len(t, r.IDs(), 26)
}
