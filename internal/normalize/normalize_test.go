package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtracker/ingestion-service/internal/model"
)

func TestParseDateAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"hoy", "Publicado hoy", "2024-03-01", true},
		{"today", "Today", "2024-03-01", true},
		{"ayer crosses month", "ayer", "2024-02-29", true},
		{"yesterday", "posted yesterday", "2024-02-29", true},
		{"dmy", "Cierre: 15/03/2024", "2024-03-15", true},
		{"dmy single digits", "5/3/2024", "2024-03-05", true},
		{"first dmy wins", "01/02/2024 al 28/02/2024", "2024-02-01", true},
		{"impossible dmy falls through", "45/13/2024", "", false},
		{"embedded iso", "fecha 2024-02-10T12:00", "2024-02-10", true},
		{"rfc1123", "Mon, 02 Jan 2006 15:04:05 MST", "2006-01-02", true},
		{"long english", "January 5, 2024", "2024-01-05", true},
		{"garbage", "not a date", "", false},
		{"empty", "   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDateAt(tt.in, now)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitClosingDate(t *testing.T) {
	title, date := SplitClosingDate("Llamado consultoría logística - 15/03/2025")
	require.NotNil(t, date)
	assert.Equal(t, "2025-03-15", *date)
	assert.Equal(t, "Llamado consultoría logística", title)

	title, date = SplitClosingDate("Licitación sin fecha")
	assert.Nil(t, date)
	assert.Equal(t, "Licitación sin fecha", title)
}

func TestNormalizeURL(t *testing.T) {
	const base = "https://www.example.com.uy/empleos"

	tests := []struct {
		raw, want string
	}{
		{"", base},
		{"http://other.org/a", "http://other.org/a"},
		{"https://other.org/a", "https://other.org/a"},
		{"//cdn.example.com/x", "https://cdn.example.com/x"},
		{"/oferta/123", "https://www.example.com.uy/oferta/123"},
		{"oferta/123", base + "/oferta/123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.raw, base), "raw=%q", tt.raw)
	}

	assert.Equal(t, "http://cdn.example.com/x", NormalizeURL("//cdn.example.com/x", "http://plain.example.com"))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", CleanText("  a \n\n b\t\tc  ", 0))
	assert.Equal(t, "", CleanText("", 10))
	assert.Equal(t, "hello", CleanText("hello   world", 6))
	assert.Equal(t, "añoñ", CleanText("añoñería", 4))
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Senior Go & Rust dev", StripTags("<p>Senior <b>Go</b> &amp; Rust\n dev</p>", 0))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "licitacion publica", Fold("Licitación PÚBLICA"))
	assert.True(t, ContainsAny("Nueva LICITACIÓN internacional", "licitacion"))
	assert.False(t, ContainsAny("Oferta laboral", "concurso", ""))
}

func TestIdentityHash(t *testing.T) {
	assert.Equal(t, "0", IdentityHash(""))
	assert.Equal(t, "22ci", IdentityHash("abc"))
	assert.Equal(t, IdentityHash("https://x/y"), IdentityHash("https://x/y"))
	assert.NotEqual(t, IdentityHash("ab"), IdentityHash("ba"))
	assert.Equal(t, "acme-"+IdentityHash("https://x/y"), ExternalID("acme", "https://x/y"))
}

func TestIsValidCandidate(t *testing.T) {
	valid := model.Candidate{ExternalID: "ctx-1", Title: "Dev", URL: "https://x/y"}
	assert.True(t, IsValidCandidate(valid))

	for name, mutate := range map[string]func(*model.Candidate){
		"no id":       func(c *model.Candidate) { c.ExternalID = "" },
		"short title": func(c *model.Candidate) { c.Title = "ab" },
		"blank title": func(c *model.Candidate) { c.Title = "   " },
		"no url":      func(c *model.Candidate) { c.URL = "" },
	} {
		c := valid
		mutate(&c)
		assert.False(t, IsValidCandidate(c), name)
	}
}
