// Package model defines the domain types shared across the ingestion service.
package model

import "time"

// Posting is a stored job or tender advertisement.
// (SourceID, ExternalID) is unique across the store.
type Posting struct {
	ID          int64     `json:"id"`
	SourceID    string    `json:"sourceId"`
	ExternalID  string    `json:"externalId"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PostedDate  string    `json:"postedDate,omitempty"` // ISO YYYY-MM-DD
	ClosingDate *string   `json:"closingDate"`          // ISO YYYY-MM-DD
	Salary      *string   `json:"salary"`
	JobType     string    `json:"jobType"`
	Category    string    `json:"category"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Candidate is an unsaved posting produced by an extractor.
type Candidate struct {
	ExternalID  string  `json:"externalId"`
	Title       string  `json:"title"`
	Company     string  `json:"company"`
	Location    string  `json:"location"`
	Description string  `json:"description"`
	URL         string  `json:"url"`
	PostedDate  string  `json:"postedDate,omitempty"`
	ClosingDate *string `json:"closingDate"`
	Salary      *string `json:"salary"`
	JobType     string  `json:"jobType"`
	Category    string  `json:"category"`
}

// Posting stamps the candidate with the source it came from.
func (c Candidate) Posting(sourceID string) Posting {
	return Posting{
		SourceID:    sourceID,
		ExternalID:  c.ExternalID,
		Title:       c.Title,
		Company:     c.Company,
		Location:    c.Location,
		Description: c.Description,
		URL:         c.URL,
		PostedDate:  c.PostedDate,
		ClosingDate: c.ClosingDate,
		Salary:      c.Salary,
		JobType:     c.JobType,
		Category:    c.Category,
		Active:      true,
	}
}

// Source is a configured origin of postings.
type Source struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Enabled     bool       `json:"enabled"`
	LastScraped *time.Time `json:"lastScraped"`
	TotalJobs   int        `json:"totalJobs"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// RunOutcome is the per-source result of one ingestion run.
type RunOutcome struct {
	RunID       string `json:"runId,omitempty"`
	SourceID    string `json:"sourceId"`
	SourceName  string `json:"sourceName,omitempty"`
	Success     bool   `json:"success"`
	JobsFound   int    `json:"jobsFound"`
	JobsAdded   int    `json:"jobsAdded"`
	JobsUpdated int    `json:"jobsUpdated"`
	Error       string `json:"error,omitempty"`
}

// PostingFilter narrows ListPostings. Zero values mean "no constraint".
type PostingFilter struct {
	Active   *bool
	SourceID string
	Search   string // substring of title, company or description
	Location string // substring of location
	Limit    int
}

// SourceCount is the number of active postings for one source.
type SourceCount struct {
	SourceID string `json:"sourceId"`
	Count    int    `json:"count"`
}

// PostingStats summarises the posting table.
type PostingStats struct {
	Total    int           `json:"total"`
	Active   int           `json:"active"`
	BySource []SourceCount `json:"bySource"`
}

// SourceStats summarises one source.
type SourceStats struct {
	SourceID   string  `json:"sourceId"`
	TotalJobs  int     `json:"totalJobs"`
	ActiveJobs int     `json:"activeJobs"`
	LastRun    *RunLog `json:"lastRun"`
}
