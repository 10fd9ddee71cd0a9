package store

import "time"

// PlotInput is one save of a plot: the encoded document plus the per-entity
// rows that back listing and search.
type PlotInput struct {
	Name     string
	Document []byte
	Clock    int
	Entities []EntityInput
}

type EntityInput struct {
	Position    int
	Kind        string
	Name        string
	Description string
	Sequence    int
	Tags        []string
	Partners    int
}

type PlotSummary struct {
	ID          string
	Name        string
	Clock       int
	EntityCount int
	UpdatedAt   time.Time
}

type PlotRecord struct {
	PlotSummary
	Document []byte
}

type EntitySummary struct {
	Plot        string
	Position    int
	Kind        string
	Name        string
	Description string
	Sequence    int
	Tags        []string
	Partners    int
}

type SearchResult struct {
	Plot    string
	Name    string
	Kind    string
	Tags    []string
	Score   float64
	Snippet string
}
