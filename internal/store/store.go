package store

import (
	"context"
	"errors"
)

var ErrPlotNotFound = errors.New("plot not found")

type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	SavePlot(ctx context.Context, p PlotInput) (*PlotSummary, error)
	LoadPlot(ctx context.Context, name string) (*PlotRecord, error)
	ListPlots(ctx context.Context) ([]PlotSummary, error)
	DeletePlot(ctx context.Context, name string) error

	ListEntities(ctx context.Context, plot, kind, tag string) ([]EntitySummary, error)
	Search(ctx context.Context, plot, query, kind string) ([]SearchResult, error)

	RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}
