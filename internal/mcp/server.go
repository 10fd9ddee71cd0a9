package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"storygraph/internal/codec"
	"storygraph/internal/config"
	"storygraph/internal/logging"
	"storygraph/internal/store"
	"storygraph/internal/story"
)

// Server exposes plot editing to a generation driver. Every mutating tool
// loads the plot, applies one change through the Plot and saves it back;
// mu keeps those round trips from interleaving.
type Server struct {
	schema  *config.Schema
	db      store.Store
	decoder codec.Decoder
	logger  *log.Logger
	mcp     *sdk.Server

	mu sync.Mutex
}

func NewServer(schema *config.Schema, db store.Store, logger *log.Logger, version string) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		schema:  schema,
		db:      db,
		decoder: codec.Decoder{Hints: schema.AttributeShape},
		logger:  logger,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "storygraph",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}

// view loads the named plot for reading.
func (s *Server) view(ctx context.Context, plot string) (*story.Plot, error) {
	if plot == "" {
		return nil, fmt.Errorf("plot is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.Load(ctx, s.db, plot, s.decoder)
}

// mutate runs fn against the named plot and saves the result. With create
// set, a missing plot starts out empty.
func (s *Server) mutate(ctx context.Context, plot string, create bool, fn func(p *story.Plot) error) (*story.Plot, error) {
	if plot == "" {
		return nil, fmt.Errorf("plot is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := store.Load(ctx, s.db, plot, s.decoder)
	if errors.Is(err, store.ErrPlotNotFound) && create {
		s.logger.Info("starting new plot", "plot", plot)
		p, err = story.NewPlot(), nil
	}
	if err != nil {
		return nil, err
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	summary, err := store.Save(ctx, s.db, plot, p)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("saved plot", "plot", summary.Name, "entities", summary.EntityCount, "clock", summary.Clock)
	return p, nil
}
