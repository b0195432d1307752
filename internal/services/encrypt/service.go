package encrypt

import (
	"context"
	"fmt"

	"github.com/TheMichaelB/sealfile/internal/codec"
	"github.com/TheMichaelB/sealfile/internal/config"
	"github.com/TheMichaelB/sealfile/internal/crypto"
	"github.com/TheMichaelB/sealfile/internal/events"
	"github.com/TheMichaelB/sealfile/internal/models"
	"github.com/TheMichaelB/sealfile/internal/state"
	"github.com/TheMichaelB/sealfile/internal/storage"
)

// Service wires an orchestrator from configuration.
type Service struct {
	orchestrator *Orchestrator
	provider     crypto.Provider
	history      state.Store
	logger       *events.Logger
}

type serviceOptions struct {
	sink    storage.OutputSink
	random  crypto.RandomSource
	history state.Store
}

// ServiceOption overrides a configured component.
type ServiceOption func(*serviceOptions)

// WithSink replaces the configured output directory.
func WithSink(sink storage.OutputSink) ServiceOption {
	return func(o *serviceOptions) {
		o.sink = sink
	}
}

// WithRandom replaces the system CSPRNG.
func WithRandom(random crypto.RandomSource) ServiceOption {
	return func(o *serviceOptions) {
		o.random = random
	}
}

// WithHistory replaces the configured history backend.
func WithHistory(history state.Store) ServiceOption {
	return func(o *serviceOptions) {
		o.history = history
	}
}

// NewService creates a service. The caller must Close it.
func NewService(cfg *config.Config, logger *events.Logger, opts ...ServiceOption) (*Service, error) {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	provider, err := crypto.NewProvider(cfg, o.random)
	if err != nil {
		return nil, fmt.Errorf("create crypto provider: %w", err)
	}

	c, err := codec.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create codec: %w", err)
	}

	sink := o.sink
	if sink == nil {
		dirSink, err := storage.NewDirSinkFromConfig(&cfg.Output, logger)
		if err != nil {
			return nil, fmt.Errorf("create output sink: %w", err)
		}
		// output.max_file_size bounds the source; the artifact is larger.
		params := provider.Params()
		dirSink.SetMaxFileSize(c.MaxOutputSize(params.TagSize, params.SaltSize, params.NonceSize))
		sink = dirSink
	}

	history := o.history
	if history == nil {
		history, err = state.Open(cfg.History, logger)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
	}

	return &Service{
		orchestrator: New(cfg, provider, c, sink, history, logger),
		provider:     provider,
		history:      history,
		logger:       logger.WithField("service", "encrypt"),
	}, nil
}

// Orchestrator returns the underlying workflow.
func (s *Service) Orchestrator() *Orchestrator {
	return s.orchestrator
}

// Params returns the active crypto parameters.
func (s *Service) Params() crypto.Params {
	return s.provider.Params()
}

// EncryptPath encrypts the file at path.
func (s *Service) EncryptPath(ctx context.Context, path, password string) (*Result, error) {
	s.logger.WithField("path", path).Debug("Opening source file")

	file, err := models.OpenSourceFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrFileReadFailed, err)
	}

	return s.orchestrator.Submit(ctx, file, password)
}

// History lists recent attempts, newest first.
func (s *Service) History(limit int) ([]*state.Record, error) {
	return s.history.List(limit)
}

// Close releases the history store.
func (s *Service) Close() error {
	return s.history.Close()
}
