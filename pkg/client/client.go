package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MELR22/rissa-plotter/pkg/config"
	"github.com/MELR22/rissa-plotter/pkg/observation"
)

// ErrNotStarted is returned by Record before Start
var ErrNotStarted = errors.New("client not started")

// Config holds configuration for the upload client
type Config struct {
	Endpoint     string        `env:"RISSA_ENDPOINT" envDefault:"http://localhost:8080"`
	APIKey       string        `env:"RISSA_API_KEY"`
	Observer     string        `env:"RISSA_OBSERVER"`
	FlushEvery   time.Duration `env:"RISSA_FLUSH_EVERY" envDefault:"5s"`
	MaxBatchSize int           `env:"RISSA_MAX_BATCH_SIZE" envDefault:"500"`
}

// ConfigFromEnv reads Config from RISSA_* environment variables
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Client uploads field observations to a rissa server in batches, one
// batcher per dataset.
type Client struct {
	config    Config
	transport Transport

	batchers map[string]*Batcher
	mu       sync.Mutex

	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a client posting over HTTP
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:8080"
	}
	trans, err := NewHTTP(cfg.Endpoint, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	return NewWithTransport(cfg, trans), nil
}

// NewWithTransport creates a client over an arbitrary transport
func NewWithTransport(cfg Config, trans Transport) *Client {
	if cfg.FlushEvery == 0 {
		cfg.FlushEvery = 5 * time.Second
	}
	if cfg.MaxBatchSize <= 0 || cfg.MaxBatchSize > config.IngestMaxObservations {
		cfg.MaxBatchSize = config.IngestMaxObservations
	}
	return &Client{
		config:    cfg,
		transport: trans,
		batchers:  make(map[string]*Batcher),
	}
}

// Start starts the client
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("client already started")
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	return nil
}

// Record queues one observation for dataset. It fills in an ID, so a batch
// resent after a timeout does not duplicate rows, and the configured
// observer when the observation names none.
func (c *Client) Record(dataset string, o observation.Observation) error {
	b, err := c.batcher(dataset)
	if err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Observer == "" {
		o.Observer = c.config.Observer
	}
	b.Add(o)
	return nil
}

func (c *Client) batcher(dataset string) (*Batcher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil, ErrNotStarted
	}
	if b, ok := c.batchers[dataset]; ok {
		return b, nil
	}
	b := NewBatcher(c.transport, dataset, BatchConfig{
		MaxBatchSize: c.config.MaxBatchSize,
		FlushEvery:   c.config.FlushEvery,
	})
	if err := b.Start(c.ctx); err != nil {
		return nil, fmt.Errorf("failed to start batcher: %w", err)
	}
	c.batchers[dataset] = b
	return b, nil
}

// Flush sends everything queued for every dataset
func (c *Client) Flush() error {
	var errList []error
	for _, b := range c.snapshot() {
		if err := b.Flush(); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Stop stops every batcher and flushes what remains
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	var errList []error
	for _, b := range c.snapshot() {
		if err := b.Stop(); err != nil {
			errList = append(errList, err)
		}
	}
	c.cancel()
	if err := errors.Join(errList...); err != nil {
		return fmt.Errorf("failed to flush observations: %w", err)
	}
	return nil
}

// Sent returns how many observations the server has accepted
func (c *Client) Sent() int64 {
	var n int64
	for _, b := range c.snapshot() {
		n += b.Sent()
	}
	return n
}

func (c *Client) snapshot() []*Batcher {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Batcher, 0, len(c.batchers))
	for _, b := range c.batchers {
		out = append(out, b)
	}
	return out
}
