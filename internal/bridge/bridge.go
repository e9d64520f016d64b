package bridge

import (
	"context"
	"log"
	"time"

	"github.com/steveyegge/taskbridge/internal/notify"
	"github.com/steveyegge/taskbridge/internal/store"
)

const (
	// DefaultPollInterval is the default delay between synchronization
	// passes.
	DefaultPollInterval = 4 * time.Hour

	// DefaultFetchConcurrency bounds concurrent detail and comment
	// fetches from the source.
	DefaultFetchConcurrency = 4
)

// Config holds the engine configuration.
type Config struct {
	// PollInterval is how often to run a synchronization pass.
	PollInterval time.Duration
	// FetchConcurrency is the maximum number of in-flight source fetches.
	FetchConcurrency int
}

// Bridge reconciles the source tracker's open issues with their mirrored
// destination tasks, using the state store to decide what already
// happened.
type Bridge struct {
	source   Source
	dest     Destination
	store    store.Store
	notifier notify.Notifier
	config   Config
	logger   *log.Logger
}

// New creates a Bridge. Zero config fields get defaults.
func New(source Source, dest Destination, st store.Store, notifier notify.Notifier, config Config, logger *log.Logger) *Bridge {
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.FetchConcurrency == 0 {
		config.FetchConcurrency = DefaultFetchConcurrency
	}
	if logger == nil {
		logger = log.Default()
	}
	if notifier == nil {
		notifier = &notify.LogNotifier{Logger: logger}
	}
	return &Bridge{
		source:   source,
		dest:     dest,
		store:    st,
		notifier: notifier,
		config:   config,
		logger:   logger,
	}
}

// Start runs the synchronization loop until the context is cancelled.
// The first pass runs immediately. A failed pass is reported and the loop
// keeps going.
func (b *Bridge) Start(ctx context.Context) error {
	b.logger.Printf("taskbridge starting (interval=%s, concurrency=%d)",
		b.config.PollInterval, b.config.FetchConcurrency)

	if err := b.RunPass(ctx); err != nil {
		b.passFailed(ctx, err)
	}

	ticker := time.NewTicker(b.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Printf("taskbridge shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := b.RunPass(ctx); err != nil {
				b.passFailed(ctx, err)
			}
		}
	}
}

func (b *Bridge) passFailed(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	b.logger.Printf("pass error: %v", err)
	b.alert(ctx, "sync pass failed: "+err.Error())
}

// alert notifies the operator. Delivery is best effort; a failed delivery
// is logged and swallowed.
func (b *Bridge) alert(ctx context.Context, text string) {
	if err := b.notifier.Notify(ctx, text); err != nil {
		b.logger.Printf("notification failed: %v (message: %s)", err, text)
	}
}
