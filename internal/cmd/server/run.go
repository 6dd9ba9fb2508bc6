package serverrun

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sluicelabs/sluice/internal/config"
	"github.com/sluicelabs/sluice/internal/durablelog"
	httpserver "github.com/sluicelabs/sluice/internal/server/http"
	"github.com/sluicelabs/sluice/internal/topic"
	"github.com/sluicelabs/sluice/internal/writer"
	"github.com/sluicelabs/sluice/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper around os.Getenv, kept as a variable so tests can swap it
var getenv = func(key string) string { return os.Getenv(key) }

// Run opens the store, starts the Writer Core and HTTP/WebSocket server,
// and blocks until ctx is cancelled, then drives the shutdown sequence.
func Run(ctx context.Context, cfg config.Config, logger log.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	log.RedirectStdLog(logger)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("serverrun: create data dir: %w", err)
	}

	store, err := durablelog.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("serverrun: open store: %w", err)
	}
	defer store.Close()

	persisted, err := store.ListTopics()
	if err != nil {
		return fmt.Errorf("serverrun: list topics at recovery: %w", err)
	}
	topics := make([]topic.Topic, 0, len(persisted))
	tails := make(map[uint64]uint64, len(persisted))
	for _, t := range persisted {
		topics = append(topics, topic.Topic{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt})
		tail, err := store.TailSequence(t.ID)
		if err != nil {
			return fmt.Errorf("serverrun: recover tail sequence for topic %q: %w", t.Name, err)
		}
		tails[t.ID] = tail
	}
	registry := topic.New()
	registry.Load(topics, tails)

	writerCtx, stopWriter := context.WithCancel(context.Background())
	defer stopWriter()
	w := writer.New(store, registry, writer.Config{
		MaxBatchSize:       cfg.MaxBatchSize,
		MaxBatchLinger:     time.Duration(cfg.MaxBatchLingerMs) * time.Millisecond,
		WriteQueueCapacity: cfg.WriteQueueCapacity,
	}, nil, logger.WithComponent("writer"))
	go w.Run(writerCtx)

	hsrv := httpserver.New(w, store, registry, nil, logger.WithComponent("http"))

	addr := fmt.Sprintf("%s:%d", cfg.BindHost, cfg.BindPort)
	logger.Info("starting sluice server",
		log.Str("addr", addr),
		log.Str("data_dir", cfg.DataDir),
		log.Int("max_batch_size", cfg.MaxBatchSize),
		log.Int("max_batch_linger_ms", cfg.MaxBatchLingerMs),
		log.Bool("tls", cfg.TLS.Enabled()),
	)

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	errCh := make(chan error, 1)
	go func() { errCh <- hsrv.ListenAndServe(serverCtx, addr, cfg.TLS) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stopWriter()
		<-w.Done()
		return err
	}

	// Stop accepting new streams; active sessions observe serverCtx's
	// cancellation at their next suspension point and close cleanly.
	stopServer()
	hsrv.Close()
	select {
	case <-errCh:
	case <-time.After(time.Duration(cfg.ShutdownGraceMs) * time.Millisecond):
		logger.Warn("shutdown grace period elapsed waiting for http server")
	}

	// Drain the writer queue and commit one final batch.
	stopWriter()
	select {
	case <-w.Done():
	case <-time.After(time.Duration(cfg.ShutdownGraceMs) * time.Millisecond):
		logger.Warn("shutdown grace period elapsed waiting for writer drain")
	}

	return nil
}
