// Package archive ships prediction-history snapshots to object storage on an
// interval, so the durable record survives database resets on redeploy.
package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stock-dashboard/internal/repository"
	"stock-dashboard/internal/storage"
)

// Config controls the snapshot worker.
type Config struct {
	Bucket    string
	KeyPrefix string
	Interval  time.Duration
	Logger    *logrus.Logger
}

// Archiver periodically snapshots recent prediction runs to S3.
type Archiver struct {
	cfg     Config
	history repository.PredictionRepository
	store   storage.Service

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	lastRun time.Time
}

func New(cfg Config, history repository.PredictionRepository, store storage.Service) *Archiver {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "predictions"
	}
	return &Archiver{cfg: cfg, history: history, store: store}
}

// Start launches the snapshot loop. It is a no-op without a configured
// bucket or storage service.
func (a *Archiver) Start() {
	if a.store == nil || a.cfg.Bucket == "" {
		a.cfg.Logger.Info("prediction archive disabled: no storage configured")
		return
	}

	a.mu.Lock()
	if a.stop != nil {
		a.mu.Unlock()
		return
	}
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	stop, done := a.stop, a.done
	a.mu.Unlock()

	go a.loop(stop, done)
}

// Shutdown stops the loop and waits for an in-flight snapshot to finish.
func (a *Archiver) Shutdown() {
	a.mu.Lock()
	stop, done := a.stop, a.done
	a.stop, a.done = nil, nil
	a.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (a *Archiver) loop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			if err := a.SnapshotOnce(ctx); err != nil {
				a.cfg.Logger.WithError(err).Warn("prediction snapshot failed")
			}
			cancel()
		}
	}
}

// SnapshotOnce uploads every run recorded since the previous snapshot as one
// JSON object keyed by date and time.
func (a *Archiver) SnapshotOnce(ctx context.Context) error {
	a.mu.Lock()
	since := a.lastRun
	a.mu.Unlock()
	if since.IsZero() {
		since = time.Now().UTC().Add(-a.cfg.Interval)
	}

	runs, err := a.history.ListSince(ctx, since)
	if err != nil {
		return fmt.Errorf("collect runs: %w", err)
	}
	if len(runs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("%s/%s/runs-%s.json",
		a.cfg.KeyPrefix,
		now.Format("2006/01/02"),
		now.Format("150405"),
	)
	location, err := a.store.UploadJSON(ctx, a.cfg.Bucket, key, runs)
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}

	a.mu.Lock()
	a.lastRun = now
	a.mu.Unlock()

	a.cfg.Logger.WithFields(logrus.Fields{
		"location": location,
		"runs":     len(runs),
	}).Info("prediction snapshot uploaded")
	return nil
}
