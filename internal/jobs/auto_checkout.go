package jobs

import (
	"context"
	"log"
	"time"

	"github.com/jsonify/chess-club-2/internal/config"
)

type recordCloser interface {
	CloseOpenRecords(ctx context.Context, now time.Time) (int64, error)
}

// StartAutoCheckoutJob periodically checks out students still checked in
// after their session's end time has passed.
func StartAutoCheckoutJob(ctx context.Context, cfg config.Config, store recordCloser) {
	if !cfg.AutoCheckoutJobEnabled {
		return
	}
	interval := cfg.AutoCheckoutJobInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	timeout := cfg.AutoCheckoutJobTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				closed, err := store.CloseOpenRecords(tickCtx, time.Now().UTC())
				cancel()
				if err != nil {
					log.Printf("auto checkout job error: %v", err)
					continue
				}
				if closed > 0 {
					log.Printf("auto checkout job closed %d records", closed)
				}
			}
		}
	}()
}
