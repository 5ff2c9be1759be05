package token

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically removes tokens past their absolute expiry. It is an
// optimization only: an expired-but-not-yet-swept token is still denied by
// evaluation.
type Sweeper struct {
	manager  Manager
	ticker   *time.Ticker
	stopChan chan struct{}
}

// NewSweeper creates a new sweeper for the given manager.
func NewSweeper(manager Manager) *Sweeper {
	return &Sweeper{
		manager:  manager,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	s.ticker = time.NewTicker(interval)

	logrus.WithField("interval", interval).Info("Token sweeper started")

	// Run immediately on start
	go s.sweep(ctx)

	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.sweep(ctx)
			case <-s.stopChan:
				s.ticker.Stop()
				logrus.Info("Token sweeper stopped")
				return
			case <-ctx.Done():
				s.ticker.Stop()
				logrus.Info("Token sweeper stopped due to context cancellation")
				return
			}
		}
	}()
}

// Stop stops the sweeper.
func (s *Sweeper) Stop() {
	close(s.stopChan)
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.manager.DeleteExpired(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to sweep expired tokens")
		return
	}
	if removed > 0 {
		logrus.WithField("removed", removed).Info("Swept expired tokens")
	}
}
