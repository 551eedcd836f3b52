// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package offline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultSweepInterval is how often the background expiration check runs.
const DefaultSweepInterval = 15 * time.Minute

// Sweeper runs the scanner on a fixed interval so expired artifacts are
// reclaimed without waiting for a user to open the offline list.
type Sweeper struct {
	scanner  *Scanner
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(scanner *Scanner, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &Sweeper{
		scanner:  scanner,
		interval: interval,
	}
}

// Start launches the sweep loop. One immediate pass runs at startup, then one
// per interval until the context is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.sweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()

	log.Debug().Dur("interval", s.interval).Msg("Offline expiration sweeper started")
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.scanner.Scan(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Offline expiration sweep failed")
	}
}

// Stop cancels the loop and waits for the current pass to finish.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
