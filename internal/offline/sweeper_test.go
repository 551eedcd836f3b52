// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package offline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSweeperEvictsExpiredOnStart(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	scanner, dir := newTestScanner(t, &stubCatalog{}, now)

	expired := writeArtifact(t, dir, EncodeFilename("111", "720p", now.Add(-31*24*time.Hour)))
	kept := writeArtifact(t, dir, EncodeFilename("111", "1080p", now.Add(-time.Hour)))

	sweeper := NewSweeper(scanner, time.Hour)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(expired)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	assert.FileExists(t, kept)
}

func TestSweeperStopIsIdempotent(t *testing.T) {
	scanner, _ := newTestScanner(t, &stubCatalog{}, time.Now())

	sweeper := NewSweeper(scanner, time.Hour)

	// Stop before Start is a no-op
	sweeper.Stop()

	sweeper.Start(context.Background())
	sweeper.Stop()
}

func TestNewSweeperDefaultsInterval(t *testing.T) {
	scanner, _ := newTestScanner(t, &stubCatalog{}, time.Now())

	s := NewSweeper(scanner, 0)
	assert.Equal(t, DefaultSweepInterval, s.interval)
}
