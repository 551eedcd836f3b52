// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DownloadsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vodvault_downloads_started_total",
		Help: "Number of rendition downloads started.",
	})

	DownloadsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vodvault_downloads_failed_total",
		Help: "Number of rendition downloads that ended in an error.",
	})

	DownloadsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vodvault_downloads_rejected_total",
		Help: "Number of download requests refused because the link was already downloading.",
	})

	ArtifactsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vodvault_artifacts_evicted_total",
		Help: "Number of expired offline artifacts removed by scans.",
	})

	ScansRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vodvault_offline_scans_total",
		Help: "Number of offline directory scans performed.",
	})

	CatalogSyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vodvault_catalog_syncs_total",
		Help: "Number of catalog synchronizations against the backend.",
	})
)
