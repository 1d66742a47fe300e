// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used with ChunksDroppedTotal.
const (
	ReasonParse  = "parse"  // malformed frame or non-image marker
	ReasonOffset = "offset" // rebased offset outside the image buffer
	ReasonWrite  = "write"  // sink write failed
)

var (
	// ChunksReceivedTotal counts raw frames handed to the receiver by source
	ChunksReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satrx_chunks_received_total",
			Help: "Total number of raw frames received",
		},
		[]string{"source"},
	)

	// ChunksDroppedTotal counts frames that did not reach an image buffer
	ChunksDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satrx_chunks_dropped_total",
			Help: "Total number of frames dropped before placement",
		},
		[]string{"reason"},
	)

	// ChunksWrittenTotal counts payloads placed into image buffers
	ChunksWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "satrx_chunks_written_total",
			Help: "Total number of chunk payloads written to images",
		},
	)

	// ChunksMissedTotal counts frames carrying a non-image marker
	ChunksMissedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "satrx_chunks_missed_total",
			Help: "Total number of frames with a non-image marker",
		},
	)

	// ImagesCompletedTotal counts images closed on an end-of-image chunk
	ImagesCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "satrx_images_completed_total",
			Help: "Total number of images completed",
		},
	)

	// ImagesAbandonedTotal counts images superseded or left open at shutdown
	ImagesAbandonedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "satrx_images_abandoned_total",
			Help: "Total number of images closed without an end-of-image chunk",
		},
	)

	// ImageBytes observes the size of finished images
	ImageBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "satrx_image_bytes",
			Help:    "Size of reconstructed images in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 8), // 1KiB .. 128KiB
		},
	)
)
