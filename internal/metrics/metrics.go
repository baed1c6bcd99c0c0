package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_gallery_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_gallery_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var (
	ThumbnailCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_gallery_thumbnail_cache_hits_total",
		Help: "Thumbnail URLs served from cache",
	})

	ThumbnailCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_gallery_thumbnail_cache_misses_total",
		Help: "Thumbnail lookups that missed the cache",
	})

	ThumbnailsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_gallery_thumbnails_generated_total",
		Help: "Thumbnails decoded, resized and stored",
	})

	ThumbnailErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_gallery_thumbnail_errors_total",
			Help: "Thumbnail generation failures by stage",
		},
		[]string{"stage"},
	)
)
