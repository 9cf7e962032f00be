package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "visiond"

var (
	RegionRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "region_refreshes_total",
		Help:      "Lighting refreshes, labelled by whether they invalidated vision.",
	}, []string{"vision"})

	RegionVersion = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "region_version",
		Help:      "Current region set version per engine.",
	}, []string{"engine"})

	Darkness = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scene_darkness",
		Help:      "Scene darkness level in [0,1].",
	})

	SourcesActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sources_active",
		Help:      "Active sources by kind.",
	}, []string{"kind"})

	VisionPasses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vision_passes_total",
		Help:      "Source field-of-view recomputations.",
	})

	FogExplores = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fog_explores_total",
		Help:      "Exploration attempts by outcome.",
	}, []string{"outcome"})

	FogCommits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fog_commits_total",
		Help:      "Pending exploration baked into the coverage image.",
	})

	FogPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fog_pending_updates",
		Help:      "Explorations waiting for the next commit.",
	})

	FogSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fog_saves_total",
		Help:      "Fog saves by result.",
	}, []string{"result"})

	FogSaveBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fog_save_bytes",
		Help:      "Encoded fog image size.",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
	})

	FogSaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fog_save_duration_seconds",
		Help:      "Time to encode and store a fog snapshot.",
		Buckets:   prometheus.DefBuckets,
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Wall time of one scene tick.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "phase_duration_seconds",
		Help:      "Wall time of one tick phase.",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
	}, []string{"phase"})
)

// ObserveSave records one saver outcome.
func ObserveSave(bytes int, d time.Duration, err error) {
	if err != nil {
		FogSaves.WithLabelValues("error").Inc()
		return
	}
	FogSaves.WithLabelValues("ok").Inc()
	FogSaveBytes.Observe(float64(bytes))
	FogSaveDuration.Observe(d.Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
