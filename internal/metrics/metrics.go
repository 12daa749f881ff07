// Package metrics экспортирует показатели сервера в Prometheus.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxbrix/voxbrix-server/internal/logging"
)

var (
	// TickDuration — длительность обработки тика
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxbrix_tick_duration_seconds",
		Help:    "Длительность обработки одного тика сервера",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	// ConnectedPlayers — подключённые игроки
	ConnectedPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxbrix_connected_players",
		Help: "Количество подключённых игроков",
	})

	// ActiveChunks — чанки в симуляции
	ActiveChunks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxbrix_active_chunks",
		Help: "Количество активных и загружаемых чанков",
	})

	// StateBytes — размер исходящих State-конвертов
	StateBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxbrix_state_envelope_bytes",
		Help:    "Размер исходящего State конверта",
		Buckets: prometheus.ExponentialBuckets(64, 2, 12),
	})

	// ChunkLoads — завершённые загрузки и генерации чанков
	ChunkLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxbrix_chunk_loads_total",
		Help: "Завершённые загрузки чанков по источнику",
	}, []string{"source"})

	// ScriptFailures — сбои гостевых скриптов
	ScriptFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxbrix_script_failures_total",
		Help: "Паники и таймауты гостевых скриптов",
	})
)

// Serve запускает HTTP сервер метрик на указанном порту
func Serve(port int) {
	logger := logging.NewLogger("metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("📊 метрики на порту %d", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("сервер метрик: %v", err)
		}
	}()
}
