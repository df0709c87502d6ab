package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/blockworld/internal/api"
	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/eventbus"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/observability"
	"github.com/annel0/blockworld/internal/storage_adapter"
	"github.com/annel0/blockworld/internal/world"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию BLOCKWORLD_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка конфигурации: %v", err)
	}

	logging.SetLogDir(cfg.Log.Dir)
	if err := logging.InitDefaultLogger("server", logging.ParseLevel(cfg.Log.Level)); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer func() { _ = logging.GetLoggerManager().CloseAll() }()

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("🌍 Запуск сервера мира: seed=%d chunk=%d storage=%s eventbus=%s",
		cfg.World.Seed, cfg.World.ChunkSize, cfg.Storage.Backend, cfg.EventBus.Backend)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// === ХРАНИЛИЩЕ ===
	store, err := storage_adapter.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("хранилище %s: %w", cfg.Storage.Backend, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("Ошибка закрытия хранилища: %v", err)
		}
	}()

	// === ШИНА СОБЫТИЙ ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		return err
	}
	if bus != nil {
		defer func() { _ = bus.Close() }()

		exporter, err := eventbus.NewMetricsExporter(bus, registry)
		if err != nil {
			return err
		}
		exporter.Start()
		defer exporter.Stop()

		sub, err := eventbus.StartLoggingListener(ctx, bus, logging.GetComponentLogger("events"))
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()
	}

	// === МИР ===
	metrics, err := world.NewMetrics(registry)
	if err != nil {
		return err
	}
	opts := []world.Option{world.WithStore(store), world.WithMetrics(metrics)}
	if bus != nil {
		opts = append(opts, world.WithEventBus(bus))
	}
	wm, err := world.NewWorldManager(cfg.World, opts...)
	if err != nil {
		return err
	}
	logging.Info("✅ Мир %s открыт", wm.Meta().WorldID)

	// === ТЕЛЕМЕТРИЯ ===
	// Ресурс трассировки помечается сидом и ID мира, поэтому провайдер
	// ставится после открытия мира; трейсеры otel подхватят его лениво.
	if cfg.Server.Tracing {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Server, wm.Meta())
		if err != nil {
			logging.Warn("OpenTelemetry недоступен: %v", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	// === REST API ===
	apiServer, err := api.NewServerIntegration(api.Config{
		Port:     fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		World:    wm,
		Bus:      bus,
		Registry: registry,
	})
	if err != nil {
		return err
	}
	if err := apiServer.Start(); err != nil {
		return err
	}

	metricsServer := startMetricsServer(cfg.Server, registry)

	runErr := make(chan error, 1)
	go func() { runErr <- wm.Run(ctx) }()

	// Ждем сигнала или фатальной ошибки
	var failure error
	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал завершения")
	case err, ok := <-apiServer.Errors():
		if ok {
			failure = fmt.Errorf("REST API: %w", err)
		}
		stop()
	case err := <-runErr:
		failure = err
		runErr <- nil
		stop()
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logging.Error("❌ %v", err)
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) && failure == nil {
		failure = err
	}
	if err := wm.Close(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка сохранения мира: %v", err)
		if failure == nil {
			failure = err
		}
	}

	if failure == nil {
		logging.Info("👋 Сервер успешно остановлен")
	}
	return failure
}

// openBus создаёт шину событий по конфигурации; backend none даёт nil
func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "nats":
		bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("NATS JetStream %s: %w", cfg.URL, err)
		}
		return bus, nil
	default:
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}
}

// startMetricsServer поднимает отдельный порт /metrics, если он отличается от REST
func startMetricsServer(cfg config.ServerConfig, reg *prometheus.Registry) *http.Server {
	port := cfg.GetMetricsPort()
	if port == cfg.GetRESTPort() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка сервера метрик: %v", err)
		}
	}()
	logging.Info("📈 Prometheus метрики: http://localhost:%d/metrics", port)
	return srv
}
