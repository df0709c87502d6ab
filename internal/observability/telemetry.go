package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/world"
)

// Атрибуты ресурса, по которым трассы разных миров различаются в коллекторе
const (
	AttrWorldID   = attribute.Key("blockworld.world_id")
	AttrWorldSeed = attribute.Key("blockworld.seed")
)

// InitTelemetry настраивает OTLP HTTP экспортер и глобальный TracerProvider.
// Возвращает функцию shutdown, которую нужно вызвать при завершении.
func InitTelemetry(ctx context.Context, cfg config.ServerConfig, meta world.WorldMeta) (func(context.Context) error, error) {
	exp, err := otlptracehttp.New(ctx, exporterOptions(cfg)...)
	if err != nil {
		return nil, err
	}

	res, err := worldResource(ctx, cfg.ServiceName, meta)
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logging.GetServerLogger().Info("OpenTelemetry: OTLP %s (insecure=%v), service=%s, world=%s",
		cfg.OTLPEndpoint, cfg.OTLPInsecure, cfg.ServiceName, meta.WorldID)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}
	return shutdown, nil
}

func exporterOptions(cfg config.ServerConfig) []otlptracehttp.Option {
	var opts []otlptracehttp.Option
	if cfg.OTLPEndpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
	}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

// worldResource описывает процесс сервера мира
func worldResource(ctx context.Context, service string, meta world.WorldMeta) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(service),
			AttrWorldID.String(meta.WorldID),
			// Сид строкой: int64 сида не должен округляться в бэкендах трассировки
			AttrWorldSeed.String(strconv.FormatInt(meta.Seed, 10)),
			attribute.Int("blockworld.chunk_size", meta.ChunkSize),
		),
	)
}
