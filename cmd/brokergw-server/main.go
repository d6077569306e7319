package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"brokergw/internal/api"
	"brokergw/internal/broker"
	"brokergw/internal/config"
	"brokergw/internal/gateway"
	"brokergw/internal/publisher"
	"brokergw/internal/store"
	"brokergw/internal/util"
)

var (
	_ gateway.FillSink = (*store.SQLiteStore)(nil)
	_ gateway.FillSink = (*publisher.KafkaPublisher)(nil)
)

func main() {
	cfg, err := config.Load(os.Getenv(config.PathEnv))
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(util.LogOptions{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	util.SetDefault(logger)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("broker gateway exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ledger := broker.NewLedger(broker.WithVenue(cfg.Gateway.Venue))
	hub := api.NewHub(logger)
	sinks := []gateway.FillSink{hub}

	if cfg.Storage.SQLitePath != "" {
		journal, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		defer journal.Close()
		sinks = append(sinks, journal)
		logger.Info("journaling fills", zap.String("path", cfg.Storage.SQLitePath))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kp := publisher.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Warn("closing kafka publisher", zap.Error(err))
			}
		}()
		sinks = append(sinks, kp)
		logger.Info("publishing fills", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	gw := gateway.New(ledger,
		gateway.WithDefaultPrice(cfg.Gateway.DefaultPrice),
		gateway.WithLimits(gateway.NewLimits(cfg.Gateway.MaxOrderQty)),
		gateway.WithFillSinks(sinks...),
		gateway.WithLogger(logger),
	)

	srv := api.NewServer(cfg.Server, gw, hub, logger)
	logger.Info("broker gateway starting",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("grpc_addr", cfg.Server.GRPCAddr()),
		zap.String("venue", cfg.Gateway.Venue),
	)
	serveErr := srv.ListenAndServe(ctx)

	if cfg.Storage.DataDir != "" {
		exportFills(ledger, cfg.Storage.DataDir, logger)
	}
	return serveErr
}

// exportFills archives the session's fills as Parquet.
func exportFills(ledger *broker.Ledger, dataDir string, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fills := ledger.ListFills()
	paths, err := store.NewParquetStore(dataDir).ExportFills(ctx, fills)
	if err != nil {
		logger.Error("exporting fills", zap.Error(err))
		return
	}
	logger.Info("exported fills", zap.Int("fills", len(fills)), zap.Strings("files", paths))
}
