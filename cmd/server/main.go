package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/postmark-bridge/internal/api"
	"github.com/ignite/postmark-bridge/internal/config"
	"github.com/ignite/postmark-bridge/internal/events"
	"github.com/ignite/postmark-bridge/internal/pkg/logger"
	"github.com/ignite/postmark-bridge/internal/repository/postgres"
	redisrepo "github.com/ignite/postmark-bridge/internal/repository/redis"
	"github.com/ignite/postmark-bridge/internal/service/suppression"
	"github.com/ignite/postmark-bridge/internal/webhook"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	if !strings.Contains(dsn, "connect_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "connect_timeout=5"
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openRedis(ctx context.Context, cfg config.StorageConfig) (*redis.Client, error) {
	var client *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisAddr); err == nil {
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.Redact())
	lg := logger.Default()

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The database also backs contact lookup and stat annotation, so it is
	// opened whenever configured, even with the redis backend.
	var db *sql.DB
	if cfg.Storage.DatabaseURL != "" {
		db, err = openDatabase(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database (%s): %v", extractHost(cfg.Storage.DatabaseURL), err)
		}
		defer db.Close()
		lg.Info("database connected", "host", extractHost(cfg.Storage.DatabaseURL))
	}

	var (
		repo        suppression.Repository
		redisClient *redis.Client
		critical    = "database"
	)
	switch cfg.Storage.Type {
	case config.StorageRedis:
		redisClient, err = openRedis(ctx, cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to connect to redis (%s): %v", cfg.Storage.RedisAddr, err)
		}
		defer redisClient.Close()
		repo = redisrepo.NewSuppressionRepo(redisClient, "")
		critical = "redis"
	default:
		repo = postgres.NewSuppressionRepo(db)
	}
	lg.Info("suppression store ready", "backend", cfg.Storage.Type)

	opts := []suppression.Option{suppression.WithLogger(lg)}
	if db != nil {
		opts = append(opts,
			suppression.WithContactFinder(postgres.NewContactRepo(db)),
			suppression.WithStatsRecorder(postgres.NewStatsRepo(db)),
		)
	}

	var sqsClient *sqs.Client
	if cfg.Events.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Events.AWSRegion))
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		sqsClient = sqs.NewFromConfig(awsCfg)
		opts = append(opts, suppression.WithPublisher(events.NewPublisher(sqsClient, cfg.Events.SQSQueueURL)))
		lg.Info("suppression events enabled", "queue", cfg.Events.SQSQueueURL)
	}

	svc := suppression.NewService(repo, opts...)

	var queue api.QueueAttributesAPI
	if sqsClient != nil {
		queue = sqsClient
	}
	server := api.NewServer(cfg.Server, api.Deps{
		Webhook:      webhook.NewHandler(svc, lg),
		Suppressions: svc,
		Health:       api.NewHealthChecker(db, redisClient, queue, cfg.Events.SQSQueueURL, critical),
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		lg.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	lg.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("server shutdown error", "error", err)
	}
	lg.Info("server stopped")
}
