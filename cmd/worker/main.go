package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/dishgraph/backend/internal/db"
	"github.com/OFFIS-RIT/dishgraph/backend/internal/queue"
	"github.com/OFFIS-RIT/dishgraph/backend/internal/util"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/ai"
	oai "github.com/OFFIS-RIT/dishgraph/backend/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/dishgraph/backend/pkg/ai/openai"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/extract"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/graph"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/leaselock"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/loader"
	ioloader "github.com/OFFIS-RIT/dishgraph/backend/pkg/loader/io"
	s3loader "github.com/OFFIS-RIT/dishgraph/backend/pkg/loader/s3"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/logger/console"
	pgxstore "github.com/OFFIS-RIT/dishgraph/backend/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

const maxDeliveries = 10

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Extractor
	aiClient, extractor := newExtractor()

	// Migrations
	dbURL := util.GetEnv("DATABASE_URL")
	if util.GetEnvBool("MIGRATE_ON_START", true) {
		if err := db.Migrate(dbURL); err != nil {
			logger.Fatal("Failed to run migrations", "err", err)
		}
	}

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	storage := pgxstore.NewGraphDBStorageWithConnection(
		pgConn,
		pgxstore.WithExcerptLength(util.GetEnvInt("MENTION_EXCERPT_LENGTH", 500)),
	)

	graphClient, err := graph.NewGraphClient(graph.NewGraphClientParams{
		ParallelUnits:    util.GetEnvInt("AI_PARALLEL_REQ", 4),
		ExtractTimeout:   util.GetEnvDuration("AI_TIMEOUT", 2*time.Minute),
		MaxRetries:       util.GetEnvInt("AI_MAX_RETRIES", 3),
		TxMaxRetries:     util.GetEnvInt("TX_MAX_RETRIES", 3),
		RetryDelay:       util.GetEnvDuration("RETRY_DELAY", 500*time.Millisecond),
		ResolveThreshold: util.GetEnvNumeric("RESOLVE_THRESHOLD", 0.7),
		KnownRestaurants: util.GetEnvInt("KNOWN_RESTAURANTS", 5000),
	})
	if err != nil {
		logger.Fatal("Failed to create graph client", "err", err)
	}

	archives := newArchiveLoader(ctx)

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.BatchQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	handler := &queue.BatchHandler{
		Graph:     graphClient,
		Extractor: extractor,
		Storage:   storage,
		Loader:    archives,
		Locker:    leaselock.New(pgConn),
		Notify: func(topic string, body []byte) error {
			return queue.PublishTopic(ch, topic, body)
		},
		LeaseTTL: util.GetEnvDuration("BATCH_LEASE_TTL", 10*time.Minute),
	}

	// A single consumer channel with prefetch=1 keeps one batch in flight
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.BatchQueue,
		queue.BatchQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.BatchQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.BatchQueue, "adapter", util.GetEnvString("AI_ADAPTER", "openai"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed", "queue", queue.BatchQueue)
					stop()
					return
				}
				process(ctx, handler, consumerCh, msg, aiClient)
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, waiting for the current unit...")
	<-done
}

func process(ctx context.Context, handler *queue.BatchHandler, ch *amqp.Channel, msg amqp.Delivery, aiClient ai.ExtractionAIClient) {
	startTime := time.Now()
	logger.Info("Received message", "queue", queue.BatchQueue)

	processingErr := handler.ProcessBatchMessage(ctx, msg.Body)
	switch {
	case processingErr != nil && ctx.Err() != nil:
		// Interrupted batches are redelivered, committed units are skipped
		// on replay through mention idempotence.
		logger.Warn("Batch interrupted by shutdown", "err", processingErr)
		if err := msg.Nack(false, true); err != nil {
			logger.Error("Failed to nack message", "err", err)
		}
	case processingErr != nil:
		logger.Error("Error processing message", "queue", queue.BatchQueue, "err", processingErr)
		queue.HandleProcessingError(ch, msg, queue.BatchQueue, maxDeliveries, processingErr)
	default:
		if err := msg.Ack(false); err != nil {
			logger.Error("Failed to ack message", "err", err)
		}
		logger.Info("Message processed successfully", "queue", queue.BatchQueue)
	}

	if aiClient != nil {
		metrics := aiClient.GetMetrics()
		logger.Info(
			"AI Metrics",
			"requests", metrics.Requests,
			"input_tokens", metrics.InputTokens,
			"output_tokens", metrics.OutputTokens,
			"total_tokens", metrics.TotalTokens,
			"duration", clock(time.Duration(metrics.DurationMs)*time.Millisecond),
		)
		aiClient.ResetMetrics()
	}

	logger.Info("Processing time", "duration", clock(time.Since(startTime)))
	logger.Info("Waiting for next message")
}

// newExtractor returns the LLM client (nil for the rule adapter) and the
// extractor built on it.
func newExtractor() (ai.ExtractionAIClient, extract.Extractor) {
	adapter := strings.ToLower(util.GetEnvString("AI_ADAPTER", "openai"))
	contextTokens := util.GetEnvInt("AI_CONTEXT_TOKENS", 8000)

	switch adapter {
	case "rules":
		return nil, extract.NewRuleExtractor()
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ExtractionModel:       util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			BaseURL:               util.GetEnv("AI_CHAT_URL"),
			ApiKey:                util.GetEnvString("AI_CHAT_KEY", ""),
			MaxConcurrentRequests: int64(util.GetEnvInt("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		return client, extract.NewLLMExtractor(client, contextTokens)
	default:
		client := gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			ChatURL:         util.GetEnv("AI_CHAT_URL"),
			ChatKey:         util.GetEnv("AI_CHAT_KEY"),
		})
		return client, extract.NewLLMExtractor(client, contextTokens)
	}
}

// newArchiveLoader reads archives from S3 unless ARCHIVE_SOURCE=local, in
// which case archive keys are paths on the local file system.
func newArchiveLoader(ctx context.Context) loader.ArchiveLoader {
	if util.GetEnvString("ARCHIVE_SOURCE", "s3") == "local" {
		return ioloader.NewIOArchiveLoader()
	}

	l, err := s3loader.NewS3ArchiveLoader(ctx, s3loader.NewS3ArchiveLoaderParams{
		Bucket:    util.GetEnvString("AWS_BUCKET", "dishgraph"),
		Endpoint:  util.GetEnvString("AWS_ENDPOINT", ""),
		Region:    util.GetEnvString("AWS_REGION", "us-east-1"),
		AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
		SecretKey: util.GetEnv("AWS_SECRET_KEY"),
	})
	if err != nil {
		logger.Fatal("Could not create S3 archive loader", "err", err)
	}
	return l
}

func clock(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
