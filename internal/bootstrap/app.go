package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/JanhviHarwani/access-ed-backend/internal/ai"
	"github.com/JanhviHarwani/access-ed-backend/internal/app"
	"github.com/JanhviHarwani/access-ed-backend/internal/cache"
	"github.com/JanhviHarwani/access-ed-backend/internal/chunker"
	"github.com/JanhviHarwani/access-ed-backend/internal/config"
	"github.com/JanhviHarwani/access-ed-backend/internal/corpus"
	"github.com/JanhviHarwani/access-ed-backend/internal/logger"
	"github.com/JanhviHarwani/access-ed-backend/internal/model"
	mysqlClient "github.com/JanhviHarwani/access-ed-backend/internal/platform/mysql"
	rabbitmqClient "github.com/JanhviHarwani/access-ed-backend/internal/platform/rabbitmq"
	redisClient "github.com/JanhviHarwani/access-ed-backend/internal/platform/redis"
	"github.com/JanhviHarwani/access-ed-backend/internal/repository"
	"github.com/JanhviHarwani/access-ed-backend/internal/retry"
	"github.com/JanhviHarwani/access-ed-backend/internal/vectorindex"
	"github.com/JanhviHarwani/access-ed-backend/internal/worker"
)

// App wires configuration, infrastructure clients and the ingestion pipeline
// together. HTTP services are assembled on top of it by the transport layer.
type App struct {
	Config    *config.Config
	Log       *zap.Logger
	MySQL     *gorm.DB
	Redis     *redis.Client
	MQConn    *amqp.Connection
	Qdrant    *vectorindex.Store
	Embedder  *ai.EmbeddingClient
	Generator *ai.GenerationClient
	History   *cache.HistoryStore
	Ingest    *app.IngestService
	Publisher *rabbitmqClient.IngestPublisher

	IngestWorker *worker.IngestWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.Document{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	qdrant := vectorindex.NewStore(vectorindex.Config{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		Timeout:    time.Duration(cfg.Qdrant.TimeoutSeconds) * time.Second,
	})
	if err := qdrant.EnsureCollection(ctx, cfg.Embedding.Dimension); err != nil {
		return nil, fmt.Errorf("ensure qdrant collection failed: %w", err)
	}

	policy := retry.NewPolicy(
		cfg.Retry.MaxAttempts,
		time.Duration(cfg.Retry.BaseDelayMS)*time.Millisecond,
		time.Duration(cfg.Retry.MaxJitterMS)*time.Millisecond,
	)

	embedder := ai.NewEmbeddingClient(ai.EmbeddingConfig{
		BaseURL:       cfg.Embedding.BaseURL,
		APIKey:        cfg.Embedding.APIKey,
		Model:         cfg.Embedding.Model,
		Dimension:     cfg.Embedding.Dimension,
		MaxInputChars: cfg.Embedding.MaxInputChars,
		Timeout:       time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
	}, policy)

	generator := ai.NewGenerationClient(ai.GenerationConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}, policy)

	history := cache.NewHistoryStore(
		redisCli,
		cfg.Chat.HistoryWindow,
		time.Duration(cfg.Chat.HistoryTTLSeconds)*time.Second,
	)

	docRepo := repository.NewDocumentRepository(mysqlDB)
	ingest := app.NewIngestService(
		chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap),
		embedder,
		qdrant,
		docRepo,
		cfg.Embedding.BatchSize,
		log,
	)

	publisher := rabbitmqClient.NewIngestPublisher(mqConn, cfg.RabbitMQ.IngestJobQueue)
	ingestWorker := worker.NewIngestWorker(mqConn, ingest, cfg.RabbitMQ.IngestJobQueue, log)
	if err := ingestWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	a := &App{
		Config:       cfg,
		Log:          log,
		MySQL:        mysqlDB,
		Redis:        redisCli,
		MQConn:       mqConn,
		Qdrant:       qdrant,
		Embedder:     embedder,
		Generator:    generator,
		History:      history,
		Ingest:       ingest,
		Publisher:    publisher,
		IngestWorker: ingestWorker,
		StartedAt:    time.Now(),
	}

	if cfg.Corpus.ReloadOnStart {
		if err := a.enqueueCorpus(ctx); err != nil {
			log.Error("enqueue corpus reload failed", zap.Error(err))
		}
	}

	return a, nil
}

// enqueueCorpus publishes one ingest job per corpus document. The worker
// re-ingests them in the background so startup is not blocked on embedding.
func (a *App) enqueueCorpus(ctx context.Context) error {
	docs, err := corpus.Load(a.Config.Corpus.Dir)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := a.Publisher.Publish(ctx, doc); err != nil {
			return fmt.Errorf("publish ingest job for %s failed: %w", doc.ID, err)
		}
	}
	a.Log.Info("corpus reload enqueued",
		zap.String("dir", a.Config.Corpus.Dir),
		zap.Int("documents", len(docs)))
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return closeErr
}
