package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	qdrantgo "github.com/qdrant/go-client/qdrant"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"studymate/internal/ai"
	appsvc "studymate/internal/app"
	"studymate/internal/cache"
	"studymate/internal/config"
	"studymate/internal/logging"
	"studymate/internal/metrics"
	mysqlClient "studymate/internal/platform/mysql"
	qdrantClient "studymate/internal/platform/qdrant"
	rabbitmqClient "studymate/internal/platform/rabbitmq"
	redisClient "studymate/internal/platform/redis"
	sqliteClient "studymate/internal/platform/sqlite"
	"studymate/internal/repository"
	"studymate/internal/vectorstore"
	"studymate/internal/worker"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	MQConn   *amqp.Connection
	Qdrant   *qdrantgo.Client
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Chats    *appsvc.ChatService
	Ingest   *appsvc.IngestService
	Answers  *appsvc.AnswerService
	Quizzes  *appsvc.QuizService
	Grading  *appsvc.GradingService
	Progress *appsvc.ProgressService
	Titles   *appsvc.TitleService

	consumers []*worker.Consumer
	closers   []func()

	StartedAt time.Time
}

// New loads configuration, opens and migrates the database and wires every
// service.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := repository.AutoMigrate(db); err != nil {
		_ = closeDB(db)
		return nil, err
	}
	return Build(ctx, cfg, logger, db)
}

// OpenDatabase opens the database selected by database.driver.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return sqliteClient.New(ctx, cfg.SQLite.Path)
	case "mysql":
		return mysqlClient.New(ctx, cfg.MySQL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// Build wires the services on top of an opened, migrated database. Redis,
// RabbitMQ and Qdrant are connected only when enabled; without them the
// caches are skipped, jobs run inline and vectors are searched in SQL. The
// app owns db from here on, including when Build fails.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *gorm.DB) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		StartedAt: time.Now(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	llm := ai.NewClient(ai.Config{
		BaseURL:            cfg.LLM.BaseURL,
		APIKey:             cfg.LLM.APIKey,
		Model:              cfg.LLM.Model,
		EmbeddingModel:     cfg.LLM.EmbeddingModel,
		EmbeddingBatchSize: cfg.LLM.EmbeddingBatchSize,
		Timeout:            time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}, logger.Named("llm"), a.Metrics.ObserveLLMCall)

	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	topicRepo := repository.NewTopicRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	progressRepo := repository.NewProgressRepository(db)

	// Interface values stay nil unless the backing client exists.
	var (
		embeddingCache  appsvc.EmbeddingCache
		transcriptCache appsvc.TranscriptCache
	)
	if cfg.Redis.Enabled {
		a.Redis, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		embeddingCache = cache.NewEmbeddingCache(a.Redis, cfg.LLM.EmbeddingModel,
			time.Duration(cfg.Redis.EmbeddingTTLSeconds)*time.Second)
		transcriptCache = cache.NewTranscriptCache(a.Redis,
			time.Duration(cfg.Redis.TranscriptTTLSeconds)*time.Second)
	}

	var index vectorstore.Index = vectorstore.NewSQLIndex(chunkRepo, logger.Named("vectorstore"))
	if cfg.Qdrant.Enabled {
		a.Qdrant, err = qdrantClient.New(ctx, cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.APIKey, cfg.Qdrant.UseTLS)
		if err != nil {
			return nil, err
		}
		qi, err := vectorstore.NewQdrantIndex(ctx, a.Qdrant, cfg.Qdrant.Collection, uint64(cfg.Qdrant.VectorSize))
		if err != nil {
			return nil, err
		}
		index = qi
	}

	var (
		publisher appsvc.JobPublisher
		inline    *worker.Inline
	)
	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MessagePersistQueue, cfg.RabbitMQ.TitleQueue)
		if err != nil {
			return nil, err
		}
		publisher = rabbitmqClient.NewPublisher(a.MQConn)
	} else {
		inline = worker.NewInline(logger.Named("inline"))
		publisher = inline
	}

	a.Chats = appsvc.NewChatService(chatRepo, messageRepo, transcriptCache, cfg.LLM.MaxContextMessage, logger.Named("chat"))
	a.Ingest = appsvc.NewIngestService(a.Chats, docRepo, topicRepo, llm, llm, index, publisher, appsvc.IngestOptions{
		MaxUploadBytes:      int64(cfg.Ingest.MaxUploadBytes),
		MaxDocumentsPerChat: cfg.Ingest.MaxDocumentsPerChat,
		ChunkSize:           cfg.Ingest.ChunkSize,
		ChunkOverlap:        cfg.Ingest.ChunkOverlap,
		TitleQueue:          cfg.RabbitMQ.TitleQueue,
	}, a.Metrics, logger.Named("ingest"))
	a.Answers = appsvc.NewAnswerService(a.Chats, llm, embeddingCache, index, llm, publisher, appsvc.AnswerOptions{
		MaxContextMessage: cfg.LLM.MaxContextMessage,
		TranscriptQueue:   cfg.RabbitMQ.MessagePersistQueue,
	}, logger.Named("answer"))
	a.Quizzes = appsvc.NewQuizService(topicRepo, chunkRepo, quizRepo, llm, cfg.LLM.QuizTemperature, a.Metrics, logger.Named("quiz"))
	a.Grading = appsvc.NewGradingService(quizRepo, attemptRepo, progressRepo,
		appsvc.NewTopicNormalizer(cfg.Grading.TopicMatchThreshold), a.Metrics, logger.Named("grading"))
	a.Progress = appsvc.NewProgressService(progressRepo)
	a.Titles = appsvc.NewTitleService(a.Chats, chunkRepo, llm, logger.Named("title"))

	jobs := map[string]worker.Handler{
		cfg.RabbitMQ.MessagePersistQueue: worker.TranscriptHandler(a.Chats),
		cfg.RabbitMQ.TitleQueue:          worker.TitleHandler(a.Titles, logger.Named("title")),
	}
	for queue, handler := range jobs {
		if inline != nil {
			inline.Handle(queue, handler)
			continue
		}
		consumer := worker.NewConsumer(a.MQConn, queue, handler, logger.Named("worker"))
		if err := consumer.Start(context.Background()); err != nil {
			return nil, fmt.Errorf("start %s consumer failed: %w", queue, err)
		}
		a.consumers = append(a.consumers, consumer)
	}

	return a, nil
}

// OnClose registers fn to run first when the app closes.
func (a *App) OnClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// HealthProbes returns a probe per connected dependency.
func (a *App) HealthProbes() map[string]func(context.Context) error {
	probes := map[string]func(context.Context) error{
		a.Config.Database.Driver: func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.Redis != nil {
		probes["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	if a.MQConn != nil {
		probes["rabbitmq"] = func(context.Context) error {
			if a.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	if a.Qdrant != nil {
		probes["qdrant"] = func(ctx context.Context) error {
			_, err := a.Qdrant.HealthCheck(ctx)
			return err
		}
	}
	return probes
}

func (a *App) Close() error {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil

	var errs []error
	for _, consumer := range a.consumers {
		consumer.Close()
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq failed: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis failed: %w", err))
		}
	}
	if a.Qdrant != nil {
		if err := a.Qdrant.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close qdrant failed: %w", err))
		}
	}
	if a.DB != nil {
		if err := closeDB(a.DB); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db failed: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database failed: %w", err)
	}
	return nil
}
