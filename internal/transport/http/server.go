package http

import (
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"studymate/internal/bootstrap"
	"studymate/internal/metrics"
	"studymate/internal/transport/http/handler"
	"studymate/internal/transport/http/middleware"
)

// Handlers groups the route handlers NewRouter mounts.
type Handlers struct {
	Health   *handler.HealthHandler
	Chat     *handler.ChatHandler
	Ingest   *handler.IngestHandler
	Answer   *handler.AnswerHandler
	Quiz     *handler.QuizHandler
	Progress *handler.ProgressHandler
}

type RouterOptions struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// Limiter guards the routes that call the model provider. Nil disables
	// rate limiting.
	Limiter *middleware.RateLimiter
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)

	limiter := middleware.NewRateLimiter(app.Config.RateLimit.RPS, app.Config.RateLimit.Burst)
	app.OnClose(limiter.Stop)

	probes := app.HealthProbes()
	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]handler.Check, 0, len(names))
	for _, name := range names {
		checks = append(checks, handler.Check{Name: name, Probe: probes[name]})
	}

	return Routes(RouterOptions{
		Logger:   app.Logger.Named("http"),
		Metrics:  app.Metrics,
		Gatherer: app.Registry,
		Limiter:  limiter,
	}, Handlers{
		Health:   handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, checks...),
		Chat:     handler.NewChatHandler(app.Chats, app.Titles),
		Ingest:   handler.NewIngestHandler(app.Ingest, int64(app.Config.Ingest.MaxUploadBytes)),
		Answer:   handler.NewAnswerHandler(app.Answers),
		Quiz:     handler.NewQuizHandler(app.Quizzes, app.Grading),
		Progress: handler.NewProgressHandler(app.Progress),
	})
}

// Routes builds the engine from already constructed handlers.
func Routes(opts RouterOptions, h Handlers) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.Metrics(opts.Metrics))

	if h.Health != nil {
		router.GET("/healthz", h.Health.Check)
	}
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	limited := func(c *gin.Context) { c.Next() }
	if opts.Limiter != nil {
		limited = opts.Limiter.Handler()
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.UserID())

	chatGroup := v1.Group("/chats")
	chatGroup.POST("", h.Chat.CreateChat)
	chatGroup.GET("", h.Chat.ListChats)
	chatGroup.GET("/:id/messages", h.Chat.GetMessages)
	chatGroup.POST("/:id/title", limited, h.Chat.GenerateTitle)

	v1.POST("/ingest", limited, h.Ingest.UploadPDF)
	v1.POST("/answer", limited, h.Answer.Answer)

	quizGroup := v1.Group("/quizzes")
	quizGroup.POST("", limited, h.Quiz.Generate)
	quizGroup.POST("/:id/submit", h.Quiz.Submit)

	v1.GET("/progress", h.Progress.List)

	return router
}
