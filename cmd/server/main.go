// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sales-voice-go/internal/chart"
	"sales-voice-go/internal/config"
	"sales-voice-go/internal/dataset"
	"sales-voice-go/internal/handler"
	"sales-voice-go/internal/middleware"
	"sales-voice-go/internal/model"
	"sales-voice-go/internal/pipeline"
	"sales-voice-go/internal/prompt"
	"sales-voice-go/internal/repository"
	"sales-voice-go/internal/service"
	"sales-voice-go/pkg/database"
	"sales-voice-go/pkg/kafka"
	"sales-voice-go/pkg/llm"
	"sales-voice-go/pkg/log"
	"sales-voice-go/pkg/storage"
	"sales-voice-go/pkg/token"
	"sales-voice-go/pkg/tts"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 和对象存储
	database.InitMySQL(cfg.Database.MySQL.DSN, &model.Dataset{}, &model.Conversation{})
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	store := storage.NewObjectStore(storage.MinioClient, cfg.MinIO)

	// 4. 加载默认数据集，失败时仅允许上传后提问
	opts := dataset.Options{CoerceNumeric: cfg.Dataset.CoerceNumeric, DropMissingUnitType: cfg.Dataset.DropMissingUnitType}
	defaultTable, err := dataset.LoadFile(cfg.Dataset.DefaultPath, opts)
	if err != nil {
		log.Warnf("默认数据集加载失败，需上传数据后才能提问: %v", err)
		defaultTable = nil
	} else {
		log.Infof("默认数据集已加载: %s, 行数: %d", cfg.Dataset.DefaultPath, defaultTable.Len())
	}

	// 5. 初始化 Repository
	ttl := time.Duration(cfg.Session.TTLHours) * time.Hour
	sessionRepo := repository.NewSessionRepository(database.RDB, ttl)
	conversationRepo := repository.NewConversationRepository(database.RDB, ttl)
	speechRepo := repository.NewSpeechRepository(database.RDB, ttl)
	datasetRepo := repository.NewDatasetRepository(database.DB)
	archiveRepo := repository.NewArchiveRepository(database.DB)

	// 6. 初始化客户端与语音处理管道
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TokenExpireHours)
	llmClient := llm.NewClient(cfg.LLM)
	processor := pipeline.NewProcessor(tts.NewClient(cfg.Speech), store, speechRepo)
	var producer kafka.Producer
	if cfg.Speech.Mode == service.SpeechModeAsync {
		producer = kafka.NewProducer(cfg.Kafka)
	}

	builder, err := prompt.NewBuilder(cfg.LLM.Prompt.Template, cfg.LLM.Prompt.SchemaMode, cfg.LLM.Prompt.SampleRows)
	if err != nil {
		log.Fatal("提示词模板初始化失败", err)
	}
	renderer, err := chart.NewRenderer(cfg.Chart.Strategy, cfg.Chart.TopN)
	if err != nil {
		log.Fatal("图表策略初始化失败", err)
	}

	// 7. 初始化 Service (依赖注入)
	inflight := service.NewInflight()
	speechService, err := service.NewSpeechService(
		cfg.Speech.Mode,
		time.Duration(cfg.Speech.TimeoutSeconds)*time.Second,
		cfg.Speech.Format,
		processor,
		producer,
		speechRepo,
		store,
	)
	if err != nil {
		log.Fatal("语音服务初始化失败", err)
	}
	sessionService := service.NewSessionService(sessionRepo, conversationRepo, jwtManager, inflight)
	datasetService := service.NewDatasetService(sessionRepo, datasetRepo, store, defaultTable, cfg.Dataset)
	conversationService := service.NewConversationService(conversationRepo, sessionRepo, archiveRepo, speechService)
	chatService := service.NewChatService(service.ChatDeps{
		LLM:              llmClient,
		Builder:          builder,
		Renderer:         renderer,
		Datasets:         datasetService,
		Speech:           speechService,
		ConversationRepo: conversationRepo,
		SessionRepo:      sessionRepo,
		ArchiveRepo:      archiveRepo,
		Inflight:         inflight,
		Timeout:          time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())
	r.MaxMultipartMemory = int64(cfg.Dataset.MaxUploadMB) << 20

	// 9. 注册路由
	sessionHandler := handler.NewSessionHandler(sessionService)
	datasetHandler := handler.NewDatasetHandler(datasetService, cfg.Dataset.MaxUploadMB)
	chatHandler := handler.NewChatHandler(chatService, jwtManager)
	conversationHandler := handler.NewConversationHandler(conversationService)
	speechHandler := handler.NewSpeechHandler(speechService)
	healthHandler := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"redis": func(ctx context.Context) error { return database.RDB.Ping(ctx).Err() },
		"mysql": func(ctx context.Context) error {
			sqlDB, err := database.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	r.GET("/healthz", healthHandler.Healthz)
	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/sessions", sessionHandler.Create)

		// 会话内的路由，需要会话令牌
		session := apiV1.Group("/sessions/:id")
		session.Use(middleware.SessionAuth(jwtManager))
		{
			session.DELETE("", sessionHandler.End)
			session.POST("/dataset", datasetHandler.Upload)
			session.GET("/dataset", datasetHandler.Info)
			session.DELETE("/dataset", datasetHandler.Clear)
			session.POST("/ask", chatHandler.Ask)
			session.GET("/history", conversationHandler.History)
			session.GET("/archive", conversationHandler.Archive)
			session.GET("/chart", conversationHandler.Chart)
			session.GET("/turns/:turnId/audio", speechHandler.Audio)
		}
	}
	r.GET("/chat/:token", chatHandler.Handle)

	// 10. 启动 HTTP 服务器与 Kafka 消费者，收到信号后优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务监听失败: %w", err)
		}
		return nil
	})
	if producer != nil {
		g.Go(func() error {
			kafka.StartConsumer(gctx, cfg.Kafka, processor, database.RDB)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("接收到停机信号，正在关闭服务...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("服务异常退出: %v", err)
	}
	log.Info("服务已优雅关闭")
}
