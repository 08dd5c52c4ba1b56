package bootstrap

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"time"

	"ai-streamer-be/internal/config"
	"ai-streamer-be/internal/controller"
	"ai-streamer-be/internal/persona"
	"ai-streamer-be/internal/pkg/logger"
	"ai-streamer-be/internal/repository/implementation"
	"ai-streamer-be/internal/repository/memory"
	"ai-streamer-be/internal/service"
	"ai-streamer-be/pkg/embedding"
	"ai-streamer-be/pkg/llm/factory"
	"ai-streamer-be/pkg/tts"

	pktNats "ai-streamer-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	LiveController      controller.ILiveController
	KnowledgeController controller.IKnowledgeController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	PersonaManager *persona.Manager
	Logger         logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	// Websocket traffic is chatty; keep it out of the main log stream.
	wsLogger := logger.NewIsolatedLogger(wsLogPath(cfg.App.LogFilePath))

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.GoogleGemini,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	ttsProvider := tts.NewHTTPProvider(cfg.Keys.TtsBaseURL)

	// 4. Repositories
	messageRepo := implementation.NewChatMessageRepository(db)
	embedRepo := implementation.NewKnowledgeEmbeddingRepository(db)
	roomRepo := implementation.NewRoomRepository(db)
	sessionRepo := memory.NewSessionRepository(1 * time.Hour)

	// 5. Infrastructure
	// NATS (best effort: rooms work without the event bus)
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// Redis (best effort: single-instance fanout still works without it)
	var rdb *redis.Client
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb = redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis, cross-instance fanout disabled: %v", err)
		rdb = nil
	}

	// 6. Personas (load bundles, warm-start indexes from the embedding cache)
	personaManager := persona.NewManager(sysLogger, embeddingProvider, embedRepo, cfg.Ai.EmbeddingDimension)
	if err := personaManager.LoadAll(context.Background(), cfg.Live.PersonasDir); err != nil {
		log.Fatalf("[FATAL] Failed to load personas: %v", err)
	}
	if cfg.Live.DefaultPersona != "" {
		personaManager.SetDefault(cfg.Live.DefaultPersona)
	}

	// 7. Services
	publisherService := service.NewPublisherService(cfg.Keys.IndexTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, cfg.Keys.IndexTopic, personaManager)

	liveService := service.NewLiveService(
		personaManager,
		llmProvider,
		messageRepo,
		roomRepo,
		sessionRepo,
		rdb,
		natsPub,
		cfg.Live.HistoryLimit,
		sysLogger,
	)
	knowledgeService := service.NewKnowledgeService(personaManager, embedRepo, publisherService)

	// 8. Controllers
	return &Container{
		LiveController:      controller.NewLiveController(liveService, ttsProvider, cfg.Live, wsLogger),
		KnowledgeController: controller.NewKnowledgeController(knowledgeService),
		ConsumerService:     consumerService,
		PersonaManager:      personaManager,
		Logger:              sysLogger,
	}
}

// wsLogPath derives the websocket log file from the main one
// (logs/app.log -> logs/app.ws.log).
func wsLogPath(mainPath string) string {
	ext := filepath.Ext(mainPath)
	return strings.TrimSuffix(mainPath, ext) + ".ws" + ext
}
