package main

import (
	"context"
	"flag"
	stdlog "log"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/armada-chat/armada/config"
	"github.com/armada-chat/armada/internal/agent"
	"github.com/armada-chat/armada/internal/consumer"
	"github.com/armada-chat/armada/internal/handlers"
	"github.com/armada-chat/armada/internal/notify"
	"github.com/armada-chat/armada/internal/presence"
	"github.com/armada-chat/armada/internal/repository"
	"github.com/armada-chat/armada/internal/routers"
	"github.com/armada-chat/armada/internal/services"
	"github.com/armada-chat/armada/internal/storage"
	"github.com/armada-chat/armada/internal/utils"
	"github.com/armada-chat/armada/internal/ws"
	"github.com/armada-chat/armada/middleware/jwt"
	"github.com/armada-chat/armada/middleware/log"
	"github.com/armada-chat/armada/pkg/mq"
	"github.com/armada-chat/armada/utils/ratelimit"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		stdlog.Fatalf("failed to load config: %v", err)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		stdlog.Fatalf("failed to init logger: %v", err)
	}
	defer log.Close()

	pool := utils.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, log)
	pool.Start()
	defer pool.Stop()

	dsn := storage.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	db, err := storage.InitPostgres(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
	if err != nil {
		log.Fatal("failed to init postgres", zap.Error(err))
	}

	redisClient, err := storage.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatal("failed to init redis", zap.Error(err))
	}
	defer redisClient.Close()

	userRepo := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	pushRepo := repository.NewPushRepository(db)

	if err := services.SeedBots(context.Background(), userRepo, agent.BotIDs(), agent.BotName); err != nil {
		log.Fatal("failed to seed agent accounts", zap.Error(err))
	}

	tokens := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)

	hub := ws.NewHub(log)
	registry := presence.NewRegistry()
	gateway := notify.NewHTTPGateway(&cfg.Push)
	accounting := services.NewAccountingService(roomRepo, pushRepo, registry, hub, gateway, log)

	// Kafka carries room events to the accounting consumer. Without
	// brokers the system degrades to inline accounting on the pool.
	var sink services.EventSink
	kafkaProducer, err := mq.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		log.Warn("kafka unavailable, running accounting inline", zap.Error(err))
		sink = services.NewInlineSink(accounting, pool, log)
	} else {
		defer kafkaProducer.Close()
		sink = kafkaProducer

		roomConsumer := consumer.NewRoomEventConsumer(accounting, log)
		group, err := consumer.Start(context.Background(), cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, roomConsumer, log)
		if err != nil {
			log.Fatal("failed to start room event consumer", zap.Error(err))
		}
		defer group.Close()
	}

	limiter := ratelimit.NewMessageLimiter(redisClient.Client(), log, cfg.RateLimit.MessagesPerMinute, cfg.RateLimit.FailOpen)

	authService := services.NewAuthService(userRepo, tokens)
	userService := services.NewUserService(userRepo, pushRepo)
	roomService := services.NewRoomService(roomRepo, userRepo, hub, redisClient, log)
	messageService := services.NewMessageService(msgRepo, roomRepo, userRepo, redisClient, hub, limiter, sink, log)
	chatService := services.NewChatService(roomRepo, userRepo, messageService, registry, hub, redisClient, log)

	runner := agent.NewHTTPRunner(&cfg.Agents)
	bridge := services.NewAgentBridge(messageService, chatService, runner, pool, hub, log)
	messageService.SetBridge(bridge)

	hub.SetListener(chatService)
	go hub.Run()
	defer hub.Stop()

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())

	routers.SetupRoutes(r, log,
		tokens,
		handlers.NewAuthHandler(authService),
		handlers.NewUserHandler(userService),
		handlers.NewRoomHandler(roomService),
		handlers.NewMessageHandler(messageService),
		hub,
		chatService,
	)

	log.Info("starting server", zap.Int("port", cfg.Server.Port))
	if err := r.Run(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
