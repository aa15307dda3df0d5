package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/waypointcpa/taskpool-backend/internal/clients/openai"
	"github.com/waypointcpa/taskpool-backend/internal/clients/twilio"
	"github.com/waypointcpa/taskpool-backend/internal/config"
	"github.com/waypointcpa/taskpool-backend/internal/db"
	"github.com/waypointcpa/taskpool-backend/internal/handlers"
	"github.com/waypointcpa/taskpool-backend/internal/logger"
	"github.com/waypointcpa/taskpool-backend/internal/middleware"
	"github.com/waypointcpa/taskpool-backend/internal/observability"
	"github.com/waypointcpa/taskpool-backend/internal/realtime/bus"
	"github.com/waypointcpa/taskpool-backend/internal/repos"
	"github.com/waypointcpa/taskpool-backend/internal/server"
	"github.com/waypointcpa/taskpool-backend/internal/services"
	"github.com/waypointcpa/taskpool-backend/internal/sse"
	"github.com/waypointcpa/taskpool-backend/internal/types"
	"github.com/waypointcpa/taskpool-backend/internal/utils"
)

// defaultActionTypes seeds the extraction vocabulary on startup. Existing
// codes are never overwritten, so firms can edit labels in place.
var defaultActionTypes = []*types.ActionType{
	{Code: "document_request", Label: "Document Request", Description: "Client needs to send or receive documents"},
	{Code: "schedule_meeting", Label: "Schedule Meeting", Description: "A call or appointment needs to be booked"},
	{Code: "tax_question", Label: "Tax Question", Description: "Client asked a tax or filing question"},
	{Code: "payment_issue", Label: "Payment Issue", Description: "Billing, invoice or payment followup"},
	{Code: "filing_deadline", Label: "Filing Deadline", Description: "A return or form has an upcoming due date"},
	{Code: "general_followup", Label: "General Followup", Description: "Anything needing a reply that fits no other code"},
}

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
	pipelineConfigPath := utils.GetEnv("PIPELINE_CONFIG_PATH", "config/pipeline.yaml", log)

	// Tracing
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "taskpool-backend",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	if otelShutdown != nil {
		defer otelShutdown(context.Background())
	}

	// Pipeline config
	pipelineCfg, err := config.LoadPipelineConfig(pipelineConfigPath, log)
	if err != nil {
		log.Warn("Pipeline config load failed, using defaults", "path", pipelineConfigPath, "error", err)
		pipelineCfg = config.DefaultPipelineConfig()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	clientRepo := repos.NewClientRepo(thePG, log)
	inboundItemRepo := repos.NewInboundItemRepo(thePG, log)
	clientMatchRepo := repos.NewClientMatchRepo(thePG, log)
	assignmentRuleRepo := repos.NewAssignmentRuleRepo(thePG, log)
	taskRepo := repos.NewTaskRepo(thePG, log)
	actionTypeRepo := repos.NewActionTypeRepo(thePG, log)
	activityLogRepo := repos.NewActivityLogRepo(thePG, log)

	if err := actionTypeRepo.Seed(context.Background(), nil, defaultActionTypes); err != nil {
		log.Warn("Action type seeding failed", "error", err)
	}

	// Outbound clients. Each one is optional: startup continues without it and
	// the dependent feature degrades.
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Warn("Could not init OpenAI client, AI extraction disabled", "error", err)
		openaiClient = nil
	}
	twilioClient, err := twilio.NewFromEnv(log)
	if err != nil {
		log.Warn("Could not init Twilio client, SMS notifications disabled", "error", err)
		twilioClient = nil
	}
	eventBus, err := bus.NewRedisBus(log)
	if err != nil {
		log.Warn("Could not init Redis bus, realtime events disabled", "error", err)
		eventBus = nil
	}

	// Services
	log.Info("Setting up Services from main...")
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
	userService := services.NewUserService(thePG, log, userRepo)
	notifierService := services.NewNotifierService(log, eventBus, twilioClient, userRepo)
	matcherService := services.NewClientMatcherService(thePG, log, clientRepo, pipelineCfg)
	ruleEngineService := services.NewRuleEngineService(thePG, log, assignmentRuleRepo)
	var extractor services.Extractor
	if openaiClient != nil {
		extractor = services.NewExtractionService(log, openaiClient)
	}
	taskService := services.NewTaskService(thePG, log, taskRepo, activityLogRepo, notifierService)
	clientService := services.NewClientService(thePG, log, clientRepo, clientMatchRepo, inboundItemRepo, taskRepo)
	pipelineService := services.NewPipelineService(
		thePG,
		log,
		pipelineCfg,
		inboundItemRepo,
		taskRepo,
		clientMatchRepo,
		actionTypeRepo,
		activityLogRepo,
		matcherService,
		ruleEngineService,
		extractor,
		notifierService,
	)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	taskHandler := handlers.NewTaskHandler(taskService)
	clientHandler := handlers.NewClientHandler(clientService)
	ruleHandler := handlers.NewRuleHandler(assignmentRuleRepo)
	inboundHandler := handlers.NewInboundHandler(pipelineService)

	// Realtime fan-out. Events published on the bus are forwarded to every
	// open stream on this instance.
	eventHub := sse.NewHub(log)
	eventsHandler := handlers.NewEventsHandler(eventHub)
	if eventBus != nil {
		if err := eventBus.StartForwarder(context.Background(), eventHub.Broadcast); err != nil {
			log.Warn("Could not start task event forwarder", "error", err)
		}
	}

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		UserHandler:    userHandler,
		TaskHandler:    taskHandler,
		ClientHandler:  clientHandler,
		RuleHandler:    ruleHandler,
		InboundHandler: inboundHandler,
		EventsHandler:  eventsHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
