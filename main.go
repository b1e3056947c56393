package main

import (
	"context"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/infra-rca/backend/internal/client"
	"github.com/infra-rca/backend/internal/config"
	"github.com/infra-rca/backend/internal/db"
	"github.com/infra-rca/backend/internal/handler"
	"github.com/infra-rca/backend/internal/service"
)

// @title Infra RCA API
// @version 1.0
// @description Alert correlation and LLM-driven root cause analysis backend
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// .env 파일 로드 (없으면 환경변수만 사용)
	_ = godotenv.Load()

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.NewPostgresPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := &db.Postgres{Pool: pool}

	// 핵심 스키마는 부팅 시 반드시 보장
	if err := repo.EnsureAlertSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure alert schema: %v", err)
	}
	if err := repo.EnsureIncidentSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure incident schema: %v", err)
	}
	if err := repo.EnsureReportSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure report schema: %v", err)
	}

	authService, err := service.NewAuthService(repo, cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to init auth service: %v", err)
	}
	if err := authService.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure auth schema: %v", err)
	}
	if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("Failed to ensure admin account: %v", err)
	}

	provider, err := client.NewLLMProvider(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to init LLM provider: %v", err)
	}
	log.Printf("LLM provider: %s (%s)", provider.Name(), provider.Model())

	loki := client.NewLokiClient(cfg.Loki)
	cortex := client.NewCortexClient(cfg.Cortex)
	toolset := service.NewQueryToolset(loki, cortex)
	agentService := service.NewAgentService(provider, toolset, cfg.Agent)

	// 임베딩은 선택 기능: 키가 없으면 어휘 기반 유사도로 폴백
	var embeddingService *service.EmbeddingService
	var similarity service.Similarity = service.LexicalSimilarity{}
	if cfg.Embedding.APIKey != "" {
		embeddingClient, err := client.NewEmbeddingClient(cfg.Embedding)
		if err != nil {
			log.Printf("Embedding disabled: %v", err)
		} else if err := repo.EnsureEmbeddingSchema(ctx); err != nil {
			log.Printf("Embedding disabled (pgvector unavailable): %v", err)
		} else {
			embeddingService = service.NewEmbeddingService(repo, embeddingClient)
			similarity = service.NewEmbeddingSimilarity(embeddingClient)
		}
	}

	engine := service.NewCorrelationEngine(cfg.Correlation, similarity)

	// Slack 알림도 선택 기능
	var notifier service.Notifier
	slack := client.NewSlackClient(cfg.Slack)
	if slack.IsConfigured() {
		slack.SetThreadStore(repo)
		notifier = slack
	} else {
		log.Printf("Slack notifications disabled (SLACK_BOT_TOKEN/SLACK_CHANNEL_ID not set)")
	}

	incidentService := service.NewIncidentService(repo, engine, agentService, notifier, embeddingService)
	alertService := service.NewAlertService(incidentService)
	rcaService := service.NewRcaService(repo, embeddingService)

	authHandler := handler.NewAuthHandler(authService)
	alertmanagerHandler := handler.NewAlertmanagerHandler(alertService)
	rcaHandler := handler.NewRcaHandler(rcaService, incidentService)
	embeddingHandler := handler.NewEmbeddingHandler(embeddingService)

	router := gin.Default()
	router.Use(handler.CORSMiddleware(splitOrigins(cfg.Auth.AllowedOrigins), true))

	readiness := handler.NewReadinessHandler(
		func(ctx context.Context) bool { return repo.Ping(ctx) == nil },
		func(ctx context.Context) bool { return loki.IsConfigured() && loki.Ready(ctx) },
		func(ctx context.Context) bool { return cortex.IsConfigured() && cortex.Ready(ctx) },
		func(context.Context) bool { return llmConfigured(cfg.LLM) },
	)

	router.GET("/ping", handler.Ping)
	router.GET("/", handler.Root)
	router.GET("/health", handler.Ping)
	router.GET("/health/ready", readiness.Ready)
	router.GET("/openapi.json", handler.OpenAPIDoc)

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/config", authHandler.Config)
		auth.GET("/me", handler.AuthMiddleware(authService), authHandler.Me)
	}

	// Alertmanager가 직접 호출하는 경로라 JWT 인증에서 제외
	v1.POST("/alerts/webhook", alertmanagerHandler.Webhook)

	protected := v1.Group("", handler.AuthMiddleware(authService))
	{
		protected.GET("/incidents", rcaHandler.GetIncidents)
		protected.GET("/incidents/:id", rcaHandler.GetIncidentDetail)
		protected.GET("/incidents/:id/report", rcaHandler.GetReport)
		protected.GET("/incidents/:id/similar", rcaHandler.GetSimilarIncidents)
		protected.POST("/incidents/:id/analyze", rcaHandler.AnalyzeIncident)
		protected.POST("/incidents/:id/close", rcaHandler.CloseIncident)
		protected.POST("/embeddings", embeddingHandler.CreateEmbedding)
	}

	log.Printf("Starting server on %s", cfg.Server.Addr)
	if err := router.Run(cfg.Server.Addr); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// llmConfigured - 선택된 provider의 자격 정보가 있는지만 확인 (실제 호출 없음)
func llmConfigured(cfg config.LLMConfig) bool {
	switch cfg.Provider {
	case "anthropic":
		return cfg.AnthropicKey != ""
	case "ollama":
		return cfg.OllamaBaseURL != ""
	default:
		return cfg.GeminiAPIKey != ""
	}
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
