package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server      ServerConfig
	Postgres    PostgresConfig
	Correlation CorrelationConfig
	Agent       AgentConfig
	LLM         LLMConfig
	Loki        LokiConfig
	Cortex      CortexConfig
	Slack       SlackConfig
	Embedding   EmbeddingConfig
	Auth        AuthConfig
}

type ServerConfig struct {
	Addr string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

// CorrelationConfig - 알림 상관관계 엔진 설정
type CorrelationConfig struct {
	// Window: Incident 시작 시각과 새 알림 사이에 허용되는 최대 시간 간격
	Window time.Duration

	// SemanticThreshold: annotation 텍스트 유사도 가산점(+4) 기준값
	SemanticThreshold float64

	// MinScore: Incident에 합류하기 위한 최소 점수
	MinScore int
}

// AgentConfig - RCA Agent 루프 설정
type AgentConfig struct {
	// MaxIterations: 루프 최대 반복 횟수 (초과 시 failed 리포트)
	MaxIterations int

	// MaxConcurrent: 시스템 전체에서 동시에 실행 가능한 분석 수
	MaxConcurrent int

	// ToolTimeout: 개별 도구 호출 타임아웃
	ToolTimeout time.Duration

	// TurnTimeout: provider 호출 1회의 타임아웃
	TurnTimeout time.Duration

	// MaxRetries: 일시적 provider 오류의 턴 단위 재시도 횟수
	MaxRetries int
}

// WallClock - 루프 전체 상한 (반복 수 x 턴 예산 + 여유분)
// provider가 멈춰도 동시성 슬롯을 무한정 점유하지 못하게 함
func (c AgentConfig) WallClock() time.Duration {
	return time.Duration(c.MaxIterations)*(c.TurnTimeout+c.ToolTimeout) + 30*time.Second
}

type LLMConfig struct {
	// Provider: gemini, anthropic, ollama 중 선택
	Provider string

	GeminiAPIKey   string
	GeminiModel    string
	AnthropicKey   string
	AnthropicModel string
	OllamaBaseURL  string
	OllamaModel    string
}

type LokiConfig struct {
	BaseURL string
	Timeout time.Duration
}

type CortexConfig struct {
	BaseURL string
	Timeout time.Duration
}

type SlackConfig struct {
	BotToken    string
	ChannelID   string
	FrontendURL string
}

type EmbeddingConfig struct {
	APIKey string
}

type AuthConfig struct {
	JWTSecret      string
	JWTAccessTTL   string
	JWTRefreshTTL  string
	AllowSignup    string
	AdminUsername  string
	AdminPassword  string
	CookieDomain   string
	CookiePath     string
	CookieSecure   string
	CookieSameSite string
	AllowedOrigins string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Addr: getenv("SERVER_ADDR", ":8080"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Correlation: CorrelationConfig{
			Window:            getenvDuration("CORRELATION_WINDOW", 5*time.Minute),
			SemanticThreshold: getenvFloat("SEMANTIC_THRESHOLD", 0.70),
			MinScore:          getenvInt("CORRELATION_MIN_SCORE", 2),
		},
		Agent: AgentConfig{
			MaxIterations: getenvInt("RCA_MAX_ITERATIONS", 10),
			MaxConcurrent: getenvInt("RCA_MAX_CONCURRENT", 3),
			ToolTimeout:   getenvDuration("RCA_TOOL_TIMEOUT", 30*time.Second),
			TurnTimeout:   getenvDuration("RCA_TURN_TIMEOUT", 120*time.Second),
			MaxRetries:    getenvInt("RCA_MAX_RETRIES", 3),
		},
		LLM: LLMConfig{
			Provider:       getenv("LLM_PROVIDER", "gemini"),
			GeminiAPIKey:   os.Getenv("AI_API_KEY"),
			GeminiModel:    getenv("GEMINI_MODEL", "gemini-2.0-flash"),
			AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel: getenv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			OllamaBaseURL:  getenv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:    getenv("OLLAMA_MODEL", "llama3.1:8b"),
		},
		Loki: LokiConfig{
			BaseURL: getenv("LOKI_URL", "http://localhost:3100"),
			Timeout: getenvDuration("LOKI_TIMEOUT", 30*time.Second),
		},
		Cortex: CortexConfig{
			BaseURL: getenv("CORTEX_URL", "http://localhost:9009"),
			Timeout: getenvDuration("CORTEX_TIMEOUT", 30*time.Second),
		},
		Slack: SlackConfig{
			BotToken:    os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID:   os.Getenv("SLACK_CHANNEL_ID"),
			FrontendURL: os.Getenv("FRONTEND_URL"),
		},
		Embedding: EmbeddingConfig{
			APIKey: os.Getenv("AI_API_KEY"),
		},
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			JWTAccessTTL:   getenv("JWT_ACCESS_TTL", "15m"),
			JWTRefreshTTL:  getenv("JWT_REFRESH_TTL", "720h"),
			AllowSignup:    os.Getenv("ALLOW_SIGNUP"),
			AdminUsername:  os.Getenv("ADMIN_USERNAME"),
			AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
			CookieDomain:   os.Getenv("AUTH_COOKIE_DOMAIN"),
			CookiePath:     os.Getenv("AUTH_COOKIE_PATH"),
			CookieSecure:   os.Getenv("AUTH_COOKIE_SECURE"),
			CookieSameSite: os.Getenv("AUTH_COOKIE_SAMESITE"),
			AllowedOrigins: getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
