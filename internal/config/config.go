package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for agentchat
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	RAG       RAGConfig       `mapstructure:"rag"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Stream    StreamConfig    `mapstructure:"stream"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AdminConfig holds API authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds conversation store configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig holds the optional redis response cache configuration
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// LLMConfig holds model provider configuration
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // openai, anthropic, ollama, groq
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// EmbeddingConfig holds embedding backend configuration
type EmbeddingConfig struct {
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// RAGConfig holds retrieval engine configuration
type RAGConfig struct {
	PersistPath    string  `mapstructure:"persist_path"`
	CollectionName string  `mapstructure:"collection_name"`
	ChunkSize      int     `mapstructure:"chunk_size"`
	ChunkOverlap   int     `mapstructure:"chunk_overlap"`
	RetrievalK     int     `mapstructure:"retrieval_k"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
}

// AgentsConfig holds agent orchestration configuration
type AgentsConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxIterations int  `mapstructure:"max_iterations"`
}

// MCPConfig holds tool server configuration
type MCPConfig struct {
	Servers        []MCPServerConfig `mapstructure:"servers"`
	ConnectTimeout time.Duration     `mapstructure:"connect_timeout"`
	CloseTimeout   time.Duration     `mapstructure:"close_timeout"`
}

// MCPServerConfig describes one remote tool server
type MCPServerConfig struct {
	Name         string            `mapstructure:"name"`
	URL          string            `mapstructure:"url"`
	Headers      map[string]string `mapstructure:"headers"`
	APIKey       string            `mapstructure:"api_key"`
	APIKeyHeader string            `mapstructure:"api_key_header"`
	Enabled      bool              `mapstructure:"enabled"`
}

// StreamConfig holds streaming behaviour configuration
type StreamConfig struct {
	ChunkDelay time.Duration `mapstructure:"chunk_delay"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("AGENTCHAT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("admin.api_key", "")

	v.SetDefault("database.path", "./data/agentchat.db")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.url", "redis://localhost:6379/0")
	v.SetDefault("cache.ttl", time.Hour)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 4096)

	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")

	v.SetDefault("rag.persist_path", "./data/vector_store")
	v.SetDefault("rag.collection_name", "agentchat_docs")
	v.SetDefault("rag.chunk_size", 1000)
	v.SetDefault("rag.chunk_overlap", 200)
	v.SetDefault("rag.retrieval_k", 5)
	v.SetDefault("rag.score_threshold", 0.7)

	v.SetDefault("agents.enabled", true)
	v.SetDefault("agents.max_iterations", 10)

	v.SetDefault("mcp.connect_timeout", 30*time.Second)
	v.SetDefault("mcp.close_timeout", time.Second)

	v.SetDefault("stream.chunk_delay", 10*time.Millisecond)
}

// Address returns the server listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
