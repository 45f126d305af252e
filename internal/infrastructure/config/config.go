package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
// 进程启动时构造一次，按引用传入各构造函数；不保留任何全局可变凭证状态
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Providers ProvidersConfig `yaml:"providers"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort string `yaml:"http_port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Path sqlite 数据库文件路径，留空使用 ~/.aimaestro/aimaestro.db
	Path string `yaml:"path"`
}

// ProviderCredential 单个模型提供方的凭证
type ProviderCredential struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ProvidersConfig 生成模型提供方配置
type ProvidersConfig struct {
	OpenAI    ProviderCredential `yaml:"openai"`
	Anthropic ProviderCredential `yaml:"anthropic"`
	Gemini    ProviderCredential `yaml:"gemini"`

	// TimeoutSeconds 每次生成调用的超时上限
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout 生成调用超时
func (p *ProvidersConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// EmbeddingConfig Embedding API 配置（OpenAI 兼容）
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// QdrantConfig 向量索引配置
// Enabled 为 false 时使用进程内内存索引（开发/测试）
type QdrantConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Host       string `yaml:"host"`
	GRPCPort   int    `yaml:"grpc_port"`
	Collection string `yaml:"collection"`
}

// IngestConfig 文档摄取配置
type IngestConfig struct {
	// UploadDir 上传文件存储目录，留空使用 ~/.aimaestro/uploads
	UploadDir string `yaml:"upload_dir"`
	// MaxFileSize 单个文件大小上限（字节）
	MaxFileSize int64 `yaml:"max_file_size"`
	// Workers 摄取队列工作协程数
	Workers int `yaml:"workers"`
	// QueueSize 摄取队列容量
	QueueSize int `yaml:"queue_size"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	// TopK 每次对话默认检索的片段数
	TopK int `yaml:"top_k"`
}

// NewConfig 创建配置：默认值 -> 可选配置文件 -> 环境变量覆盖
func NewConfig() *Config {
	cfg := defaults()

	if path := os.Getenv("AIMAESTRO_CONFIG"); path != "" {
		// 配置文件缺失不是错误，使用默认值即可
		if err := cfg.loadFile(path); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "failed to load config file %s: %v\n", path, err)
		}
	}

	cfg.applyEnv()
	return cfg
}

// defaults 默认配置
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: ":8090",
		},
		Database: DatabaseConfig{
			Path: "",
		},
		Providers: ProvidersConfig{
			OpenAI:         ProviderCredential{BaseURL: "https://api.openai.com/v1"},
			Anthropic:      ProviderCredential{BaseURL: "https://api.anthropic.com"},
			Gemini:         ProviderCredential{BaseURL: "https://generativelanguage.googleapis.com"},
			TimeoutSeconds: 60,
		},
		Embedding: EmbeddingConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "text-embedding-3-small",
		},
		Qdrant: QdrantConfig{
			Enabled:    false,
			Host:       "localhost",
			GRPCPort:   6334,
			Collection: "kb_chunks",
		},
		Ingest: IngestConfig{
			UploadDir:   "",
			MaxFileSize: 20 << 20,
			Workers:     2,
			QueueSize:   64,
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
	}
}

// loadFile 读取 yaml 配置文件
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// applyEnv 用环境变量覆盖凭证类配置
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Providers.Anthropic.APIKey = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.Providers.Gemini.APIKey = v
	}
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("AIMAESTRO_HTTP_PORT"); v != "" {
		c.Server.HTTPPort = v
	}
	if v := os.Getenv("AIMAESTRO_DB_PATH"); v != "" {
		c.Database.Path = v
	}
}

// NewServerConfig 提供服务器配置
func NewServerConfig(cfg *Config) *ServerConfig {
	return &cfg.Server
}

// NewDatabaseConfig 提供数据库配置
func NewDatabaseConfig(cfg *Config) *DatabaseConfig {
	return &cfg.Database
}
