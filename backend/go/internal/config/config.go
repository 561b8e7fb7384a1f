package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// IndexConfig 定义了知识库向量集合的索引配置。
type IndexConfig struct {
	IndexType  string                 `yaml:"indexType"`  // 索引类型 (例如: "AUTOINDEX", "IVF_FLAT", "HNSW")
	MetricType string                 `yaml:"metricType"` // 相似度度量类型 (例如: "COSINE", "L2", "IP")
	Params     map[string]interface{} `yaml:"params"`     // 索引参数 (例如: {"nlist": 128})
}

// MilvusConfig 定义了 Milvus 数据库的连接和索引配置。
// Address 为空时服务退回到进程内的向量存储。
type MilvusConfig struct {
	Address  string      `yaml:"address"`  // Milvus 服务地址
	Username string      `yaml:"username"` // 用户名
	Password string      `yaml:"password"` // 密码
	Index    IndexConfig `yaml:"index"`    // 知识库集合的索引配置
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
	LockTTL  string `yaml:"lockTTL"`  // URL 去重锁的过期时间 (例如: "2m")
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 抓取内容快照所在的存储桶
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topics  []string `yaml:"topics"`  // 启动时需要确保存在的主题列表
}

// DatabaseConfigs 包含所有存储后端的配置。
type DatabaseConfigs struct {
	Milvus MilvusConfig `yaml:"milvus"` // Milvus 数据库配置
	Redis  RedisConfig  `yaml:"redis"`  // Redis 数据库配置
	MySQL  MySQLConfig  `yaml:"mysql"`  // MySQL 数据库配置
	MinIO  MinIOConfig  `yaml:"minio"`  // MinIO 对象存储配置
	Kafka  KafkaConfig  `yaml:"kafka"`  // Kafka 消息队列配置
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// ServerConfig 定义了 HTTP 服务的监听配置。
type ServerConfig struct {
	Address         string `yaml:"address"`         // 监听地址 (例如: ":8080")
	ShutdownTimeout string `yaml:"shutdownTimeout"` // 优雅关闭的最长等待时间
}

// AuthConfig 定义了 JWT 校验所需的配置。令牌由外部用户服务签发。
type AuthConfig struct {
	JwtSecret string `yaml:"jwtSecret"` // JWT 密钥
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// ProviderConfig 描述一个模型提供商的访问方式。
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey"`  // API 密钥
	BaseURL string `yaml:"baseURL"` // 服务地址，为空时使用提供商默认值
	Model   string `yaml:"model"`   // 模型名称
}

// LLMConfig 包含了不同LLM提供商的配置。
type LLMConfig struct {
	Provider string         `yaml:"provider"` // LLM提供商 ("openai", "ollama", "gemini")
	Timeout  string         `yaml:"timeout"`  // 单次请求的超时时间
	OpenAI   ProviderConfig `yaml:"openai"`   // OpenAI 兼容接口配置
	Ollama   ProviderConfig `yaml:"ollama"`   // Ollama 配置
	Gemini   ProviderConfig `yaml:"gemini"`   // Gemini 配置
}

// EmbeddingConfig 包含了不同Embedding提供商的配置。
type EmbeddingConfig struct {
	Provider  string         `yaml:"provider"`  // Embedding提供商 ("openai", "ollama", "gemini")
	Dimension int            `yaml:"dimension"` // 向量维度，为 0 时在建集合前探测
	OpenAI    ProviderConfig `yaml:"openai"`    // OpenAI 配置
	Ollama    ProviderConfig `yaml:"ollama"`    // Ollama 配置
	Gemini    ProviderConfig `yaml:"gemini"`    // Gemini 配置
}

// PipelineConfig 定义了采集流水线的参数。
type PipelineConfig struct {
	ChunkSize       int    `yaml:"chunkSize"`       // 分块大小 (字符数)
	ChunkOverlap    int    `yaml:"chunkOverlap"`    // 分块重叠 (字符数)
	FetchTimeout    string `yaml:"fetchTimeout"`    // 抓取网页的超时时间
	MaxFetchBytes   int64  `yaml:"maxFetchBytes"`   // 抓取内容的最大字节数
	PreviewLength   int    `yaml:"previewLength"`   // content_fetched 事件中预览的字符数
	MaxContentRunes int    `yaml:"maxContentRunes"` // 发送给 LLM 的最大字符数
	OutputLanguage  string `yaml:"outputLanguage"`  // 分类与摘要的输出语言偏好
	QueryTopK       int    `yaml:"queryTopK"`       // 知识库查询返回的片段数量
	IndexWorkers    int    `yaml:"indexWorkers"`    // 后台索引协程池大小
	IndexTimeout    string `yaml:"indexTimeout"`    // 单个后台索引任务的超时时间
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了按客户端划分的令牌桶限流配置。
type RateLimiterConfig struct {
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate"`  // 每秒补充的令牌数
	Burst   int     `yaml:"burst"` // 令牌桶容量
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"` // 连续失败多少次后打开
	SuccessThreshold uint32 `yaml:"successThreshold"` // 半开状态允许通过的请求数
	Timeout          string `yaml:"timeout"`          // 打开状态持续时间，例如: "30s"
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`        // 应用程序信息
	Server     ServerConfig     `yaml:"server"`     // HTTP 服务配置
	Auth       AuthConfig       `yaml:"auth"`       // 认证配置
	LLM        LLMConfig        `yaml:"llm"`        // LLM 配置部分
	Embedding  EmbeddingConfig  `yaml:"embedding"`  // Embedding 配置部分
	Logger     LoggerConfig     `yaml:"logger"`     // 日志记录器配置
	Databases  DatabaseConfigs  `yaml:"databases"`  // 数据库配置
	Pipeline   PipelineConfig   `yaml:"pipeline"`   // 采集流水线配置
	Middleware MiddlewareConfig `yaml:"middleware"` // 中间件配置
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析、补全默认值并校验后的应用程序配置。
//	error: 如果文件读取、解析或校验失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	return Parse(yamlFile)
}

// Parse 解析 YAML 内容，补全默认值并校验。
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults 为未设置的字段填充默认值。
func (c *AppConfig) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "collection-service"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "15s"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Timeout == "" {
		c.LLM.Timeout = "120s"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = c.LLM.Provider
	}
	if c.Databases.Milvus.Index.IndexType == "" {
		c.Databases.Milvus.Index.IndexType = "AUTOINDEX"
	}
	if c.Databases.Milvus.Index.MetricType == "" {
		c.Databases.Milvus.Index.MetricType = "COSINE"
	}
	if c.Databases.Redis.LockTTL == "" {
		c.Databases.Redis.LockTTL = "5m"
	}

	p := &c.Pipeline
	if p.ChunkSize == 0 {
		p.ChunkSize = 350
	}
	if p.ChunkOverlap == 0 {
		p.ChunkOverlap = 100
	}
	if p.FetchTimeout == "" {
		p.FetchTimeout = "10s"
	}
	if p.MaxFetchBytes == 0 {
		p.MaxFetchBytes = 10 << 20
	}
	if p.PreviewLength == 0 {
		p.PreviewLength = 100
	}
	if p.MaxContentRunes == 0 {
		p.MaxContentRunes = 12000
	}
	if p.QueryTopK == 0 {
		p.QueryTopK = 5
	}
	if p.IndexWorkers == 0 {
		p.IndexWorkers = 8
	}
	if p.IndexTimeout == "" {
		p.IndexTimeout = "10m"
	}

	rl := &c.Middleware.RateLimiter
	if rl.Rate == 0 {
		rl.Rate = 5
	}
	if rl.Burst == 0 {
		rl.Burst = 10
	}
	cb := &c.Middleware.CircuitBreaker
	if cb.FailureThreshold == 0 {
		cb.FailureThreshold = 5
	}
	if cb.SuccessThreshold == 0 {
		cb.SuccessThreshold = 1
	}
	if cb.Timeout == "" {
		cb.Timeout = "30s"
	}
}

// Validate 检查配置之间的约束关系。
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Auth.JwtSecret == "" {
		errs = append(errs, errors.New("auth.jwtSecret 不能为空"))
	}
	if c.Pipeline.ChunkOverlap < 0 || c.Pipeline.ChunkSize <= c.Pipeline.ChunkOverlap {
		errs = append(errs, fmt.Errorf("pipeline.chunkSize (%d) 必须大于 pipeline.chunkOverlap (%d)",
			c.Pipeline.ChunkSize, c.Pipeline.ChunkOverlap))
	}
	for name, value := range map[string]string{
		"server.shutdownTimeout":            c.Server.ShutdownTimeout,
		"llm.timeout":                       c.LLM.Timeout,
		"pipeline.fetchTimeout":             c.Pipeline.FetchTimeout,
		"pipeline.indexTimeout":             c.Pipeline.IndexTimeout,
		"databases.redis.lockTTL":           c.Databases.Redis.LockTTL,
		"middleware.circuitBreaker.timeout": c.Middleware.CircuitBreaker.Timeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s 不是合法的时间间隔: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Duration 解析一个已经通过 Validate 校验的时间间隔字符串，失败时返回 fallback。
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
