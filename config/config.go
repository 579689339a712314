package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	once   sync.Once
	global *Config
)

// RedisConfig Redis 连接配置（队列和结果存储共用）
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// StorageConfig 入库存储配置
type StorageConfig struct {
	Type       string `yaml:"type"` // "minio" | "s3"
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	Region     string `yaml:"region"`
	BucketName string `yaml:"bucketName"`
	UseSSL     bool   `yaml:"useSSL"`
	// Retention 入库对象保留期，到期由 worker 的清理循环删除
	Retention time.Duration `yaml:"retention"`
}

// OCRConfig OCR 引擎配置
type OCRConfig struct {
	Engine string `yaml:"engine"` // "tesseract" | "textract"
	// Tesseract 语言包：主语言 + 英文组合包
	TargetLanguage string `yaml:"targetLanguage"`
	// Textract 凭证
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	// MinTokens OCR 产出低于该词数视为失败
	MinTokens int `yaml:"minTokens"`
}

// PipelineConfig 管道阈值。源代码中原为硬编码常量，这里作为带默认值的配置，
// 便于独立测试和按样本数据重新标定。
type PipelineConfig struct {
	ProcessThreshold float64 `yaml:"processThreshold"` // score >= -> process
	RejectThreshold  float64 `yaml:"rejectThreshold"`  // score <  -> reject
	ReviewThreshold  float64 `yaml:"reviewThreshold"`  // confidence <  -> review

	MaxFileBytes int64 `yaml:"maxFileBytes"`

	// Laplacian 方差分档：>= Acceptable 清晰，>= Poor 可增强，否则模糊
	LaplacianAcceptable float64 `yaml:"laplacianAcceptable"`
	LaplacianPoor       float64 `yaml:"laplacianPoor"`
	MinResolution       int     `yaml:"minResolution"`
	MinContrast         float64 `yaml:"minContrast"`
	MinTextDensity      float64 `yaml:"minTextDensity"`

	// MinTextRunes 提取文本低于该长度视为失败
	MinTextRunes int `yaml:"minTextRunes"`

	ExtractTimeout time.Duration `yaml:"extractTimeout"` // 单个提取器超时
	JobTimeout     time.Duration `yaml:"jobTimeout"`     // 五个阶段总预算
	MaxRetries     int           `yaml:"maxRetries"`
}

// WorkerConfig worker 池配置
type WorkerConfig struct {
	Concurrency int            `yaml:"concurrency"`
	Queues      map[string]int `yaml:"queues"`
}

// ServerConfig 接入服务配置
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config 顶层配置
type Config struct {
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	OCR      OCRConfig      `yaml:"ocr"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Worker   WorkerConfig   `yaml:"worker"`
	Server   ServerConfig   `yaml:"server"`
}

// Get 获取全局配置。配置缺失或非法属于程序错误，直接终止进程，
// 不能让文档被错误归类为拒绝。
func Get() *Config {
	once.Do(func() {
		cfg, err := Load(os.Getenv("TRIAGE_CONFIG_FILE"))
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		global = cfg
	})
	return global
}

// Load 加载配置：默认值 <- 可选 YAML 文件 <- 环境变量
func Load(yamlPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, falling back to environment variables")
	}

	cfg := Defaults()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults 返回带文档化默认值的配置
func Defaults() *Config {
	return &Config{
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Storage: StorageConfig{
			Type:       "minio",
			BucketName: "intake",
			Retention:  7 * 24 * time.Hour,
		},
		OCR: OCRConfig{
			Engine:         "tesseract",
			TargetLanguage: "mon",
			MinTokens:      3,
		},
		Pipeline: PipelineConfig{
			ProcessThreshold:    0.7,
			RejectThreshold:     0.3,
			ReviewThreshold:     0.7,
			MaxFileBytes:        50 * 1024 * 1024,
			LaplacianAcceptable: 500,
			LaplacianPoor:       100,
			MinResolution:       300,
			MinContrast:         0.15,
			MinTextDensity:      0.5,
			MinTextRunes:        20,
			ExtractTimeout:      2 * time.Minute,
			JobTimeout:          10 * time.Minute,
			MaxRetries:          3,
		},
		Worker: WorkerConfig{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

func (c *Config) applyEnv() {
	envString(&c.Redis.Addr, "REDIS_ADDR")
	envInt(&c.Redis.DB, "REDIS_DB")

	envString(&c.Storage.Type, "STORAGE_TYPE")
	envString(&c.Storage.Endpoint, "STORAGE_ENDPOINT")
	envString(&c.Storage.AccessKey, "STORAGE_ACCESS_KEY")
	envString(&c.Storage.SecretKey, "STORAGE_SECRET_KEY")
	envString(&c.Storage.Region, "STORAGE_REGION")
	envString(&c.Storage.BucketName, "STORAGE_BUCKET")
	envBool(&c.Storage.UseSSL, "STORAGE_USE_SSL")

	envString(&c.OCR.Engine, "OCR_ENGINE")
	envString(&c.OCR.TargetLanguage, "OCR_TARGET_LANGUAGE")
	envString(&c.OCR.Region, "TEXTRACT_REGION")
	envString(&c.OCR.AccessKey, "TEXTRACT_ACCESS_KEY")
	envString(&c.OCR.SecretKey, "TEXTRACT_SECRET_KEY")

	envFloat(&c.Pipeline.ProcessThreshold, "PIPELINE_PROCESS_THRESHOLD")
	envFloat(&c.Pipeline.RejectThreshold, "PIPELINE_REJECT_THRESHOLD")
	envFloat(&c.Pipeline.ReviewThreshold, "PIPELINE_REVIEW_THRESHOLD")
	envInt64(&c.Pipeline.MaxFileBytes, "PIPELINE_MAX_FILE_BYTES")
	envInt(&c.Worker.Concurrency, "WORKER_CONCURRENCY")
	envString(&c.Server.Addr, "SERVER_ADDR")
}

// Validate 校验阈值的合法性
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.RejectThreshold < 0 || p.ProcessThreshold > 1 || p.RejectThreshold >= p.ProcessThreshold {
		return fmt.Errorf("invalid quality thresholds: reject=%.2f process=%.2f", p.RejectThreshold, p.ProcessThreshold)
	}
	if p.ReviewThreshold < 0 || p.ReviewThreshold > 1 {
		return fmt.Errorf("invalid review threshold: %.2f", p.ReviewThreshold)
	}
	if p.LaplacianPoor >= p.LaplacianAcceptable {
		return fmt.Errorf("invalid laplacian tiers: poor=%.0f acceptable=%.0f", p.LaplacianPoor, p.LaplacianAcceptable)
	}
	if p.MaxFileBytes <= 0 {
		return fmt.Errorf("max file bytes must be positive")
	}
	switch c.OCR.Engine {
	case "tesseract", "textract":
	default:
		return fmt.Errorf("unknown OCR engine: %q", c.OCR.Engine)
	}
	switch c.Storage.Type {
	case "minio", "s3":
	default:
		return fmt.Errorf("unknown storage type: %q", c.Storage.Type)
	}
	if c.Storage.Retention <= 0 {
		return fmt.Errorf("storage retention must be positive")
	}
	return nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
