// Package config reads billsync settings from the environment and exposes them
// as typed values. A .env file in the working directory is loaded first when
// present.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dharsanguruparan/billsync/internal/batch"
)

// Oracle providers.
const (
	ProviderVertex = "vertex"
	ProviderOllama = "ollama"
)

// Config represents runtime configuration shared by the API, worker and CLI.
type Config struct {
	Address       string
	MaxFileSize   int64
	SigningSecret []byte

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3UseSSL        bool
	S3Region        string
	StatementBucket string

	OracleProvider  string
	VertexProjectID string
	VertexRegion    string
	VertexModel     string
	OllamaURL       string
	OllamaModel     string

	ExtractConcurrency  int
	OracleTimeout       time.Duration
	BatchTimeout        time.Duration
	AttachmentPageLimit int

	ScanQuery       string
	ScanMaxMessages int
	ScanSchedule    string
	ScanUsers       []string

	GmailCredentialsFile string
	GmailTokenDir        string

	MatchExclusiveBills bool

	LogLevel  string
	LogFormat string
}

const (
	defaultAddress         = ":8080"
	defaultMaxFileSize     = 25 << 20 // 25 MiB
	defaultRedisAddr       = "localhost:6379"
	defaultS3Endpoint      = "localhost:9000"
	defaultS3Region        = "us-east-1"
	defaultStatementBucket = "statements"
	defaultVertexRegion    = "us-central1"
	defaultVertexModel     = "gemini-1.5-flash"
	defaultOllamaURL       = "http://localhost:11434"
	defaultOllamaModel     = "qwen2.5:3b"
	defaultConcurrency     = batch.DefaultConcurrency
	defaultOracleTimeout   = 60 * time.Second
	defaultBatchTimeout    = 10 * time.Minute
	defaultPageLimit       = 3
	defaultScanQuery       = "newer_than:30d (bill OR invoice OR statement OR \"amount due\")"
	defaultScanMaxMessages = 50
	defaultScanSchedule    = "0 0 6 * * *"
	defaultTokenDir        = "tokens"
)

// Load reads configuration from environment variables falling back to defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{
		Address:       readEnv("BILLSYNC_ADDRESS", defaultAddress),
		MaxFileSize:   parseInt64("BILLSYNC_MAX_FILE_BYTES", defaultMaxFileSize),
		SigningSecret: parseSecret("BILLSYNC_SIGNING_SECRET"),

		DatabaseURL:   readEnv("DATABASE_URL", ""),
		RedisAddr:     readEnv("REDIS_ADDR", defaultRedisAddr),
		RedisPassword: readEnv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt("REDIS_DB", 0),

		S3Endpoint:      readEnv("S3_ENDPOINT", defaultS3Endpoint),
		S3AccessKey:     readEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     readEnv("S3_SECRET_KEY", ""),
		S3UseSSL:        parseBool("S3_USE_SSL", false),
		S3Region:        readEnv("S3_REGION", defaultS3Region),
		StatementBucket: readEnv("STATEMENT_BUCKET", defaultStatementBucket),

		OracleProvider:  strings.ToLower(readEnv("ORACLE_PROVIDER", ProviderVertex)),
		VertexProjectID: readEnv("VERTEX_PROJECT_ID", ""),
		VertexRegion:    readEnv("VERTEX_REGION", defaultVertexRegion),
		VertexModel:     readEnv("VERTEX_MODEL", defaultVertexModel),
		OllamaURL:       readEnv("OLLAMA_URL", defaultOllamaURL),
		OllamaModel:     readEnv("OLLAMA_MODEL", defaultOllamaModel),

		ExtractConcurrency:  parseInt("EXTRACT_CONCURRENCY", defaultConcurrency),
		OracleTimeout:       parseDuration("ORACLE_TIMEOUT", defaultOracleTimeout),
		BatchTimeout:        parseDuration("BATCH_TIMEOUT", defaultBatchTimeout),
		AttachmentPageLimit: parseInt("ATTACHMENT_PAGE_LIMIT", defaultPageLimit),

		ScanQuery:       readEnv("SCAN_QUERY", defaultScanQuery),
		ScanMaxMessages: parseInt("SCAN_MAX_MESSAGES", defaultScanMaxMessages),
		ScanSchedule:    readEnv("SCAN_SCHEDULE", defaultScanSchedule),
		ScanUsers:       parseList("SCAN_USERS", ""),

		GmailCredentialsFile: readEnv("GMAIL_CREDENTIALS_FILE", ""),
		GmailTokenDir:        readEnv("GMAIL_TOKEN_DIR", defaultTokenDir),

		MatchExclusiveBills: parseBool("MATCH_EXCLUSIVE_BILLS", false),

		LogLevel:  readEnv("LOG_LEVEL", "info"),
		LogFormat: readEnv("LOG_FORMAT", "text"),
	}
	if cfg.SigningSecret == nil {
		// A generated secret only survives until restart; pending consent
		// links then stop validating.
		cfg.SigningSecret = randomSecret()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.AttachmentPageLimit <= 0 {
		cfg.AttachmentPageLimit = defaultPageLimit
	}
	if cfg.ScanMaxMessages <= 0 {
		cfg.ScanMaxMessages = defaultScanMaxMessages
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.ExtractConcurrency < 1 {
		return fmt.Errorf("EXTRACT_CONCURRENCY must be at least 1, got %d", c.ExtractConcurrency)
	}
	switch c.OracleProvider {
	case ProviderVertex, ProviderOllama:
	default:
		return fmt.Errorf("unknown ORACLE_PROVIDER %q", c.OracleProvider)
	}
	if c.OracleTimeout < 0 || c.BatchTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseList(key, def string) []string {
	val := readEnv(key, def)
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	// time.ParseDuration understands inputs like "5m" or "30s".
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read random secret: %v", err))
	}
	return buf
}
