package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidValue is returned by LoadConfig when a chunking variable cannot be
// parsed.
var ErrInvalidValue = errors.New("invalid configuration value")

type Config struct {
	DatabaseURL      string
	SslCertPath      string
	DBMaxConns       int
	PruneStaleChunks bool

	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
	SentenceSplit  bool

	Extensions []string
	Workers    int

	Extractor          string
	TikaURL            string
	TikaTimeout        time.Duration
	DocconvReadability bool

	EmbedProvider    string
	OllamaHost       string
	EmbedModel       string
	EmbedTimeout     time.Duration
	EmbedMaxAttempts int
	EmbedRetryDelay  time.Duration
	AIAPIKey         string
}

// LoadConfig loads the environment variables and return config. Malformed
// chunking variables are reported together; any other malformed value logs a
// warning and keeps its default.
func LoadConfig() (*Config, error) {

	_ = godotenv.Load()

	var errs []error
	strictInt := func(key string, def int) int {
		n, err := parseEnvInt(key, def)
		errs = append(errs, err)
		return n
	}
	strictBool := func(key string, def bool) bool {
		b, err := parseEnvBool(key, def)
		errs = append(errs, err)
		return b
	}

	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SslCertPath:      getEnv("SSL_CERT_PATH", ""),
		DBMaxConns:       getEnvInt("DB_MAX_CONNS", 4),
		PruneStaleChunks: getEnvBool("PRUNE_STALE_CHUNKS", false),

		ChunkSize:      strictInt("CHUNK_SIZE", 1800),
		ChunkOverlap:   strictInt("CHUNK_OVERLAP", 200),
		MinChunkLength: strictInt("MIN_CHUNK_LENGTH", 100),
		SentenceSplit:  strictBool("SENTENCE_SPLIT", true),

		Extensions: getEnvList("SUPPORTED_EXTENSIONS"),
		Workers:    getEnvInt("WORKERS", 32),

		Extractor:          strings.ToLower(getEnv("EXTRACTOR", "tika")),
		TikaURL:            getEnv("TIKA_URL", "http://localhost:9998/tika"),
		TikaTimeout:        getEnvDuration("TIKA_TIMEOUT", 60*time.Second),
		DocconvReadability: getEnvBool("DOCCONV_READABILITY", false),

		EmbedProvider:    strings.ToLower(getEnv("EMBED_PROVIDER", "ollama")),
		OllamaHost:       getEnv("OLLAMA_HOST", "http://localhost:11434"),
		EmbedModel:       getEnv("EMBED_MODEL", "nomic-embed-text"),
		EmbedTimeout:     getEnvDuration("EMBED_TIMEOUT", 30*time.Second),
		EmbedMaxAttempts: getEnvInt("EMBED_MAX_ATTEMPTS", 1),
		EmbedRetryDelay:  getEnvDuration("EMBED_RETRY_DELAY", time.Second),
		AIAPIKey:         getEnv("GEMINI_API_KEY", ""),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Helper to read environment variables with a default fallback.
// A variable set to the empty string counts as unset.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	n, err := parseEnvInt(key, def)
	if err != nil {
		log.Printf("WARN: %v, using default %d", err, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	b, err := parseEnvBool(key, def)
	if err != nil {
		log.Printf("WARN: %v, using default %t", err, def)
		return def
	}
	return b
}

func parseEnvInt(key string, def int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidValue, key, v)
	}
	return n, nil
}

func parseEnvBool(key string, def bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q is not a bool", ErrInvalidValue, key, v)
	}
	return b, nil
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}

// getEnvList splits a comma separated value; empty entries are dropped.
func getEnvList(key string) []string {
	v := getEnv(key, "")
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
