package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	// PageURL is the experience document whose declared artifacts are
	// loaded at startup; it also anchors the default side-load policy.
	PageURL string

	// AllowedOrigins are extra origins marker side-loads may fetch from.
	AllowedOrigins []string

	// ArtifactSources are JSON-LD or HTML URLs ingested at startup.
	ArtifactSources []string

	// PostgresDSN, when set, registers a shared Postgres catalog store
	// alongside the in-memory one.
	PostgresDSN string

	Catalog CatalogConfig
}

// CatalogConfig describes an object-storage bucket holding JSON-LD
// documents to ingest at startup.
type CatalogConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:            *port,
		Env:             env,
		PageURL:         strings.TrimSpace(os.Getenv("PAGE_URL")),
		AllowedOrigins:  splitList(os.Getenv("ALLOWED_ORIGINS")),
		ArtifactSources: splitList(os.Getenv("ARTIFACT_SOURCES")),
		PostgresDSN:     strings.TrimSpace(os.Getenv("ARTIFACT_STORE_PG_DSN")),
		Catalog:         loadCatalogConfig(),
	}, nil
}

func loadCatalogConfig() CatalogConfig {
	endpoint := strings.TrimSpace(os.Getenv("CATALOG_S3_ENDPOINT"))
	return CatalogConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("CATALOG_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("CATALOG_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("CATALOG_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("CATALOG_S3_BUCKET")), "perceptkit-artifacts"),
		Prefix:    strings.TrimSpace(os.Getenv("CATALOG_S3_PREFIX")),
		UseSSL:    resolveCatalogUseSSL(),
	}
}

func resolveCatalogUseSSL() bool {
	raw := strings.TrimSpace(os.Getenv("CATALOG_S3_USE_SSL"))
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
