// Package config holds process settings: defaults overlaid with MASTR_*
// environment variables, optionally seeded from a .env file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const envPrefix = "MASTR_"

type Settings struct {
	DataDir      string
	FileEncoding string

	CredentialsPath string

	WSDLURL       string
	WSDLCachePath string
	WSDLCacheTTL  time.Duration

	WarehouseKind    string
	WarehouseHost    string
	WarehousePort    int
	WarehouseDB      string
	WarehouseSSLMode string
	// WarehouseDSN overrides the built connection string (sqlite paths,
	// sqlserver URLs, local Postgres).
	WarehouseDSN string
	Schema       string
	BatchSize    int

	MetricsBackend string
	PushgatewayURL string
	MetricsTags    string
}

// Defaults returns the settings used when nothing is overridden.
func Defaults() Settings {
	base := ".mastr"
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".mastr")
	}
	return Settings{
		DataDir:          "data",
		FileEncoding:     "utf-8",
		CredentialsPath:  filepath.Join(base, "config.yaml"),
		WSDLURL:          "https://www.marktstammdatenregister.de/MaStRAPI/wsdl/mastr.wsdl",
		WSDLCachePath:    filepath.Join(base, "wsdl-cache.db"),
		WSDLCacheTTL:     time.Hour,
		WarehouseKind:    "postgres",
		WarehouseHost:    "openenergy-platform.org",
		WarehousePort:    5432,
		WarehouseDB:      "oedb",
		WarehouseSSLMode: "require",
		Schema:           "sandbox",
		BatchSize:        100,
		MetricsBackend:   "none",
		PushgatewayURL:   "http://localhost:9091",
	}
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

// Load overlays MASTR_* variables found through lookup onto Defaults.
func Load(lookup func(string) (string, bool)) (Settings, error) {
	s := Defaults()

	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []string
	integer := func(key string, dst *int) {
		if v, ok := lookup(envPrefix + key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n <= 0 {
				errs = append(errs, envPrefix+key+"="+v)
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil || d < 0 {
				errs = append(errs, envPrefix+key+"="+v)
				return
			}
			*dst = d
		}
	}

	str("DATA_DIR", &s.DataDir)
	str("FILE_ENCODING", &s.FileEncoding)
	str("CREDENTIALS", &s.CredentialsPath)
	str("WSDL_URL", &s.WSDLURL)
	str("WSDL_CACHE", &s.WSDLCachePath)
	duration("WSDL_CACHE_TTL", &s.WSDLCacheTTL)
	str("WAREHOUSE_KIND", &s.WarehouseKind)
	str("WAREHOUSE_HOST", &s.WarehouseHost)
	integer("WAREHOUSE_PORT", &s.WarehousePort)
	str("WAREHOUSE_DB", &s.WarehouseDB)
	str("WAREHOUSE_SSLMODE", &s.WarehouseSSLMode)
	str("WAREHOUSE_DSN", &s.WarehouseDSN)
	str("SCHEMA", &s.Schema)
	integer("BATCH_SIZE", &s.BatchSize)
	str("METRICS_BACKEND", &s.MetricsBackend)
	str("PUSHGATEWAY_URL", &s.PushgatewayURL)
	str("METRICS_TAGS", &s.MetricsTags)

	if len(errs) > 0 {
		return Settings{}, errors.Errorf("invalid settings: %s", strings.Join(errs, ", "))
	}
	return s, nil
}
