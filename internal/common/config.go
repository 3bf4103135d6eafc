package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	TemplatePath string `validate:"required"`
	OCR          OCRConfig
	Store        StoreConfig
	Plan         PlanConfig
	Report       ReportConfig
	Watch        WatchConfig
}

// OCRConfig holds extraction-related configuration
type OCRConfig struct {
	Engine           string `validate:"oneof=tesseract gosseract azure"`
	Tesseract        string
	Pdftoppm         string
	Lang             string `validate:"required"`
	TessdataDir      string
	PSM              int           `validate:"gte=0,lte=13"`
	OEM              int           `validate:"gte=0,lte=3"`
	DPI              int           `validate:"gte=72,lte=1200"`
	Workers          int           `validate:"gte=1,lte=64"`
	CallTimeout      time.Duration `validate:"gt=0"`
	Enhance          bool
	TextLayer        bool
	SnippetDir       string
	ArtifactCacheDir string `validate:"required"`
	AzureEndpoint    string `validate:"required_if=Engine azure"`
	AzureKey         string `validate:"required_if=Engine azure"`
}

// StoreConfig holds run-store configuration. An empty DSN disables persistence.
type StoreConfig struct {
	DSN             string
	MaxConns        int32 `validate:"gte=1"`
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// PlanConfig holds reconciliation policy
type PlanConfig struct {
	DropUnmatched     bool
	InsertOrder       string `validate:"oneof=encounter invoice_number"`
	AllowEmptyPackage bool
}

// ReportConfig holds report output paths; empty paths skip the report.
type ReportConfig struct {
	XLSXPath string
	JSONPath string
}

// WatchConfig holds candidate-directory watch settings
type WatchConfig struct {
	Debounce time.Duration `validate:"gt=0"`
}

// LoadEnvFile preloads variables from a .env file. A missing default file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		TemplatePath: getEnv("TEMPLATE_PATH", "template.toml"),
		OCR: OCRConfig{
			Engine:           strings.ToLower(getEnv("OCR_ENGINE", "tesseract")),
			Tesseract:        getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:         getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Lang:             getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			PSM:              getEnvAsInt("TESSERACT_PSM", 7),
			OEM:              getEnvAsInt("TESSERACT_OEM", 0),
			DPI:              getEnvAsInt("OCR_DPI", 300),
			Workers:          getEnvAsInt("OCR_WORKERS", 4),
			CallTimeout:      getEnvAsDuration("OCR_CALL_TIMEOUT", 20*time.Second),
			Enhance:          getEnvAsBool("OCR_ENHANCE", true),
			TextLayer:        getEnvAsBool("OCR_TEXT_LAYER", true),
			SnippetDir:       getEnv("OCR_SNIPPET_DIR", ""),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
			AzureEndpoint:    getEnv("AZURE_VISION_ENDPOINT", ""),
			AzureKey:         getEnv("AZURE_VISION_KEY", ""),
		},
		Store: StoreConfig{
			DSN:             getEnv("STORE_DSN", ""),
			MaxConns:        getEnvAsInt32("STORE_MAX_CONNS", 4),
			MaxConnLifetime: getEnvAsDuration("STORE_MAX_CONN_LIFETIME", 30*time.Minute),
			DialTimeout:     getEnvAsDuration("STORE_DIAL_TIMEOUT", 3*time.Second),
		},
		Plan: PlanConfig{
			DropUnmatched:     getEnvAsBool("PLAN_DROP_UNMATCHED", false),
			InsertOrder:       getEnv("PLAN_INSERT_ORDER", "encounter"),
			AllowEmptyPackage: getEnvAsBool("PLAN_ALLOW_EMPTY_PACKAGE", false),
		},
		Report: ReportConfig{
			XLSXPath: getEnv("REPORT_XLSX", ""),
			JSONPath: getEnv("REPORT_JSON", ""),
		},
		Watch: WatchConfig{
			Debounce: getEnvAsDuration("WATCH_DEBOUNCE", 2*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return NewAppError("CONFIG_ERROR", strings.Join(msgs, "; "), ErrInvalidInput)
		}
		return NewAppError("CONFIG_ERROR", "invalid configuration", err)
	}
	return nil
}
