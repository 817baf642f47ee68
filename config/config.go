package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	FetchTimeoutMs int
	BreakerTrip    int
	BreakerCoolSec int
	MaxPages       int
	City           string

	RejectedCSVPath string
	ImageStoreDir   string
	MetricsAddr     string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "cararth"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "cararth123"),
		PostgresDB:       getEnv("POSTGRES_DB", "cararth_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		FetchTimeoutMs: getEnvInt("FETCH_TIMEOUT_MS", 30000),
		BreakerTrip:    getEnvInt("BREAKER_TRIP", 5),
		BreakerCoolSec: getEnvInt("BREAKER_COOLDOWN_SEC", 60),
		MaxPages:       getEnvInt("MAX_PAGES", 2),
		City:           getEnv("CITY", "hyderabad"),

		RejectedCSVPath: getEnv("REJECTED_CSV_PATH", "./output/rejected_listings.csv"),
		ImageStoreDir:   getEnv("IMAGE_STORE_DIR", "./output/images"),
		MetricsAddr:     getEnv("METRICS_ADDR", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// RateLimit returns the inter-request delay applied between detail pages.
func (c *Config) RateLimit() time.Duration {
	return time.Duration(c.RateLimitMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

// SourceConfig is the static, immutable description of one external
// certified-dealer portal. Loaded once at startup; never mutated.
type SourceConfig struct {
	Name             string
	Brand            string
	BaseURL          string
	DetailURLToken   string
	CityPathTemplate string
	MaxPages         int
	MaxImages        int
	Models           []string
	FeatureKeywords  []string
	BaselineFeatures []string
}

// Validate reports a fatal configuration error for this source. A bad
// source aborts only its own adapter; other sources keep running.
func (s SourceConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source config: missing name")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("source config %s: missing base URL", s.Name)
	}
	if s.DetailURLToken == "" {
		return fmt.Errorf("source config %s: missing detail URL token", s.Name)
	}
	return nil
}

// ListingPageURL builds the paginated search URL for a city.
func (s SourceConfig) ListingPageURL(city string, page int) string {
	path := strings.ReplaceAll(s.CityPathTemplate, "{city}", strings.ToLower(city))
	u := strings.TrimRight(s.BaseURL, "/") + path
	if page > 1 {
		u += fmt.Sprintf("?page=%d", page)
	}
	return u
}

// MatchesDetailURL reports whether a discovered link looks like a
// detail page for this source. Foreign links degrade coverage, never
// correctness, so this is a plain substring predicate.
func (s SourceConfig) MatchesDetailURL(href string) bool {
	return strings.Contains(href, s.DetailURLToken)
}

// Sources returns the certified-dealer portals this deployment ingests.
func Sources() []SourceConfig {
	return []SourceConfig{
		{
			Name:             "Maruti True Value",
			Brand:            "Maruti Suzuki",
			BaseURL:          "https://www.marutisuzukitruevalue.com",
			DetailURLToken:   "/used-car-details/",
			CityPathTemplate: "/used-cars/{city}",
			MaxPages:         2,
			MaxImages:        5,
			Models: []string{
				"Swift", "Baleno", "Dzire", "WagonR", "Alto", "Celerio",
				"Brezza", "Ertiga", "Ciaz", "S-Presso", "Ignis", "Fronx",
			},
			FeatureKeywords: []string{
				"Airbags", "ABS", "Power Steering", "Air Conditioning",
				"Touchscreen", "Alloy Wheels", "Rear Camera", "Keyless Entry",
			},
			BaselineFeatures: []string{"Certified Program", "Quality Check"},
		},
		{
			Name:             "Hyundai Promise",
			Brand:            "Hyundai",
			BaseURL:          "https://www.hyundaipromise.com",
			DetailURLToken:   "/buy-car/",
			CityPathTemplate: "/certified-used-cars/{city}",
			MaxPages:         2,
			MaxImages:        5,
			Models: []string{
				"i10", "i20", "Creta", "Venue", "Verna", "Santro",
				"Aura", "Grand i10", "Exter", "Tucson",
			},
			FeatureKeywords: []string{
				"Airbags", "ABS", "Sunroof", "Touchscreen", "Cruise Control",
				"Alloy Wheels", "Rear Camera", "Climate Control",
			},
			BaselineFeatures: []string{"Certified Program", "Quality Check"},
		},
		{
			Name:             "Mahindra First Choice",
			Brand:            "Mahindra",
			BaseURL:          "https://www.mahindrafirstchoice.com",
			DetailURLToken:   "/used-cars-details/",
			CityPathTemplate: "/used-cars-in-{city}",
			MaxPages:         2,
			MaxImages:        5,
			Models: []string{
				"XUV700", "XUV300", "Scorpio", "Thar", "Bolero",
				"Scorpio-N", "XUV400", "Marazzo", "KUV100",
			},
			FeatureKeywords: []string{
				"Airbags", "ABS", "4WD", "Touchscreen", "Cruise Control",
				"Alloy Wheels", "Hill Hold", "Rear Camera",
			},
			BaselineFeatures: []string{"Certified Program", "Quality Check"},
		},
	}
}
