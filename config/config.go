package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Fetch     FetchConfig
	Registry  RegistryConfig
	Sync      SyncConfig
	Scheduler SchedulerConfig
	Search    SearchConfig
	CachePath string
	LogLevel  string
	Relays    []Relay
}

// Relay is one CORS-relay endpoint. The self-hosted relay comes first
// in relays.yaml; public fallbacks follow.
type Relay struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`        // prefix, target URL is appended (escaped)
	JSONField string `yaml:"json_field"` // set when the relay wraps the body in a JSON envelope
}

type FetchConfig struct {
	MinInterval     time.Duration
	MaxPerSession   int
	CacheTTL        time.Duration
	BrowserFallback bool
}

type RegistryConfig struct {
	BaseURL string
}

type SyncConfig struct {
	FirebaseURL  string // Realtime Database root URL
	FirebaseAuth string
	PostgresURL  string
	PollInterval time.Duration
}

type SchedulerConfig struct {
	Cron     string
	Interval time.Duration
}

type SearchConfig struct {
	Area     string
	DaysOld  int
	MaxPages int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Fetch: FetchConfig{
			MinInterval:     getEnvDuration("FETCH_MIN_INTERVAL", 2*time.Second),
			MaxPerSession:   getEnvInt("FETCH_MAX_PER_SESSION", 10),
			CacheTTL:        getEnvDuration("FETCH_CACHE_TTL", 5*time.Minute),
			BrowserFallback: os.Getenv("FETCH_BROWSER_FALLBACK") == "true",
		},
		Registry: RegistryConfig{
			BaseURL: getEnv("REGISTRY_URL", "https://api.pdok.nl/bzk/locatieserver/search/v3_1"),
		},
		Sync: SyncConfig{
			FirebaseURL:  os.Getenv("FIREBASE_DB_URL"),
			FirebaseAuth: os.Getenv("FIREBASE_DB_AUTH"),
			PostgresURL:  os.Getenv("ROSTER_DB_URL"),
			PollInterval: getEnvDuration("SYNC_POLL_INTERVAL", 5*time.Second),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SEARCH_CRON"),
		},
		Search: SearchConfig{
			Area:     getEnv("SEARCH_AREA", "amsterdam"),
			DaysOld:  getEnvInt("SEARCH_DAYS_OLD", 1),
			MaxPages: getEnvInt("SEARCH_MAX_PAGES", 3),
		},
		CachePath: getEnv("CACHE_PATH", "pagecache.db"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}

	if interval := os.Getenv("SEARCH_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadRelays(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadRelays() error {
	path := getEnv("RELAYS_PATH", "config/relays.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.Relays = DefaultRelays()
			return nil
		}
		return err
	}

	var file struct {
		Relays []Relay `yaml:"relays"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	c.Relays = file.Relays
	if len(c.Relays) == 0 {
		c.Relays = DefaultRelays()
	}
	return nil
}

// DefaultRelays is the built-in rotation used when no relays.yaml is
// present: the self-hosted worker first, then public fallbacks.
func DefaultRelays() []Relay {
	return []Relay{
		{Name: "worker", URL: "https://fundaswipe-proxy.workers.dev/?url="},
		{Name: "allorigins", URL: "https://api.allorigins.win/get?url=", JSONField: "contents"},
		{Name: "corsproxy", URL: "https://corsproxy.io/?url="},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
