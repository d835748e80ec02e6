package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultConfigFile = "./config/config.yaml"

type Postgres struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p Postgres) ConnStr() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s", p.Host, p.User, p.Password, p.DBName, p.Port, p.SSLMode)
}

type Nats struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	Stream  string `mapstructure:"stream"`
	Subject string `mapstructure:"subject"`
}

func (n Nats) ConnStr() string {
	return fmt.Sprintf("nats://%s:%s", n.Host, n.Port)
}

// LLM selects the completion and embedding backends. Provider is either
// "openai" or "ollama".
type LLM struct {
	Provider       string  `mapstructure:"provider"`
	APIKey         string  `mapstructure:"apiKey"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embeddingModel"`
	Temperature    float64 `mapstructure:"temperature"`
	OllamaHost     string  `mapstructure:"ollamaHost"`
	OllamaPort     string  `mapstructure:"ollamaPort"`
}

func (l *LLM) OllamaAddress() string {
	return fmt.Sprintf("http://%s:%s", l.OllamaHost, l.OllamaPort)
}

type Maps struct {
	APIKey        string   `mapstructure:"apiKey"`
	BaseURL       string   `mapstructure:"baseURL"`
	RateLimit     int      `mapstructure:"rateLimit"`
	Region        string   `mapstructure:"region"`
	Locality      string   `mapstructure:"locality"`
	City          string   `mapstructure:"city"`
	StationRadius float64  `mapstructure:"stationRadius"`
	StationTypes  []string `mapstructure:"stationTypes"`
}

type Retry struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
	Backoff  string        `mapstructure:"backoff"`
}

type Retrieval struct {
	TopK int `mapstructure:"topK"`
}

type Recommend struct {
	MaxCandidateKm float64 `mapstructure:"maxCandidateKm"`
	MaxMeanKm      float64 `mapstructure:"maxMeanKm"`
	Concurrency    int     `mapstructure:"concurrency"`
}

type Pager struct {
	PageSize int `mapstructure:"pageSize"`
	MaxPages int `mapstructure:"maxPages"`
}

type Chat struct {
	StreamDelay time.Duration `mapstructure:"streamDelay"`
	SessionTTL  time.Duration `mapstructure:"sessionTTL"`
}

type Server struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Log struct {
	Env   string `mapstructure:"env"`
	Level string `mapstructure:"level"`
}

type Config struct {
	Postgres  Postgres  `mapstructure:"postgres"`
	Nats      Nats      `mapstructure:"nats"`
	LLM       LLM       `mapstructure:"llm"`
	Maps      Maps      `mapstructure:"maps"`
	Retry     Retry     `mapstructure:"retry"`
	Retrieval Retrieval `mapstructure:"retrieval"`
	Recommend Recommend `mapstructure:"recommend"`
	Pager     Pager     `mapstructure:"pager"`
	Chat      Chat      `mapstructure:"chat"`
	Server    Server    `mapstructure:"server"`
	Log       Log       `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.database", "restaurants")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.host", "localhost")
	v.SetDefault("nats.port", "4222")
	v.SetDefault("nats.stream", "ASSISTANT")
	v.SetDefault("nats.subject", "assistant.events")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.ollamaHost", "localhost")
	v.SetDefault("llm.ollamaPort", "11434")

	v.SetDefault("maps.apiKey", "")
	v.SetDefault("maps.baseURL", "https://maps.googleapis.com")
	v.SetDefault("maps.rateLimit", 50)
	v.SetDefault("maps.region", "GB")
	v.SetDefault("maps.locality", "london")
	v.SetDefault("maps.city", "London")
	v.SetDefault("maps.stationRadius", 1000.0)
	v.SetDefault("maps.stationTypes", []string{"subway_station", "light_rail_station", "train_station", "transit_station"})

	v.SetDefault("retry.attempts", 5)
	v.SetDefault("retry.delay", time.Second)
	v.SetDefault("retry.backoff", "constant")

	v.SetDefault("retrieval.topK", 15)

	v.SetDefault("recommend.maxCandidateKm", 3.0)
	v.SetDefault("recommend.maxMeanKm", 50.0)
	v.SetDefault("recommend.concurrency", 4)

	v.SetDefault("pager.pageSize", 3)
	v.SetDefault("pager.maxPages", 3)

	v.SetDefault("chat.streamDelay", 40*time.Millisecond)
	v.SetDefault("chat.sessionTTL", 2*time.Hour)

	v.SetDefault("log.env", "development")
	v.SetDefault("log.level", "info")
}

// Load reads the yaml file at path (when it exists) on top of the defaults
// and applies environment overrides, e.g. MAPS_APIKEY for maps.apiKey.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Credentials are commonly exported under their provider names.
	if err := v.BindEnv("llm.apiKey", "LLM_APIKEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("maps.apiKey", "MAPS_APIKEY", "GOOGLE_API_KEY"); err != nil {
		return nil, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func LoadConfig() *Config {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = defaultConfigFile
	}

	config, err := Load(path)
	if err != nil {
		log.Fatal(err)
	}

	return config
}
