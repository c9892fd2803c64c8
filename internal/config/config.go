package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	LedgerMemory      = "memory"
	LedgerTigerBeetle = "tigerbeetle"
)

type Config struct {
	App         AppConfig         `envPrefix:"APP_"`
	DB          DBConfig          `envPrefix:"DB_"`
	TigerBeetle TigerBeetleConfig `envPrefix:"TB_"`
	Kafka       KafkaConfig       `envPrefix:"KAFKA_"`
	WS          WSConfig          `envPrefix:"WS_"`
}

type AppConfig struct {
	Name            string        `env:"NAME" envDefault:"escrow-orderbook"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret       string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL        time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	Ledger          string        `env:"LEDGER" envDefault:"tigerbeetle"`
	Assets          AssetList     `env:"ASSETS" envDefault:"USD:2,BTC:2,ETH:2"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type DBConfig struct {
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	Name     string `env:"NAME" envDefault:"orderbook"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

// DSN renders the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type TigerBeetleConfig struct {
	ClusterID uint64   `env:"CLUSTER_ID" envDefault:"0"`
	Addresses []string `env:"ADDRESSES" envSeparator:"," envDefault:"3000"`
	// FirstLedger is the TigerBeetle ledger number of the first asset; the
	// rest follow in steps of ten.
	FirstLedger uint32 `env:"FIRST_LEDGER" envDefault:"10"`
}

type KafkaConfig struct {
	Enabled bool     `env:"ENABLED" envDefault:"false"`
	Brokers []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic   string   `env:"TOPIC" envDefault:"trades"`
}

type WSConfig struct {
	SendBuffer    int `env:"SEND_BUFFER" envDefault:"256"`
	PublishBuffer int `env:"PUBLISH_BUFFER" envDefault:"4096"`
}

// AssetList parses "USD:2,BTC:8" into assets with their decimals.
type AssetList []model.Asset

func (l *AssetList) UnmarshalText(text []byte) error {
	var out AssetList
	for _, item := range strings.Split(string(text), ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		symbol, decimals, ok := strings.Cut(item, ":")
		if !ok || symbol == "" {
			return fmt.Errorf("asset %q: want SYMBOL:DECIMALS", item)
		}
		d, err := strconv.ParseUint(decimals, 10, 8)
		if err != nil {
			return fmt.Errorf("asset %q: %w", item, err)
		}
		out = append(out, model.Asset{Symbol: strings.ToUpper(symbol), Decimals: uint8(d)})
	}
	*l = out
	return nil
}

func (c *Config) validate() error {
	switch c.App.Ledger {
	case LedgerMemory, LedgerTigerBeetle:
	default:
		return fmt.Errorf("APP_LEDGER must be %q or %q, got %q", LedgerMemory, LedgerTigerBeetle, c.App.Ledger)
	}
	if len(c.App.Assets) == 0 {
		return fmt.Errorf("APP_ASSETS must list at least one asset")
	}
	return nil
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
