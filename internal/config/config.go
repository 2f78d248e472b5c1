package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Panel    PanelConfig
	Bot      BotConfig
	API      APIConfig
	Shop     ShopConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Pass         string
	Charset      string
	MaxIdleConns int
	MaxOpenConns int
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type PanelConfig struct {
	BaseURL            string
	Username           string
	Password           string
	InsecureSkipVerify bool
}

type BotConfig struct {
	Token   string
	AdminID int64
}

type APIConfig struct {
	Key string
}

type ShopConfig struct {
	TrialDays      int
	TrialGB        int64
	PricePerGB     decimal.Decimal
	PurgeAfterDays int
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PANEL_INSECURE_SKIP_VERIFY", false)
	viper.SetDefault("TRIAL_DAYS", 1)
	viper.SetDefault("TRIAL_GB", 1)
	viper.SetDefault("PRICE_PER_GB", "0")
	viper.SetDefault("PURGE_AFTER_DAYS", 7)

	pricePerGB, err := decimal.NewFromString(viper.GetString("PRICE_PER_GB"))
	if err != nil {
		pricePerGB = decimal.Zero
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:         viper.GetString("DB_HOST"),
			Port:         viper.GetString("DB_PORT"),
			Name:         viper.GetString("DB_NAME"),
			User:         viper.GetString("DB_USER"),
			Pass:         viper.GetString("DB_PASS"),
			Charset:      viper.GetString("DB_CHARSET"),
			MaxIdleConns: viper.GetInt("DB_MAX_IDLE_CONNS"),
			MaxOpenConns: viper.GetInt("DB_MAX_OPEN_CONNS"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Panel: PanelConfig{
			BaseURL:            viper.GetString("PANEL_BASE_URL"),
			Username:           viper.GetString("PANEL_USERNAME"),
			Password:           viper.GetString("PANEL_PASSWORD"),
			InsecureSkipVerify: viper.GetBool("PANEL_INSECURE_SKIP_VERIFY"),
		},
		Bot: BotConfig{
			Token:   viper.GetString("BOT_TOKEN"),
			AdminID: viper.GetInt64("BOT_ADMIN_ID"),
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
		Shop: ShopConfig{
			TrialDays:      viper.GetInt("TRIAL_DAYS"),
			TrialGB:        viper.GetInt64("TRIAL_GB"),
			PricePerGB:     pricePerGB,
			PurgeAfterDays: viper.GetInt("PURGE_AFTER_DAYS"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Panel.BaseURL == "" {
		log.Println("WARNING: PANEL_BASE_URL is not set")
	}

	return cfg, nil
}

// LoadDatabaseOnly reads just the database settings, for one-shot schema
// bootstrap runs.
func LoadDatabaseOnly() (*DatabaseConfig, error) {
	_ = godotenv.Load()
	viper.AutomaticEnv()

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 100)

	return &DatabaseConfig{
		Host:         viper.GetString("DB_HOST"),
		Port:         viper.GetString("DB_PORT"),
		Name:         viper.GetString("DB_NAME"),
		User:         viper.GetString("DB_USER"),
		Pass:         viper.GetString("DB_PASS"),
		Charset:      viper.GetString("DB_CHARSET"),
		MaxIdleConns: viper.GetInt("DB_MAX_IDLE_CONNS"),
		MaxOpenConns: viper.GetInt("DB_MAX_OPEN_CONNS"),
	}, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
