package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBConnectWait   time.Duration `mapstructure:"DB_CONNECT_WAIT"`
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`

	RoutingURL     string        `mapstructure:"ROUTING_URL"`
	RoutingProfile string        `mapstructure:"ROUTING_PROFILE"`
	RoutingTimeout time.Duration `mapstructure:"ROUTING_TIMEOUT"`

	NavPollInterval    time.Duration `mapstructure:"NAV_POLL_INTERVAL"`
	NavRerouteInterval time.Duration `mapstructure:"NAV_REROUTE_INTERVAL"`
	NavMoveThresholdM  float64       `mapstructure:"NAV_MOVE_THRESHOLD_M"`
	NavPositionTimeout time.Duration `mapstructure:"NAV_POSITION_TIMEOUT"`
	NavIdleTimeouts    int           `mapstructure:"NAV_IDLE_TIMEOUTS"`

	OutletsTTL  time.Duration `mapstructure:"OUTLETS_TTL"`
	ProductsTTL time.Duration `mapstructure:"PRODUCTS_TTL"`

	StorageEndpoint  string `mapstructure:"STORAGE_ENDPOINT"`
	StorageRegion    string `mapstructure:"STORAGE_REGION"`
	StorageBucket    string `mapstructure:"STORAGE_BUCKET"`
	StorageAccessKey string `mapstructure:"STORAGE_ACCESS_KEY"`
	StorageSecretKey string `mapstructure:"STORAGE_SECRET_KEY"`
	StoragePublicURL string `mapstructure:"STORAGE_PUBLIC_URL"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	// ROUTING_URL= disables routing.
	v.AllowEmptyEnv(true)
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_CONNECT_WAIT", "30s")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 30)

	v.SetDefault("ROUTING_URL", "https://router.project-osrm.org")
	v.SetDefault("ROUTING_PROFILE", "foot")
	v.SetDefault("ROUTING_TIMEOUT", "10s")

	v.SetDefault("NAV_POLL_INTERVAL", "2s")
	v.SetDefault("NAV_REROUTE_INTERVAL", "8s")
	v.SetDefault("NAV_MOVE_THRESHOLD_M", 12)
	v.SetDefault("NAV_POSITION_TIMEOUT", "10s")
	v.SetDefault("NAV_IDLE_TIMEOUTS", 6)

	v.SetDefault("OUTLETS_TTL", "60s")
	v.SetDefault("PRODUCTS_TTL", "5m")

	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_BUCKET", "outlet-images")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_PUBLIC_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
