package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		Path           string `mapstructure:"PATH"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
	} `mapstructure:"MINIO"`
	Stripe struct {
		SecretKey string `mapstructure:"SECRET_KEY"`
	} `mapstructure:"STRIPE"`
	Tracking struct {
		DefaultRedirectURL string        `mapstructure:"DEFAULT_REDIRECT_URL"`
		CookieName         string        `mapstructure:"COOKIE_NAME"`
		CookieDomain       string        `mapstructure:"COOKIE_DOMAIN"`
		CookieMaxAge       time.Duration `mapstructure:"COOKIE_MAX_AGE"`
		LinkCacheTTL       time.Duration `mapstructure:"LINK_CACHE_TTL"`
		EnrichDelay        time.Duration `mapstructure:"ENRICH_DELAY"`
		InternalToken      string        `mapstructure:"INTERNAL_TOKEN"`
	} `mapstructure:"TRACKING"`
	Enrichment struct {
		LookupTimeout       time.Duration `mapstructure:"LOOKUP_TIMEOUT"`
		Resolvers           []string      `mapstructure:"RESOLVERS"`
		ConfidenceThreshold float64       `mapstructure:"CONFIDENCE_THRESHOLD"`
		CacheTTL            time.Duration `mapstructure:"CACHE_TTL"`
	} `mapstructure:"ENRICHMENT"`
	Qualification struct {
		MinDwellSeconds float64 `mapstructure:"MIN_DWELL_SECONDS"`
		Policy          string  `mapstructure:"POLICY"`
	} `mapstructure:"QUALIFICATION"`
	Pricing struct {
		Starter         int64 `mapstructure:"STARTER"`
		Growth          int64 `mapstructure:"GROWTH"`
		Scale           int64 `mapstructure:"SCALE"`
		CreatorEarnings int64 `mapstructure:"CREATOR_EARNINGS"`
	} `mapstructure:"PRICING"`
	Billing struct {
		Threshold        int64         `mapstructure:"THRESHOLD"`
		Currency         string        `mapstructure:"CURRENCY"`
		SweepHour        int           `mapstructure:"SWEEP_HOUR"`
		SweepConcurrency int           `mapstructure:"SWEEP_CONCURRENCY"`
		PendingTimeout   time.Duration `mapstructure:"PENDING_TIMEOUT"`
	} `mapstructure:"BILLING"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func LoadConfig(p Params) *Config {

	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	setDefaults(config)

	if err := config.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			zap.L().Error("failed to read config file", zap.Error(err))
			os.Exit(1)
		}
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	if p.Vault != nil {
		overlaySecrets(p.Vault, &cfg)
	}

	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "naano-tracking")
	v.SetDefault("NODE_ID", 1)
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 10*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("TRACKING.DEFAULT_REDIRECT_URL", "https://naano.xyz/")
	v.SetDefault("TRACKING.COOKIE_NAME", "naano_sid")
	v.SetDefault("TRACKING.COOKIE_MAX_AGE", 30*24*time.Hour)
	v.SetDefault("TRACKING.LINK_CACHE_TTL", 10*time.Minute)
	v.SetDefault("TRACKING.ENRICH_DELAY", 0)
	v.SetDefault("ENRICHMENT.LOOKUP_TIMEOUT", 2*time.Second)
	v.SetDefault("ENRICHMENT.RESOLVERS", []string{"1.1.1.1:53", "8.8.8.8:53"})
	v.SetDefault("ENRICHMENT.CONFIDENCE_THRESHOLD", 0.3)
	v.SetDefault("ENRICHMENT.CACHE_TTL", 24*time.Hour)
	v.SetDefault("QUALIFICATION.MIN_DWELL_SECONDS", 3)
	v.SetDefault("PRICING.STARTER", 300)
	v.SetDefault("PRICING.GROWTH", 250)
	v.SetDefault("PRICING.SCALE", 200)
	v.SetDefault("PRICING.CREATOR_EARNINGS", 120)
	v.SetDefault("BILLING.THRESHOLD", 10000)
	v.SetDefault("BILLING.CURRENCY", "eur")
	v.SetDefault("BILLING.SWEEP_HOUR", 2)
	v.SetDefault("BILLING.SWEEP_CONCURRENCY", 4)
	v.SetDefault("BILLING.PENDING_TIMEOUT", 15*time.Minute)
}

func overlaySecrets(client *vault.Client, cfg *Config) {
	ctx := context.Background()

	zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
	secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
	if err != nil {
		zap.L().Error("failed get secret from vault", zap.Error(err))
		os.Exit(1)
	}
	zap.L().Info("Success Get Secret")

	get := func(key, fallback string) string {
		if val, ok := secret.Data.Data[key].(string); ok && val != "" {
			return val
		}
		return fallback
	}

	cfg.Database.User = get("postgres_user", cfg.Database.User)
	cfg.Database.Password = get("postgres_password", cfg.Database.Password)
	cfg.Redis.Password = get("redis_password", cfg.Redis.Password)
	cfg.Flagsmith.ApiKey = get("flagsmith_api_key", cfg.Flagsmith.ApiKey)
	cfg.Stripe.SecretKey = get("stripe_secret_key", cfg.Stripe.SecretKey)
	cfg.Minio.AccessKey = get("minio_access_key", cfg.Minio.AccessKey)
	cfg.Minio.SecretKey = get("minio_secret_key", cfg.Minio.SecretKey)
	cfg.Tracking.InternalToken = get("internal_token", cfg.Tracking.InternalToken)
}
