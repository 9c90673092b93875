package buildCFG

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"github.com/Match-Score-project/Match-Score/internal/identity"
	"github.com/Match-Score-project/Match-Score/internal/mailer"
	"github.com/Match-Score-project/Match-Score/internal/media"
	"github.com/Match-Score-project/Match-Score/internal/rabbit"
	"github.com/Match-Score-project/Match-Score/internal/service"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreDynamo   = "dynamodb"

	MediaInline = "inline"
	MediaS3     = "s3"
)

type ServerConfig struct {
	Port            string
	Mode            string
	ShutdownTimeout time.Duration
	CookieSecure    bool
	// Location decides what "today" means for match dates.
	Location *time.Location
}

type StoreConfig struct {
	Driver        string
	MigrationsDir string
	SQLitePath    string
	DynamoRegion  string
	DynamoURL     string
	DynamoTable   string

	// ResetOnShutdown rolls the SQL schema back when the server stops.
	ResetOnShutdown bool
}

type MediaConfig struct {
	Driver   string
	MaxBytes int
	S3       media.S3Config
}

type RegistrationConfig struct {
	Guard service.GuardMode
	// EmailDelay holds notification e-mails back so ones read in the meantime are skipped.
	EmailDelay time.Duration
}

func stringOr(cfg *config.Config, key, def string) string {
	if v := cfg.GetString(key); v != "" {
		return v
	}
	return def
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) ServerConfig {
	sc := ServerConfig{
		Port:            stringOr(cfg, "server.port", "8080"),
		Mode:            stringOr(cfg, "server.mode", "release"),
		ShutdownTimeout: cfg.GetDuration("server.shutdown_timeout"),
		CookieSecure:    cfg.GetBool("server.cookie_secure"),
		Location:        time.UTC,
	}
	if sc.ShutdownTimeout <= 0 {
		sc.ShutdownTimeout = 10 * time.Second
	}
	if tz := cfg.GetString("server.timezone"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			log.Warn().Err(err).Str("timezone", tz).Msg("unknown timezone, using UTC")
		} else {
			sc.Location = loc
		}
	}
	return sc
}

func BuildStoreConfig(cfg *config.Config, log *zerolog.Logger) (StoreConfig, error) {
	sc := StoreConfig{
		Driver:       stringOr(cfg, "store.driver", StoreMemory),
		SQLitePath:   stringOr(cfg, "store.sqlite.path", "matchscore.db"),
		DynamoRegion: stringOr(cfg, "store.dynamodb.region", "us-east-1"),
		DynamoURL:    cfg.GetString("store.dynamodb.endpoint"),
		DynamoTable:  stringOr(cfg, "store.dynamodb.table", "matchscore"),

		ResetOnShutdown: cfg.GetBool("store.reset_on_shutdown"),
	}

	switch sc.Driver {
	case StoreMemory, StoreDynamo:
	case StorePostgres:
		sc.MigrationsDir = stringOr(cfg, "store.migrations", "migrations/postgres")
	case StoreSQLite:
		sc.MigrationsDir = stringOr(cfg, "store.migrations", "migrations/sqlite")
	default:
		return StoreConfig{}, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
	if sc.ResetOnShutdown && sc.MigrationsDir == "" {
		log.Warn().Str("driver", sc.Driver).Msg("store.reset_on_shutdown only applies to SQL stores")
	}
	log.Info().Str("driver", sc.Driver).Msg("store configured")
	return sc, nil
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := cfg.GetString("store.postgres.master_dsn")
	if masterDSN == "" {
		return "", nil, nil, fmt.Errorf("store.postgres.master_dsn is required")
	}
	slaveDSNs := cfg.GetStringSlice("store.postgres.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("store.postgres.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("store.postgres.max_idle_conns"),
		ConnMaxLifetime: cfg.GetDuration("store.postgres.conn_max_lifetime"),
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}
	log.Debug().Int("slaves", len(slaveDSNs)).Msg("postgres pool configured")
	return masterDSN, slaveDSNs, opts, nil
}

// BuildRabbitConfig returns ok=false when no broker URL is set; notifications
// are then delivered in process.
func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (rabbit.Config, bool) {
	url := cfg.GetString("rabbitmq.url")
	if url == "" {
		log.Info().Msg("rabbitmq.url not set, delivering notifications in process")
		return rabbit.Config{}, false
	}
	return rabbit.Config{
		URL:      url,
		Exchange: stringOr(cfg, "rabbitmq.exchange", "matchscore.notifications"),
		Queue:    stringOr(cfg, "rabbitmq.queue", "matchscore.notifications.email"),
		Delayed:  cfg.GetBool("rabbitmq.delayed"),
		Prefetch: cfg.GetInt("rabbitmq.prefetch"),
	}, true
}

func BuildMailerConfig(cfg *config.Config) mailer.Config {
	return mailer.Config{
		Host:     cfg.GetString("smtp.host"),
		Port:     cfg.GetInt("smtp.port"),
		From:     cfg.GetString("smtp.from"),
		Password: cfg.GetString("smtp.password"),
	}
}

func BuildAuthConfig(cfg *config.Config, server ServerConfig) (identity.Config, error) {
	secret := cfg.GetString("auth.secret")
	if secret == "" {
		return identity.Config{}, fmt.Errorf("auth.secret is required")
	}
	return identity.Config{
		Secret:       secret,
		SessionTTL:   cfg.GetDuration("auth.session_ttl"),
		ResetTTL:     cfg.GetDuration("auth.reset_ttl"),
		CookieSecure: server.CookieSecure,
		ResetURL:     stringOr(cfg, "auth.reset_url", "http://localhost:"+server.Port+"/redefinir.html"),
		BcryptCost:   cfg.GetInt("auth.bcrypt_cost"),
	}, nil
}

func BuildMediaConfig(cfg *config.Config) (MediaConfig, error) {
	mc := MediaConfig{
		Driver:   stringOr(cfg, "media.driver", MediaInline),
		MaxBytes: cfg.GetInt("media.max_bytes"),
	}
	if mc.MaxBytes <= 0 {
		mc.MaxBytes = media.DefaultMaxBytes
	}
	switch mc.Driver {
	case MediaInline:
	case MediaS3:
		mc.S3 = media.S3Config{
			Region:     stringOr(cfg, "media.s3.region", "us-east-1"),
			Bucket:     cfg.GetString("media.s3.bucket"),
			Endpoint:   cfg.GetString("media.s3.endpoint"),
			PublicBase: cfg.GetString("media.s3.public_base"),
			Prefix:     cfg.GetString("media.s3.prefix"),
			MaxBytes:   mc.MaxBytes,
		}
		if mc.S3.Bucket == "" {
			return MediaConfig{}, fmt.Errorf("media.s3.bucket is required for the s3 driver")
		}
	default:
		return MediaConfig{}, fmt.Errorf("unknown media driver %q", mc.Driver)
	}
	return mc, nil
}

func BuildRegistrationConfig(cfg *config.Config) (RegistrationConfig, error) {
	guard, err := service.ParseGuard(cfg.GetString("registration.guard"))
	if err != nil {
		return RegistrationConfig{}, err
	}
	rc := RegistrationConfig{Guard: guard, EmailDelay: cfg.GetDuration("registration.email_delay")}
	if rc.EmailDelay <= 0 {
		rc.EmailDelay = 5 * time.Minute
	}
	return rc, nil
}
