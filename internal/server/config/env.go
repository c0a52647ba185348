package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/peny/internal/timex"
)

// EnvFileVar points at an alternative .env file.
const EnvFileVar = "PENY_ENV_FILE"

// parseEnv loads the .env file, if any, without overriding variables that
// are already set, and then overlays every known variable onto config.
func parseEnv(config *Config) error {
	envFile := envString(EnvFileVar, ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	config.HTTPAddr = envString("HTTP_ADDR", config.HTTPAddr)
	config.GRPCHealthAddr = envString("GRPC_HEALTH_ADDR", config.GRPCHealthAddr)
	config.DatabaseDSN = envString("DATABASE_URL", config.DatabaseDSN)
	config.LogLevel = envString("LOG_LEVEL", config.LogLevel)
	config.AccessTokenSecret = envString("JWT_SECRET", config.AccessTokenSecret)
	config.RefreshTokenSecret = envString("JWT_REFRESH_SECRET", config.RefreshTokenSecret)
	config.S3Bucket = envString("S3_BUCKET", config.S3Bucket)
	config.S3Region = envString("S3_REGION", config.S3Region)
	config.S3BaseEndpoint = envString("S3_ENDPOINT", config.S3BaseEndpoint)
	config.S3AccessKey = envString("S3_ACCESS_KEY", config.S3AccessKey)
	config.S3SecretKey = envString("S3_SECRET_KEY", config.S3SecretKey)

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(envInt("DB_MAX_RETRIES", &config.DBMaxRetries))
	collect(envInt("BCRYPT_COST", &config.BcryptCost))
	collect(envDuration("JWT_EXPIRES_IN", &config.AccessTokenTTL))
	collect(envDuration("JWT_REFRESH_EXPIRES_IN", &config.RefreshTokenTTL))
	collect(envDuration("DB_RETRY_DELAY", &config.DBRetryDelay))
	collect(envDuration("DB_MAX_DELAY", &config.DBMaxRetryDelay))
	collect(envDuration("DB_RETRY_JITTER", &config.DBRetryJitter))
	collect(envDuration("DB_HEARTBEAT_INTERVAL", &config.DBHeartbeatInterval))
	collect(envDuration("SHUTDOWN_TIMEOUT", &config.ShutdownTimeout))
	collect(envDuration("PHOTO_UPLOAD_TTL", &config.PhotoUploadTTL))

	return errors.Join(errs...)
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := timex.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
