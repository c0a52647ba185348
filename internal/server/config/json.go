package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/peny/internal/flagx"
	"github.com/dmitrijs2005/peny/internal/timex"
)

// JsonConfig is the on-disk shape of the server config file. Pointer fields
// distinguish "absent" from "zero", so a partial file only overrides what it
// names. Durations use timex.Duration ("15m", "7d", or nanoseconds).
type JsonConfig struct {
	HTTPAddr       *string `json:"http_addr"`
	GRPCHealthAddr *string `json:"grpc_health_addr"`
	DatabaseDSN    *string `json:"database_dsn"`
	LogLevel       *string `json:"log_level"`

	AccessTokenSecret  *string         `json:"access_token_secret"`
	AccessTokenTTL     *timex.Duration `json:"access_token_ttl"`
	RefreshTokenSecret *string         `json:"refresh_token_secret"`
	RefreshTokenTTL    *timex.Duration `json:"refresh_token_ttl"`
	BcryptCost         *int            `json:"bcrypt_cost"`

	DBMaxRetries        *int            `json:"db_max_retries"`
	DBRetryDelay        *timex.Duration `json:"db_retry_delay"`
	DBMaxRetryDelay     *timex.Duration `json:"db_max_retry_delay"`
	DBRetryJitter       *timex.Duration `json:"db_retry_jitter"`
	DBHeartbeatInterval *timex.Duration `json:"db_heartbeat_interval"`

	ShutdownTimeout *timex.Duration `json:"shutdown_timeout"`

	S3Bucket       *string         `json:"s3_bucket"`
	S3Region       *string         `json:"s3_region"`
	S3BaseEndpoint *string         `json:"s3_base_endpoint"`
	S3AccessKey    *string         `json:"s3_access_key"`
	S3SecretKey    *string         `json:"s3_secret_key"`
	PhotoUploadTTL *timex.Duration `json:"photo_upload_ttl"`
}

// parseJson overlays values from the file named by -c/-config (or the
// CONFIG variable). No path means nothing to load.
func parseJson(config *Config) error {
	path := flagx.ConfigFilePath()
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCHealthAddr, c.GRPCHealthAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)

	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.DBMaxRetries != nil {
		config.DBMaxRetries = *c.DBMaxRetries
	}

	setDuration(&config.AccessTokenTTL, c.AccessTokenTTL)
	setDuration(&config.RefreshTokenTTL, c.RefreshTokenTTL)
	setDuration(&config.DBRetryDelay, c.DBRetryDelay)
	setDuration(&config.DBMaxRetryDelay, c.DBMaxRetryDelay)
	setDuration(&config.DBRetryJitter, c.DBRetryJitter)
	setDuration(&config.DBHeartbeatInterval, c.DBHeartbeatInterval)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)
	setDuration(&config.PhotoUploadTTL, c.PhotoUploadTTL)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
