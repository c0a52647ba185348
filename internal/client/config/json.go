package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/peny/internal/flagx"
	"github.com/dmitrijs2005/peny/internal/timex"
)

// JsonConfig is the on-disk shape. Absent keys leave Config untouched.
type JsonConfig struct {
	ServerURL   *string         `json:"server_url"`
	SessionFile *string         `json:"session_file"`
	Timeout     *timex.Duration `json:"timeout"`
}

func parseJson(cfg *Config) error {
	path := flagx.ConfigFilePath()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	if jc.ServerURL != nil {
		cfg.ServerURL = *jc.ServerURL
	}
	if jc.SessionFile != nil {
		cfg.SessionFile = *jc.SessionFile
	}
	if jc.Timeout != nil {
		cfg.Timeout = jc.Timeout.Duration
	}
	return nil
}
