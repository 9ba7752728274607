package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Config is the mirror connection configuration pasted in by the teacher
// running the admin device. AccessKey and DatabaseURL are mandatory; the
// rest identify the project but are not required to connect.
type Config struct {
	AccessKey   string `json:"accessKey"`
	DatabaseURL string `json:"databaseUrl"`
	ProjectID   string `json:"projectId,omitempty"`
	AppID       string `json:"appId,omitempty"`
}

// placeholderToken marks an unfilled field in the config template shown
// to the user.
const placeholderToken = "..."

var (
	ErrMissingField = errors.New("configuration is missing a required field")
	ErrPlaceholder  = errors.New("configuration still contains placeholder values")
)

// Validate checks the two mandatory fields and rejects configs whose
// fields still hold the unfilled template token. Validation happens
// before any remote call is attempted.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AccessKey) == "" || strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("%w: accessKey and databaseUrl are required", ErrMissingField)
	}
	for _, v := range []string{c.AccessKey, c.DatabaseURL, c.ProjectID, c.AppID} {
		if strings.Contains(v, placeholderToken) {
			return fmt.Errorf("%w: replace %q with real values", ErrPlaceholder, placeholderToken)
		}
	}
	return nil
}

// ParseConfig decodes and validates a JSON configuration blob.
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse mirror config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
