// Package config contains the definition of the service configuration
// structure and the logic required to load and validate it.
//
// The configuration is loaded once at process start and passed by reference
// to the components that need it. There is deliberately no package-level
// singleton; components receive the values they depend on via constructors.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default values applied when the environment or config file does not
// override them.
const (
	DefaultListenAddress = ":5000"

	// DefaultSessionLifetime is how long a linking session stays usable
	// after creation.
	DefaultSessionLifetime = 10 * time.Minute

	// DefaultRetirementAge is how long a stored token set is served before
	// a read triggers a proactive refresh.
	DefaultRetirementAge = 14 * 24 * time.Hour

	// DefaultTokenCacheTTL bounds how long a verified credential is served
	// from cache without consulting the auth service again.
	DefaultTokenCacheTTL = 5 * time.Minute

	DefaultTokenCacheMaxSize = 20000

	// DefaultRequestTimeout is the fixed per-call timeout applied to every
	// upstream HTTP request.
	DefaultRequestTimeout = 60 * time.Second

	DefaultManagerRole = "ORCIDLINK_MANAGER"
)

// Config represents the configuration of the service.
type Config struct {
	// ListenAddress is the host:port the HTTP server binds to.
	ListenAddress string `mapstructure:"listen_address"`

	// AuthBaseURL is the base URL of the KBase auth service,
	// e.g. https://kbase.us/services/auth.
	AuthBaseURL string `mapstructure:"auth_base_url"`

	// OrcidOAuthBaseURL is the base URL of the ORCID OAuth API,
	// e.g. https://orcid.org/oauth.
	OrcidOAuthBaseURL string `mapstructure:"orcid_oauth_base_url"`

	// OrcidClientID and OrcidClientSecret identify this service to ORCID.
	OrcidClientID     string `mapstructure:"orcid_client_id"`
	OrcidClientSecret string `mapstructure:"orcid_client_secret"`

	// ContinueURL is the redirect URI registered with ORCID; the provider
	// sends the browser back here with the authorization code.
	ContinueURL string `mapstructure:"continue_url"`

	// UIOrigin is the base URL of the KBase UI, used as the target of the
	// browser-facing redirect legs.
	UIOrigin string `mapstructure:"ui_origin"`

	// DBPath is the path of the SQLite database file.
	DBPath string `mapstructure:"db_path"`

	// ManagerRole is the custom role permitting administrative deletion of
	// another user's link.
	ManagerRole string `mapstructure:"manager_role"`

	SessionLifetime   time.Duration `mapstructure:"session_lifetime"`
	RetirementAge     time.Duration `mapstructure:"retirement_age"`
	TokenCacheTTL     time.Duration `mapstructure:"token_cache_ttl"`
	TokenCacheMaxSize int           `mapstructure:"token_cache_max_size"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// Load reads the configuration from the environment (prefix ORCIDLINK_) and,
// if path is non-empty, a yaml config file. Environment variables win.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("orcidlink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Register every key so AutomaticEnv can surface it during Unmarshal.
	for _, key := range []string{
		"auth_base_url", "orcid_oauth_base_url", "orcid_client_id",
		"orcid_client_secret", "continue_url", "ui_origin",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("listen_address", DefaultListenAddress)
	v.SetDefault("manager_role", DefaultManagerRole)
	v.SetDefault("db_path", "orcidlink.db")
	v.SetDefault("session_lifetime", DefaultSessionLifetime)
	v.SetDefault("retirement_age", DefaultRetirementAge)
	v.SetDefault("token_cache_ttl", DefaultTokenCacheTTL)
	v.SetDefault("token_cache_max_size", DefaultTokenCacheMaxSize)
	v.SetDefault("request_timeout", DefaultRequestTimeout)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every required field is populated and that values
// make sense together.
func (c *Config) Validate() error {
	var missing []string
	for field, value := range map[string]string{
		"auth_base_url":        c.AuthBaseURL,
		"orcid_oauth_base_url": c.OrcidOAuthBaseURL,
		"orcid_client_id":      c.OrcidClientID,
		"orcid_client_secret":  c.OrcidClientSecret,
		"continue_url":         c.ContinueURL,
		"ui_origin":            c.UIOrigin,
	} {
		if value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config fields: %s", strings.Join(missing, ", "))
	}

	if c.SessionLifetime <= 0 {
		return fmt.Errorf("session_lifetime must be positive, got %s", c.SessionLifetime)
	}
	if c.RetirementAge <= 0 {
		return fmt.Errorf("retirement_age must be positive, got %s", c.RetirementAge)
	}
	if c.TokenCacheMaxSize <= 0 {
		return fmt.Errorf("token_cache_max_size must be positive, got %d", c.TokenCacheMaxSize)
	}
	return nil
}
