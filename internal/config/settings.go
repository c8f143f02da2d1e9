package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Search mode constants
const (
	SearchModeSubstring = "substring"
	SearchModeFullText  = "fulltext"
)

// DefaultPublicPaths are served without authentication unless overridden
var DefaultPublicPaths = []string{"/health", "/metrics"}

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type        string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic       BasicAuthSettings `mapstructure:"basic"`
	APIKeys     []string          `mapstructure:"api_keys"`
	PublicPaths []string          `mapstructure:"public_paths"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// SearchIndexSettings configuration for the search index payload
type SearchIndexSettings struct {
	Path          string        `mapstructure:"path"`
	VarName       string        `mapstructure:"var_name"`
	Watch         bool          `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
	MaxResults    int           `mapstructure:"max_results"`
	DefaultMode   string        `mapstructure:"default_mode"`
}

// Settings application settings
type Settings struct {
	Transport   string              `mapstructure:"transport"`
	Host        string              `mapstructure:"host"`
	Port        int                 `mapstructure:"port"`
	Auth        AuthSettings        `mapstructure:"auth"`
	SearchIndex SearchIndexSettings `mapstructure:"search_index"`
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)
	v.SetDefault("auth.public_paths", DefaultPublicPaths)

	// Search index defaults
	v.SetDefault("search_index.path", "searchindex.en.js")
	v.SetDefault("search_index.var_name", "relearn_searchindex")
	v.SetDefault("search_index.watch", false)
	v.SetDefault("search_index.watch_debounce", 250*time.Millisecond)
	v.SetDefault("search_index.max_results", 20)
	v.SetDefault("search_index.default_mode", SearchModeSubstring)

	// Environment variables
	v.SetEnvPrefix("SITESEARCH_MCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	_ = v.BindEnv("auth.type", "SITESEARCH_MCP_AUTH_TYPE")
	_ = v.BindEnv("auth.basic.username", "SITESEARCH_MCP_AUTH_BASIC_USERNAME")
	_ = v.BindEnv("auth.basic.password", "SITESEARCH_MCP_AUTH_BASIC_PASSWORD")
	_ = v.BindEnv("auth.api_keys", "SITESEARCH_MCP_AUTH_API_KEYS")
	_ = v.BindEnv("auth.public_paths", "SITESEARCH_MCP_AUTH_PUBLIC_PATHS")

	_ = v.BindEnv("search_index.path", "SITESEARCH_MCP_INDEX_PATH")
	_ = v.BindEnv("search_index.var_name", "SITESEARCH_MCP_INDEX_VAR_NAME")
	_ = v.BindEnv("search_index.watch", "SITESEARCH_MCP_INDEX_WATCH")
	_ = v.BindEnv("search_index.watch_debounce", "SITESEARCH_MCP_INDEX_WATCH_DEBOUNCE")
	_ = v.BindEnv("search_index.max_results", "SITESEARCH_MCP_INDEX_MAX_RESULTS")
	_ = v.BindEnv("search_index.default_mode", "SITESEARCH_MCP_INDEX_DEFAULT_MODE")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		bindFlag(v, flags, "transport", "transport")
		bindFlag(v, flags, "host", "host")
		bindFlag(v, flags, "port", "port")
		bindFlag(v, flags, "auth.type", "auth-type")
		bindFlag(v, flags, "auth.basic.username", "auth-basic-username")
		bindFlag(v, flags, "auth.basic.password", "auth-basic-password")
		bindFlag(v, flags, "auth.api_keys", "auth-api-keys")
		bindFlag(v, flags, "auth.public_paths", "auth-public-paths")

		bindFlag(v, flags, "search_index.path", "index")
		bindFlag(v, flags, "search_index.var_name", "index-var")
		bindFlag(v, flags, "search_index.watch", "watch")
		bindFlag(v, flags, "search_index.watch_debounce", "watch-debounce")
		bindFlag(v, flags, "search_index.max_results", "max-results")
		bindFlag(v, flags, "search_index.default_mode", "default-mode")
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	settings.Auth.APIKeys = splitEnvList(settings.Auth.APIKeys, "SITESEARCH_MCP_AUTH_API_KEYS")
	settings.Auth.PublicPaths = splitEnvList(settings.Auth.PublicPaths, "SITESEARCH_MCP_AUTH_PUBLIC_PATHS")

	settings.SearchIndex.Path = expandHomeDir(strings.TrimSpace(settings.SearchIndex.Path))

	return &settings, nil
}

// bindFlag binds a flag to a key, skipping flags the FlagSet does not define
func bindFlag(v *viper.Viper, flags *pflag.FlagSet, key, name string) {
	if f := flags.Lookup(name); f != nil {
		_ = v.BindPFlag(key, f)
	}
}

// splitEnvList handles comma-separated lists provided through an env var,
// then trims and drops empty entries
func splitEnvList(values []string, envName string) []string {
	if raw := os.Getenv(envName); raw != "" {
		if len(values) == 0 || (len(values) == 1 && strings.Contains(values[0], ",")) {
			values = strings.Split(raw, ",")
		}
	}

	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
	return filterEmptyStrings(values)
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting configurations.
// Returns an error if the settings contain mutually exclusive or incomplete auth config.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	hasBasicCreds := s.Auth.Basic.Username != "" || s.Auth.Basic.Password != ""
	hasAPIKeys := len(s.Auth.APIKeys) > 0

	switch s.Auth.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if s.Auth.Basic.Username == "" || s.Auth.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + s.Auth.Type)
	}

	for _, p := range s.Auth.PublicPaths {
		if !strings.HasPrefix(p, "/") {
			return errors.New("auth-public-paths entries must start with '/', got: " + p)
		}
	}

	return validateSearchIndexSettings(&s.SearchIndex)
}

// validateSearchIndexSettings validates the search index configuration
func validateSearchIndexSettings(si *SearchIndexSettings) error {
	if si.Path == "" {
		return errors.New("index path cannot be empty")
	}

	if si.MaxResults <= 0 {
		return errors.New("max-results must be positive")
	}

	if si.Watch && si.WatchDebounce < 0 {
		return errors.New("watch-debounce cannot be negative")
	}

	switch si.DefaultMode {
	case SearchModeSubstring, SearchModeFullText:
		// valid
	default:
		return errors.New("default-mode must be 'substring' or 'fulltext', got: " + si.DefaultMode)
	}

	return nil
}
