package config

import (
	"context"
	"log/slog"
)

const masked = "****"

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger.
// Secrets are masked; transport and watch details are only logged when they apply.
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	field := func(key string, args ...any) {
		if len(args) == 1 {
			args = []any{"value", args[0]}
		}
		logger.InfoContext(ctx, "Config: "+key, args...)
	}

	field("transport", s.Transport)
	if s.Transport == "sse" {
		field("host", s.Host)
		field("port", s.Port)
		field("auth.public_paths", s.Auth.PublicPaths)
	}

	field("auth.type", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		field("auth.basic.username", s.Auth.Basic.Username)
		field("auth.basic.password", masked)
	case AuthTypeAPIKey:
		field("auth.api_keys", "count", len(s.Auth.APIKeys))
	}

	si := s.SearchIndex
	field("search_index.path", si.Path)
	field("search_index.default_mode", si.DefaultMode)
	field("search_index.max_results", si.MaxResults)
	field("search_index.watch", si.Watch)
	if si.Watch {
		field("search_index.watch_debounce", si.WatchDebounce)
	}
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range keys {
		keys[i] = masked
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", BasicAuthSettingsLogValue(s.Basic)),
		slog.Any("api_keys", keys),
		slog.Any("public_paths", s.PublicPaths),
	)
}

// BasicAuthSettingsLogValue returns a slog.Value for BasicAuthSettings with masked data
func BasicAuthSettingsLogValue(s BasicAuthSettings) slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", masked),
	)
}

// SearchIndexSettingsLogValue returns a slog.Value for SearchIndexSettings
func SearchIndexSettingsLogValue(s SearchIndexSettings) slog.Value {
	return slog.GroupValue(
		slog.String("path", s.Path),
		slog.String("var_name", s.VarName),
		slog.Bool("watch", s.Watch),
		slog.Duration("watch_debounce", s.WatchDebounce),
		slog.Int("max_results", s.MaxResults),
		slog.String("default_mode", s.DefaultMode),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.Any("search_index", SearchIndexSettingsLogValue(s.SearchIndex)),
	)
}
