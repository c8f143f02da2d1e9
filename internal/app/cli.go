package app

import (
	"time"

	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")
	flags.StringSlice("auth-public-paths", nil, "HTTP paths served without authentication (comma-separated)")

	RegisterIndexFlags(flags)
	flags.BoolP("watch", "w", false, "Reload the search index when the payload file changes")
	flags.Duration("watch-debounce", 250*time.Millisecond, "Quiet period before reloading a changed payload")
	flags.IntP("max-results", "m", 0, "Maximum number of search results")
	flags.StringP("default-mode", "d", "", "Default search mode: substring or fulltext")
}

// RegisterIndexFlags registers the flags that locate a search index payload
func RegisterIndexFlags(flags *pflag.FlagSet) {
	flags.StringP("index", "i", "", "Path to the search index payload (e.g. public/searchindex.en.js)")
	flags.String("index-var", "", "Variable name used when re-encoding a bare JSON array payload")
}
