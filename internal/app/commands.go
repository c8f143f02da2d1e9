package app

import (
	"fmt"
	"io"

	"github.com/sha1n/mcp-sitesearch-server/internal/config"
	"github.com/sha1n/mcp-sitesearch-server/internal/domain"
	"github.com/sha1n/mcp-sitesearch-server/internal/searchindex"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// NewQueryCommand creates the query subcommand, which searches a payload file
// without starting a server
func NewQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "query [TEXT]",
		Short:        "Search a search index payload file",
		Long:         "Search a search index payload file. Without TEXT every page is listed in payload order.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			return runQuery(cmd.Flags(), cmd.OutOrStdout(), text)
		},
	}

	flags := cmd.Flags()
	RegisterIndexFlags(flags)
	flags.StringP("mode", "d", "", "Search mode: substring or fulltext (default from settings)")
	flags.IntP("limit", "n", 0, "Maximum number of results (default from settings)")
	flags.Bool("json", false, "Print matching pages as a JSON array")

	return cmd
}

// NewValidateCommand creates the validate subcommand, which checks that a
// payload file loads
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "validate [FILE]",
		Short:        "Check that a search index payload file is well formed",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if len(args) == 1 {
				if err := flags.Set("index", args[0]); err != nil {
					return err
				}
			}
			return runValidate(flags, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	RegisterIndexFlags(flags)
	flags.Bool("print", false, "Print the payload re-encoded in the generator's format")

	return cmd
}

func loadIndexSettings(flags *pflag.FlagSet) (*config.SearchIndexSettings, error) {
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.SearchIndex.Path == "" {
		return nil, fmt.Errorf("index path cannot be empty")
	}
	return &settings.SearchIndex, nil
}

func runQuery(flags *pflag.FlagSet, out io.Writer, text string) error {
	settings, err := loadIndexSettings(flags)
	if err != nil {
		return err
	}

	mode, _ := flags.GetString("mode")
	if mode == "" {
		mode = settings.DefaultMode
	}
	limit, _ := flags.GetInt("limit")
	if limit <= 0 {
		limit = settings.MaxResults
	}
	asJSON, _ := flags.GetBool("json")

	payload, err := searchindex.LoadFile(settings.Path)
	if err != nil {
		return err
	}
	store := searchindex.NewStore(payload.Records)

	var (
		records []domain.PageRecord
		labels  []string
		total   int
	)
	switch mode {
	case config.SearchModeSubstring:
		matches := store.QueryMatches(text)
		total = len(matches)
		for _, m := range matches[:min(limit, len(matches))] {
			records = append(records, m.Record)
			labels = append(labels, m.Relevance.String())
		}

	case config.SearchModeFullText:
		index, err := searchindex.NewFullTextIndex(store)
		if err != nil {
			return err
		}
		defer func() { _ = index.Close() }()

		res, err := index.Search(text, limit)
		if err != nil {
			return err
		}
		total = int(res.Total)
		for _, hit := range res.Hits {
			records = append(records, hit.Record)
			labels = append(labels, fmt.Sprintf("%.4f", hit.Score))
		}

	default:
		return fmt.Errorf("unknown search mode %q", mode)
	}

	if asJSON {
		return searchindex.EncodeJSON(out, records)
	}

	if total == 0 {
		_, err := fmt.Fprintln(out, "No pages found")
		return err
	}
	for i, rec := range records {
		if _, err := fmt.Fprintf(out, "%d. %s\t%s\t%s\n", i+1, rec.Title, rec.URI, labels[i]); err != nil {
			return err
		}
	}
	if total > len(records) {
		_, err := fmt.Fprintf(out, "... and %d more pages\n", total-len(records))
		return err
	}
	return nil
}

func runValidate(flags *pflag.FlagSet, out io.Writer) error {
	settings, err := loadIndexSettings(flags)
	if err != nil {
		return err
	}

	payload, err := searchindex.LoadFile(settings.Path)
	if err != nil {
		return err
	}

	printPayload, _ := flags.GetBool("print")
	if printPayload {
		varName := payload.VarName
		if varName == "" {
			varName = settings.VarName
		}
		return searchindex.Encode(out, varName, payload.Records)
	}

	tagged := 0
	for _, rec := range payload.Records {
		if len(rec.Tags) > 0 {
			tagged++
		}
	}

	varName := payload.VarName
	if varName == "" {
		varName = "(bare array)"
	}
	_, err = fmt.Fprintf(out, "%s: %d pages, %d tagged, variable %s\n",
		settings.Path, len(payload.Records), tagged, varName)
	return err
}
