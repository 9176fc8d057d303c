package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchapi-console/internal/model"
)

const searchAPIKeyEnv = "SEARCH_API_KEY"

func newSearchCmd(opts *options) *cobra.Command {
	var (
		apiKey     string
		params     model.SearchParams
		safeSearch int
	)
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Run a search billed to an API key",
		Long: "Run a search billed to an API key. The key comes from --api-key or " +
			searchAPIKeyEnv + "; the dashboard session is not used.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				apiKey = os.Getenv(searchAPIKeyEnv)
			}
			params.Query = strings.Join(args, " ")
			if cmd.Flags().Changed("safe-search") {
				params.SafeSearch = &safeSearch
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.client.Search(cmd.Context(), apiKey, params)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.jsonOut {
				if len(res.Raw) > 0 {
					_, err := fmt.Fprintln(w, string(res.Raw))
					return err
				}
				return printJSON(w, res)
			}

			if len(res.OrganicResults) == 0 {
				fmt.Fprintln(w, "No results.")
				return nil
			}
			for _, r := range res.OrganicResults {
				fmt.Fprintf(w, "%d. %s\n   %s\n", r.Position, r.Title, r.Link)
				if r.Snippet != "" {
					fmt.Fprintf(w, "   %s\n", r.Snippet)
				}
			}
			if m := res.Metadata; m != nil && m.TotalResults != "" {
				fmt.Fprintf(w, "\nAbout %s results", m.TotalResults)
				if m.SearchTime != "" {
					fmt.Fprintf(w, " (%s)", m.SearchTime)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&apiKey, "api-key", "", "API key to bill (defaults to $"+searchAPIKeyEnv+")")
	f.StringVar(&params.Engine, "engine", "", "search engine: google or wikipedia")
	f.StringVar(&params.Language, "language", "", "result language, e.g. en")
	f.StringVar(&params.Region, "region", "", "result region, e.g. us")
	f.IntVar(&safeSearch, "safe-search", 0, "safe search level")
	f.StringVar(&params.TimeRange, "time-range", "", "hour, day, week, month or year")
	f.IntVar(&params.Page, "page", 0, "result page")
	f.StringVar(&params.SearchType, "type", "", "web, images, videos, news, places or shopping")
	f.IntVar(&params.Num, "num", 0, "results per page")
	f.StringVar(&params.Domain, "domain", "", "engine domain, e.g. google.com")
	return cmd
}
