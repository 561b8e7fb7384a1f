package cmd

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

type searchResult struct {
	Collection *struct {
		ID      int64                  `json:"id"`
		Details map[string]interface{} `json:"details"`
	} `json:"collection"`
	Category *struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Emoji string `json:"emoji"`
	} `json:"category"`
	Confidence string `json:"confidence"`
	Reason     string `json:"reason"`
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Let the model find the saved collection matching a description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return search(newAPIClient(serverURL, token), strings.Join(args, " "), cmd.OutOrStdout())
	},
}

func search(c *apiClient, query string, out io.Writer) error {
	var res searchResult
	if err := c.doJSON(http.MethodGet, "/collections/search?query="+url.QueryEscape(query), nil, &res); err != nil {
		return err
	}
	if res.Collection == nil {
		fmt.Fprintln(out, "No matching collection.")
		if res.Reason != "" {
			fmt.Fprintf(out, "  %s\n", res.Reason)
		}
		return nil
	}

	title, _ := res.Collection.Details["title"].(string)
	link, _ := res.Collection.Details["url"].(string)
	fmt.Fprintf(out, "collection %d: %s\n", res.Collection.ID, title)
	if link != "" {
		fmt.Fprintf(out, "  %s\n", link)
	}
	if res.Category != nil {
		fmt.Fprintf(out, "  category: %s %s\n", res.Category.Emoji, res.Category.Name)
	}
	fmt.Fprintf(out, "  confidence: %s\n", res.Confidence)
	if res.Reason != "" {
		fmt.Fprintf(out, "  %s\n", res.Reason)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
