package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage per-category knowledge bases",
}

var kbCreateCmd = &cobra.Command{
	Use:   "create [category-id]",
	Short: "Build a knowledge base from every collection in a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(serverURL, token)
		var res struct {
			KnowledgeBaseID string `json:"knowledge_base_id"`
		}
		if err := c.doJSON(http.MethodPost, "/categories/"+url.PathEscape(args[0])+"/knowledge_base", nil, &res); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Knowledge base %s is being built.\n", res.KnowledgeBaseID)
		return nil
	},
}

var kbQueryCmd = &cobra.Command{
	Use:   "query [category-id] [question]",
	Short: "Ask a question against a category's knowledge base",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(serverURL, token)
		var res struct {
			Answer  string   `json:"answer"`
			Sources []string `json:"sources"`
		}
		path := "/categories/" + url.PathEscape(args[0]) + "/knowledge_base?query=" + url.QueryEscape(strings.Join(args[1:], " "))
		if err := c.doJSON(http.MethodGet, path, nil, &res); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, res.Answer)
		for i, s := range res.Sources {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, s)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(kbCmd)
	kbCmd.AddCommand(kbCreateCmd)
	kbCmd.AddCommand(kbQueryCmd)
}
