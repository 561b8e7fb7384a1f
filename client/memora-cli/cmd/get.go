package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get [collection-id]",
	Short: "Show a collection with its details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(serverURL, token)
		var raw json.RawMessage
		if err := c.doJSON(http.MethodGet, "/collections/"+url.PathEscape(args[0]), nil, &raw); err != nil {
			return err
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "  "); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
