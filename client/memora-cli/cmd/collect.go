package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

type progressEvent struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

var collectCmd = &cobra.Command{
	Use:   "collect [url]",
	Short: "Collect a web page and stream the ingestion progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(serverURL, token)
		return collect(c, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

func collect(c *apiClient, rawURL string, out io.Writer) error {
	var failed error
	err := c.stream("/collections/url", map[string]string{"url": rawURL}, func(payload []byte) error {
		var ev progressEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("malformed event %q: %w", payload, err)
		}
		printEvent(out, ev)
		if ev.Type == "ingestion_failed" {
			failed = fmt.Errorf("ingestion failed at %v: %v", ev.Data["stage"], ev.Data["message"])
		}
		return nil
	})
	if err != nil {
		return err
	}
	return failed
}

func printEvent(out io.Writer, ev progressEvent) {
	switch ev.Type {
	case "collection_created":
		fmt.Fprintf(out, "created collection %v\n", ev.Data["id"])
	case "collection_exists":
		fmt.Fprintln(out, "already collected")
	case "content_fetched":
		fmt.Fprintf(out, "fetched %q\n", ev.Data["title"])
	case "category_analyzed":
		fmt.Fprintf(out, "category %v %v (id %v), tags %v\n", ev.Data["emoji"], ev.Data["category"], ev.Data["category_id"], ev.Data["tags"])
	case "summary_chunk":
		fmt.Fprint(out, ev.Data["summary"])
	case "index_completed":
		fmt.Fprintf(out, "\ndone: collection %v\n", ev.Data["collection_id"])
	default:
		b, _ := json.Marshal(ev.Data)
		fmt.Fprintf(os.Stderr, "%s: %s\n", ev.Type, b)
	}
}
