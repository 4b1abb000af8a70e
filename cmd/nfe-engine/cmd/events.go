package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// The cancel and correct commands operate against a running serve
// instance, which owns the document store.

var eventServer string

var cancelCmd = &cobra.Command{
	Use:   "cancel <document-id> <justification>",
	Short: "Cancel an issued document (within 24h of issuance)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return postEvent(fmt.Sprintf("%s/api/v1/documents/%s/cancel", eventServer, args[0]),
			map[string]string{"justification": args[1]})
	},
}

var correctCmd = &cobra.Command{
	Use:   "correct <document-id> <text>",
	Short: "Register a correction letter against an issued document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return postEvent(fmt.Sprintf("%s/api/v1/documents/%s/correct", eventServer, args[0]),
			map[string]string{"text": args[1]})
	},
}

func init() {
	for _, c := range []*cobra.Command{cancelCmd, correctCmd} {
		c.Flags().StringVar(&eventServer, "server", "http://localhost:8080", "Address of a running nfe-engine serve instance")
		rootCmd.AddCommand(c)
	}
}

func postEvent(url string, payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, out)
	}
	fmt.Println(string(out))
	return nil
}
