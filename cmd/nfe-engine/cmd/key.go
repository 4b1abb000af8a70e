package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfe-engine/internal/accesskey"
)

var keyCmd = &cobra.Command{
	Use:   "key <access-key>",
	Short: "Validate an access key's length and check digit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if !accesskey.Valid(key) {
			if len(key) == accesskey.KeyLength {
				return fmt.Errorf("check digit mismatch: want %d", accesskey.CheckDigit(key[:accesskey.KeyLength-1]))
			}
			return fmt.Errorf("access key must be %d numeric digits, got %d", accesskey.KeyLength, len(key))
		}
		fmt.Println("valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
}
