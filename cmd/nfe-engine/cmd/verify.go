package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfe-engine/internal/certificate"
	"github.com/rezonia/nfe-engine/internal/signer"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <signed.xml>",
	Short: "Verify a signed document against the configured certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		bundle, err := loadBundle()
		if err != nil {
			return err
		}
		cred, err := certificate.Load(bundle, certPass)
		if err != nil {
			return err
		}
		if err := signer.Verify(data, cred.Cert); err != nil {
			return err
		}
		fmt.Println("signature valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
