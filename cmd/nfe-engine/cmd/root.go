package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfe-engine/internal/model"
)

var (
	version = "1.0.0"

	// Global flags
	verbose   bool
	certPath  string
	certPass  string
	live      bool
	authority string
	rulesPath string
)

var rootCmd = &cobra.Command{
	Use:   "nfe-engine",
	Short: "Issue, cancel, and amend Brazilian electronic fiscal documents (NF-e)",
	Long: `nfe-engine is the emission core for Brazilian NF-e documents.

It resolves tax rules, builds the layout 4.00 document, signs it with
the merchant's A1 certificate, and submits it to the jurisdiction's
SEFAZ web service.

Examples:
  # Issue a document from an order file against the test environment
  nfe-engine issue order.json --cert merchant.pfx --cert-pass secret

  # Validate an access key's check digit
  nfe-engine key 35260812345678000195550010000001231000001236

  # Run the HTTP API
  nfe-engine serve --addr :8080 --cert merchant.pfx --cert-pass secret`,
	Version: version,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&certPath, "cert", "", "Path to the PKCS#12 credential bundle (env: NFE_CERT)")
	rootCmd.PersistentFlags().StringVar(&certPass, "cert-pass", "", "Credential bundle passphrase (env: NFE_CERT_PASS)")
	rootCmd.PersistentFlags().BoolVar(&live, "live", false, "Use the live environment instead of test")
	rootCmd.PersistentFlags().StringVar(&authority, "authority", "sefaz", "Authority implementation (sefaz, stub)")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Path to a JSON tax rule set (env: NFE_RULES)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if certPath == "" {
		certPath = os.Getenv("NFE_CERT")
	}
	if certPass == "" {
		certPass = os.Getenv("NFE_CERT_PASS")
	}
	if rulesPath == "" {
		rulesPath = os.Getenv("NFE_RULES")
	}
}

func loadBundle() ([]byte, error) {
	if certPath == "" {
		return nil, fmt.Errorf("no credential bundle: set --cert or NFE_CERT")
	}
	return os.ReadFile(certPath)
}

func loadRules() ([]model.TaxRule, error) {
	if rulesPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, err
	}
	var rules []model.TaxRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rule set: %w", err)
	}
	return rules, nil
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
