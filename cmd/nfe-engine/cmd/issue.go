package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rezonia/nfe-engine/internal/engine"
	"github.com/rezonia/nfe-engine/internal/lifecycle"
	"github.com/rezonia/nfe-engine/internal/sefaz"
	"github.com/rezonia/nfe-engine/internal/server"
)

var issueOutput string

var issueCmd = &cobra.Command{
	Use:   "issue <order.json>",
	Short: "Issue a fiscal document from an order file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssue,
}

func init() {
	issueCmd.Flags().StringVarP(&issueOutput, "output", "o", "", "Write the signed XML to a file")
	rootCmd.AddCommand(issueCmd)
}

func runIssue(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var req server.IssueRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse order file: %w", err)
	}
	req.Live = live

	doc, err := req.ToDocument()
	if err != nil {
		return err
	}

	eng, err := buildEngine()
	if err != nil {
		return err
	}

	printVerbose("submitting document (series %d, %s)\n", doc.Series, doc.Emitter.Address.UF)
	result, err := eng.Issue(context.Background(), doc)
	if err != nil {
		return err
	}

	fmt.Printf("access key: %s\nprotocol:   %s\nstatus:     %s\n",
		result.AccessKey, result.Protocol, result.Status)

	if issueOutput != "" {
		if err := os.WriteFile(issueOutput, result.SignedXML, 0o644); err != nil {
			return err
		}
		printVerbose("signed XML written to %s\n", issueOutput)
	}
	return nil
}

// buildEngine assembles an engine from the global flags. The
// authority variant is a deliberate configuration choice; there is no
// automatic fallback from sefaz to stub.
func buildEngine() (*engine.Engine, error) {
	bundle, err := loadBundle()
	if err != nil {
		return nil, err
	}
	rules, err := loadRules()
	if err != nil {
		return nil, err
	}

	var auth sefaz.Authority
	switch authority {
	case "sefaz":
		auth = sefaz.NewClient()
	case "stub":
		auth = sefaz.NewStubAuthority()
	default:
		return nil, fmt.Errorf("unknown authority %q (want sefaz or stub)", authority)
	}

	log := zap.NewNop()
	if verbose {
		if log, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}

	return engine.New(
		lifecycle.NewMemoryStore(),
		auth,
		engine.Credentials{Bundle: bundle, Passphrase: certPass},
		engine.WithRules(rules),
		engine.WithLogger(log),
	), nil
}
