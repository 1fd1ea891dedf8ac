// Package cli implements leasectl, a command line client for the registry
// and the off-ledger gateway.
package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Registry string
	Token    string
	Format   string // "json" | "text"
	Timeout  time.Duration
	Verbose  bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for leasectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "leasectl",
		Short: "Lease phone-number identifiers and resolve their addresses",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Registry, "registry", envOr("LEASECTL_REGISTRY", "http://localhost:8080"), "registry base url")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", envOr("LEASECTL_TOKEN", ""), "bearer token for authenticated commands")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-request timeout")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewQuoteCommand(opts))
	cmd.AddCommand(NewAvailableCommand(opts))
	cmd.AddCommand(NewLeaseCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewRenewCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewSetAddrCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewDepositCommand(opts))

	return cmd
}
