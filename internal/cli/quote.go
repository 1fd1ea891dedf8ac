package cli

import (
	"net/url"

	"github.com/spf13/cobra"

	pricing "phonelease/internal/pricing/models"
)

type QuoteOptions struct {
	*RootOptions
	Duration string
}

// NewQuoteCommand creates the quote command.
func NewQuoteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QuoteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "quote <tier>",
		Short: "Quote the fee for leasing in a tier",
		Long: `Quote the fee for leasing an identifier in a tier for a period.

Example:
  leasectl quote +44 --duration 2y`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuote(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.Duration, "duration", "1y", "lease period (e.g. 1y, 90d, 720h)")
	return cmd
}

func runQuote(cmd *cobra.Command, opts *QuoteOptions, tier string) error {
	d, err := parsePeriod(opts.Duration)
	if err != nil {
		return err
	}
	q := url.Values{"tier": {tier}, "duration_seconds": {seconds(d)}}

	var quote pricing.FeeQuoteResponse
	if err := NewClient(opts.RootOptions).Get(cmd.Context(), "/pricing/quote?"+q.Encode(), &quote); err != nil {
		return err
	}
	return newPrinter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).result(quote, quoteFields(quote)...)
}

func quoteFields(q pricing.FeeQuoteResponse) []field {
	return []field{
		{"tier", q.Tier},
		{"years", formatUint(q.Years)},
		{"per year", q.PricePerYear},
		{"total", q.TotalPrice},
	}
}
