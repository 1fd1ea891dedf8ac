package cli

import (
	"github.com/spf13/cobra"

	registration "phonelease/internal/registration/models"
)

type LeaseOptions struct {
	*RootOptions
	Tier        string
	Duration    string
	Payment     string
	BindAddress string
}

func (o *LeaseOptions) flags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Tier, "tier", "", "tier the identifier belongs to (e.g. +1)")
	cmd.Flags().StringVar(&o.Duration, "duration", "1y", "lease period (e.g. 1y, 90d, 720h)")
	cmd.Flags().StringVar(&o.Payment, "payment", "", "payment in wei; any excess is refunded")
	_ = cmd.MarkFlagRequired("tier")
	_ = cmd.MarkFlagRequired("payment")
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LeaseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <identifier>",
		Short: "Register an identifier for the token's identity",
		Long: `Register an identifier for a period, paying at least the quoted fee.

Example:
  leasectl register +15550001234 --tier +1 --duration 1y --payment 10000000000000000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd, opts, args[0])
		},
	}
	opts.flags(cmd)
	cmd.Flags().StringVar(&opts.BindAddress, "bind-address", "", "address to bind to the identifier once registered")
	return cmd
}

// NewRenewCommand creates the renew command.
func NewRenewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LeaseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "renew <identifier>",
		Short:         "Extend a lease held by the token's identity",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRenew(cmd, opts, args[0])
		},
	}
	opts.flags(cmd)
	return cmd
}

func runRegister(cmd *cobra.Command, opts *LeaseOptions, identifier string) error {
	d, err := parsePeriod(opts.Duration)
	if err != nil {
		return err
	}
	payment, err := parseWei(opts.Payment)
	if err != nil {
		return err
	}
	client := NewClient(opts.RootOptions)
	var receipt registration.ReceiptResponse
	err = client.Post(cmd.Context(), "/leases", registration.RegisterRequest{
		Identifier:      identifier,
		Tier:            opts.Tier,
		DurationSeconds: seconds(d),
		Payment:         payment,
		BindAddress:     opts.BindAddress,
	}, &receipt)
	if err != nil {
		return err
	}
	if receipt.Binding != nil {
		p := newPrinter(opts.RootOptions, cmd.ErrOrStderr(), cmd.ErrOrStderr())
		if _, err := client.Resolve(cmd.Context(), receipt.Binding, p.step); err != nil {
			return WrapExitError(ExitFailure, "lease registered but address binding failed", err)
		}
	}
	return printReceipt(cmd, opts.RootOptions, receipt)
}

func runRenew(cmd *cobra.Command, opts *LeaseOptions, identifier string) error {
	d, err := parsePeriod(opts.Duration)
	if err != nil {
		return err
	}
	payment, err := parseWei(opts.Payment)
	if err != nil {
		return err
	}
	var receipt registration.ReceiptResponse
	err = NewClient(opts.RootOptions).Post(cmd.Context(), "/leases/"+segment(identifier)+"/renew", registration.RenewRequest{
		Tier:            opts.Tier,
		DurationSeconds: seconds(d),
		Payment:         payment,
	}, &receipt)
	if err != nil {
		return err
	}
	return printReceipt(cmd, opts.RootOptions, receipt)
}

func printReceipt(cmd *cobra.Command, opts *RootOptions, r registration.ReceiptResponse) error {
	fields := leaseFields(r.Lease)
	fields = append(fields,
		field{"fee", r.Quote.TotalPrice},
		field{"refunded", r.Refunded},
		field{"forwarded", yesNo(r.FeeForwarded)},
	)
	if r.Binding != nil {
		fields = append(fields, field{"bound", okColor.Sprint("yes")})
	}
	return newPrinter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr()).result(r, fields...)
}
