package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	registration "phonelease/internal/registration/models"
)

// NewAvailableCommand creates the available command.
func NewAvailableCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "available <identifier>",
		Short:         "Report whether an identifier can be registered",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp registration.AvailabilityResponse
			if err := NewClient(rootOpts).Get(cmd.Context(), "/leases/"+segment(args[0])+"/availability", &resp); err != nil {
				return err
			}
			return newPrinter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).result(resp,
				field{"identifier", resp.Identifier},
				field{"available", yesNo(resp.Available)},
			)
		},
	}
}

// NewLeaseCommand creates the lease command.
func NewLeaseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "lease <identifier>",
		Short:         "Show the lease currently recorded for an identifier",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp registration.LeaseResponse
			if err := NewClient(rootOpts).Get(cmd.Context(), "/leases/"+segment(args[0]), &resp); err != nil {
				return err
			}
			return newPrinter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).result(resp, leaseFields(resp)...)
		},
	}
}

func leaseFields(l registration.LeaseResponse) []field {
	return []field{
		{"identifier", l.Identifier},
		{"node", l.Node},
		{"owner", l.Owner},
		{"state", string(l.State)},
		{"expiry", l.Expiry.Format(time.RFC3339)},
	}
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
