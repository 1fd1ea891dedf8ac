package cli

import (
	"github.com/spf13/cobra"

	"phonelease/internal/payments"
	"phonelease/pkg/domain"
)

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "balance",
		Short:         "Show the caller's spendable wallet balance",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp payments.BalanceResponse
			if err := NewClient(rootOpts).GetAuthenticated(cmd.Context(), "/wallet", &resp); err != nil {
				return err
			}
			return printBalance(rootOpts, cmd, resp)
		},
	}
}

// NewDepositCommand creates the deposit command.
func NewDepositCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <account> <amount>",
		Short: "Credit an account's wallet (owner only)",
		Long: `Credit an account's wallet balance. Registrations and renewals draw their
payment from this balance.

Example:
  leasectl deposit 0x00000000000000000000000000000000000000a1 5000000 --token $OWNER_TOKEN`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := domain.ParseIdentity(args[0]); err != nil {
				return WrapExitError(ExitCommandError, "account", err)
			}
			amount, err := parseWei(args[1])
			if err != nil {
				return err
			}
			var resp payments.BalanceResponse
			req := payments.DepositRequest{Account: args[0], Amount: amount}
			if err := NewClient(rootOpts).Post(cmd.Context(), "/admin/wallet/deposits", req, &resp); err != nil {
				return err
			}
			return printBalance(rootOpts, cmd, resp)
		},
	}
}

func printBalance(rootOpts *RootOptions, cmd *cobra.Command, resp payments.BalanceResponse) error {
	return newPrinter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).result(resp,
		field{"account", resp.Account},
		field{"balance", resp.Balance},
	)
}
