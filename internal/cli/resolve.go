package cli

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	resolution "phonelease/internal/resolution/models"
	"phonelease/pkg/domain"
)

type ResolveOptions struct {
	*RootOptions
	CoinType uint64
}

// addrResult is what resolve and set-addr report.
type addrResult struct {
	Name     string `json:"name"`
	CoinType uint64 `json:"coin_type"`
	Address  string `json:"address"`
	Signer   string `json:"signer"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <identifier|node>",
		Short: "Resolve the address bound to an identifier",
		Long: `Resolve the address bound to an identifier through the off-ledger gateway.

The registry returns a lookup descriptor, the gateway named in it answers
with a signed response, and the registry verifies that response.

Example:
  leasectl resolve +15550001234`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts, args[0])
		},
	}
	cmd.Flags().Uint64Var(&opts.CoinType, "coin", domain.CoinTypeETH, "SLIP-44 coin type")
	return cmd
}

// NewSetAddrCommand creates the set-addr command.
func NewSetAddrCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set-addr <identifier> <0x-value>",
		Short: "Store an address for an identifier at the gateway",
		Long: `Store an address for an identifier at the off-ledger gateway.

Only the lease owner may write. The bearer token is presented to both the
registry and the gateway. The write is signed for by the gateway and
verified by the registry before it is reported as applied.

Example:
  leasectl set-addr +15550001234 0x00000000000000000000000000000000000000a1 --token $TOKEN`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetAddr(cmd, opts, args[0], args[1])
		},
	}
	cmd.Flags().Uint64Var(&opts.CoinType, "coin", domain.CoinTypeETH, "SLIP-44 coin type")
	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions, name string) error {
	client := NewClient(opts.RootOptions)
	p := newPrinter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var desc resolution.DescriptorResponse
	if err := client.Get(cmd.Context(), addrPath(name, opts.CoinType), &desc); err != nil {
		return err
	}
	result, err := client.Resolve(cmd.Context(), &desc, p.step)
	if err != nil {
		return err
	}
	return printAddr(p, name, opts.CoinType, result)
}

func runSetAddr(cmd *cobra.Command, opts *ResolveOptions, name, value string) error {
	if _, err := hexutil.Decode(value); err != nil {
		return NewExitError(ExitCommandError, "value must be 0x-prefixed hex")
	}
	client := NewClient(opts.RootOptions)
	p := newPrinter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var desc resolution.DescriptorResponse
	if err := client.Post(cmd.Context(), addrPath(name, opts.CoinType), resolution.SetAddrRequest{Value: value}, &desc); err != nil {
		return err
	}
	result, err := client.Resolve(cmd.Context(), &desc, p.step)
	if err != nil {
		return err
	}
	return printAddr(p, name, opts.CoinType, result)
}

func addrPath(name string, coinType uint64) string {
	return "/resolve/" + segment(name) + "/addr/" + strconv.FormatUint(coinType, 10)
}

func printAddr(p *printer, name string, coinType uint64, result *resolution.ResultResponse) error {
	out := addrResult{Name: name, CoinType: coinType, Address: formatAddress(result.Result), Signer: result.Signer}
	shown := out.Address
	if shown == "" {
		shown = warnColor.Sprint("(unset)")
	}
	return p.result(out,
		field{"name", out.Name},
		field{"coin", strconv.FormatUint(out.CoinType, 10)},
		field{"address", shown},
		field{"signer", out.Signer},
	)
}

// formatAddress shows 20-byte values as checksummed addresses and anything
// else as hex. Nothing bound yields "".
func formatAddress(raw string) string {
	b, err := hexutil.Decode(raw)
	switch {
	case err != nil || len(b) == 0:
		return ""
	case len(b) == common.AddressLength:
		return common.BytesToAddress(b).Hex()
	default:
		return raw
	}
}
