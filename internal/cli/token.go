package cli

import (
	"time"

	"github.com/spf13/cobra"

	jwttoken "phonelease/internal/jwt_token"
	"phonelease/pkg/domain"
)

type TokenOptions struct {
	*RootOptions
	SigningKey string
	Issuer     string
	Audience   string
	TTL        time.Duration
}

// NewTokenCommand creates the token command. It signs locally with the
// registry's shared key, so it is only useful where that key is known.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token <0x-identity>",
		Short: "Mint a bearer token for an identity",
		Long: `Mint a bearer token for an identity using the registry's signing key.

Example:
  export LEASECTL_TOKEN=$(leasectl token 0x00000000000000000000000000000000000000a1)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseIdentity(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid identity", err)
			}
			token, err := jwttoken.NewJWTService(opts.SigningKey, opts.Issuer, opts.Audience).GenerateToken(id, opts.TTL)
			if err != nil {
				return WrapExitError(ExitFailure, "sign token", err)
			}
			p := newPrinter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if opts.Format == "json" {
				return p.result(map[string]string{"token": token})
			}
			_, err = cmd.OutOrStdout().Write([]byte(token + "\n"))
			return err
		},
	}
	cmd.Flags().StringVar(&opts.SigningKey, "signing-key", envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"), "HS256 signing key")
	cmd.Flags().StringVar(&opts.Issuer, "issuer", envOr("JWT_ISSUER", "phonelease"), "token issuer")
	cmd.Flags().StringVar(&opts.Audience, "audience", envOr("JWT_AUDIENCE", "phonelease-api"), "token audience")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", time.Hour, "token lifetime")
	return cmd
}
