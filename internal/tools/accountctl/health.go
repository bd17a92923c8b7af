package accountctl

import (
	"fmt"
	"strings"

	platformgrpc "github.com/louisbranch/ledger/internal/platform/grpc"
	"github.com/louisbranch/ledger/internal/platform/timeouts"
	"github.com/spf13/cobra"
)

func newHealthCommand(opts *Options) *cobra.Command {
	var (
		addr    string
		service string
		wait    bool
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the account service gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(addr) == "" {
				return fmt.Errorf("--addr is required")
			}
			ctx, cancel := commandContext(cmd, opts)
			defer cancel()
			logf := func(format string, args ...any) {
				fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
			}
			timeout := timeouts.GRPCDial
			if wait {
				timeout = 0
			}
			conn, err := platformgrpc.DialWithHealth(ctx, addr, service, timeout, logf, platformgrpc.ClientDialOptions()...)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s SERVING\n", addr, service)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8090", "gRPC health address")
	cmd.Flags().StringVar(&service, "service", "account.v1.AccountService", "health service name")
	cmd.Flags().BoolVar(&wait, "wait", false, "keep checking until the command timeout instead of the dial timeout")
	return cmd
}
