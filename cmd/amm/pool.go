package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"ammEngine/internal/amm"
)

func poolCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Create and inspect pools",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new pool",
		RunE:  run(true, runPoolCreate),
	}
	createCmd.Flags().String("pool-id", "", "pool id")
	createCmd.Flags().String("symbol-a", "", "first token symbol")
	createCmd.Flags().String("symbol-b", "", "second token symbol")
	createCmd.Flags().Uint32("fee-bps", 30, "swap fee in basis points (max 1000)")
	createCmd.Flags().Uint32("protocol-share-bps", 2500, "share of the swap fee routed to the protocol")
	createCmd.Flags().String("protocol-fee-receiver", "protocol", "protocol fee receiver")
	createCmd.Flags().Uint32("max-in-bps", 5000, "max swap input as bps of the input reserve")
	createCmd.Flags().Uint32("max-out-bps", 5000, "max swap output as bps of the output reserve")
	createCmd.Flags().Duration("max-ttl", 10*time.Minute, "swap request lifetime, 0 means no expiry")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List pools ordered by id",
		RunE: run(false, func(_ context.Context, _ *cobra.Command, s *session) (any, error) {
			return slices.Collect(s.engine.Pools()), nil
		}),
	}

	priceCmd := &cobra.Command{
		Use:   "price <pool-id>",
		Short: "Show the spot price of a pool",
		Args:  cobra.ExactArgs(1),
	}
	priceCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(false, func(_ context.Context, _ *cobra.Command, s *session) (any, error) {
			return s.engine.SpotPrice(args[0])
		})(cmd, args)
	}

	cmd.AddCommand(createCmd, listCmd, priceCmd)
	return cmd
}

func runPoolCreate(ctx context.Context, cmd *cobra.Command, s *session) (any, error) {
	poolID, _ := cmd.Flags().GetString("pool-id")
	symbolA, _ := cmd.Flags().GetString("symbol-a")
	symbolB, _ := cmd.Flags().GetString("symbol-b")
	if poolID == "" || symbolA == "" || symbolB == "" {
		return nil, fmt.Errorf("pool-id, symbol-a and symbol-b are required")
	}

	d := s.cfg.Pool
	return s.engine.CreatePool(ctx, amm.PoolParams{
		PoolID:              poolID,
		SymbolA:             symbolA,
		SymbolB:             symbolB,
		FeeBps:              d.FeeBps,
		ProtocolFeeShareBps: d.ProtocolShareBps,
		ProtocolFeeReceiver: d.ProtocolFeeReceiver,
		MaxInBps:            d.MaxInBps,
		MaxOutBps:           d.MaxOutBps,
		MaxTTL:              d.MaxTTL,
	})
}
