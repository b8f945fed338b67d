package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func feesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Inspect and withdraw accrued protocol fees",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show protocol fee balances",
		RunE: run(false, func(_ context.Context, cmd *cobra.Command, s *session) (any, error) {
			receiver, _ := cmd.Flags().GetString("receiver")
			return s.engine.ProtocolFees(receiver), nil
		}),
	}
	showCmd.Flags().String("receiver", "", "receiver, empty shows every balance")

	withdrawCmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw protocol fees, zeroing the balance",
		RunE: run(true, func(ctx context.Context, cmd *cobra.Command, s *session) (any, error) {
			receiver, _ := cmd.Flags().GetString("receiver")
			poolID, _ := cmd.Flags().GetString("pool-id")
			if receiver == "" {
				return nil, fmt.Errorf("receiver is required")
			}
			return s.engine.WithdrawProtocolFees(ctx, receiver, poolID)
		}),
	}
	withdrawCmd.Flags().String("receiver", "", "receiver")
	withdrawCmd.Flags().String("pool-id", "", "pool id, empty withdraws from every pool")

	cmd.AddCommand(showCmd, withdrawCmd)
	return cmd
}
