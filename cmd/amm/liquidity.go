package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ammEngine/internal/amm"
	"ammEngine/internal/config"
	"ammEngine/internal/model"
)

func liquidityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liquidity",
		Short: "Add, remove and inspect liquidity positions",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Deposit both tokens and mint LP tokens",
		RunE:  run(true, runLiquidityAdd),
	}
	addCmd.Flags().String("pool-id", "", "pool id")
	addCmd.Flags().String("provider", "", "liquidity provider")
	addCmd.Flags().String("amount-a", "", "maximum amount of token A")
	addCmd.Flags().String("amount-b", "", "maximum amount of token B")
	addCmd.Flags().String("min-lp", "", "minimum LP tokens to mint")
	addCmd.Flags().String("deadline", "", "deadline (unix seconds or RFC3339)")

	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Burn LP tokens for a share of the reserves",
		RunE:  run(true, runLiquidityRemove),
	}
	removeCmd.Flags().String("pool-id", "", "pool id")
	removeCmd.Flags().String("provider", "", "liquidity provider")
	removeCmd.Flags().String("lp", "", "LP tokens to burn")
	removeCmd.Flags().String("min-a", "", "minimum amount of token A returned")
	removeCmd.Flags().String("min-b", "", "minimum amount of token B returned")
	removeCmd.Flags().String("deadline", "", "deadline (unix seconds or RFC3339)")

	positionCmd := &cobra.Command{
		Use:   "position",
		Short: "Show LP positions",
		RunE:  run(false, runLiquidityPosition),
	}
	positionCmd.Flags().String("pool-id", "", "pool id")
	positionCmd.Flags().String("provider", "", "liquidity provider, empty lists every position")

	cmd.AddCommand(addCmd, removeCmd, positionCmd)
	return cmd
}

func runLiquidityAdd(ctx context.Context, cmd *cobra.Command, s *session) (any, error) {
	p := amm.AddLiquidityParams{}
	p.PoolID, _ = cmd.Flags().GetString("pool-id")
	p.Provider, _ = cmd.Flags().GetString("provider")

	var err error
	if p.AmountA, err = amountFlag(cmd, "amount-a"); err != nil {
		return nil, err
	}
	if p.AmountB, err = amountFlag(cmd, "amount-b"); err != nil {
		return nil, err
	}
	if p.MinLPTokens, err = amountFlag(cmd, "min-lp"); err != nil {
		return nil, err
	}
	if p.Deadline, err = deadlineFlag(cmd); err != nil {
		return nil, err
	}
	return s.engine.AddLiquidity(ctx, p)
}

func runLiquidityRemove(ctx context.Context, cmd *cobra.Command, s *session) (any, error) {
	p := amm.RemoveLiquidityParams{}
	p.PoolID, _ = cmd.Flags().GetString("pool-id")
	p.Provider, _ = cmd.Flags().GetString("provider")

	var err error
	if p.LPAmount, err = amountFlag(cmd, "lp"); err != nil {
		return nil, err
	}
	if p.MinAmountA, err = amountFlag(cmd, "min-a"); err != nil {
		return nil, err
	}
	if p.MinAmountB, err = amountFlag(cmd, "min-b"); err != nil {
		return nil, err
	}
	if p.Deadline, err = deadlineFlag(cmd); err != nil {
		return nil, err
	}
	return s.engine.RemoveLiquidity(ctx, p)
}

func runLiquidityPosition(_ context.Context, cmd *cobra.Command, s *session) (any, error) {
	poolID, _ := cmd.Flags().GetString("pool-id")
	provider, _ := cmd.Flags().GetString("provider")
	if provider != "" && poolID != "" {
		return s.engine.Position(provider, poolID)
	}

	out := make([]model.LiquidityPosition, 0)
	for _, pos := range s.engine.Positions() {
		if (provider == "" || pos.Provider == provider) && (poolID == "" || pos.PoolID == poolID) {
			out = append(out, pos)
		}
	}
	return out, nil
}

func deadlineFlag(cmd *cobra.Command) (t time.Time, err error) {
	raw, _ := cmd.Flags().GetString("deadline")
	t, err = config.ParseTimestamp(raw)
	if err != nil {
		return t, fmt.Errorf("--deadline: %w", err)
	}
	return t, nil
}
