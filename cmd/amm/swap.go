package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ammEngine/internal/amm"
	"ammEngine/internal/model"
)

type quoteOutput struct {
	Request model.SwapRequest `json:"request"`
	Quote   model.SwapQuote   `json:"quote"`
}

func swapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Quote and execute swaps",
	}

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap and record it as a pending request",
		RunE:  run(true, runSwapQuote),
	}
	quoteCmd.Flags().String("pool-id", "", "pool id")
	quoteCmd.Flags().String("symbol-in", "", "symbol of the token paid in")
	quoteCmd.Flags().String("amount-in", "", "amount paid in")
	quoteCmd.Flags().String("min-out", "", "minimum acceptable output")
	quoteCmd.Flags().String("requester", "", "requester id")

	executeCmd := &cobra.Command{
		Use:   "execute",
		Short: "Execute a pending swap request",
		RunE:  run(true, runSwapExecute),
	}
	executeCmd.Flags().String("request", "-", "swap request JSON file, - reads stdin")

	cancelCmd := &cobra.Command{
		Use:   "cancel <request-id>",
		Short: "Drop a pending swap request",
		Args:  cobra.ExactArgs(1),
	}
	cancelCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(true, func(ctx context.Context, _ *cobra.Command, s *session) (any, error) {
			return nil, s.engine.Cancel(ctx, args[0])
		})(cmd, args)
	}

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending swap requests",
		RunE: run(false, func(_ context.Context, _ *cobra.Command, s *session) (any, error) {
			return s.engine.Pending(), nil
		}),
	}

	cmd.AddCommand(quoteCmd, executeCmd, cancelCmd, pendingCmd)
	return cmd
}

func runSwapQuote(ctx context.Context, cmd *cobra.Command, s *session) (any, error) {
	q := amm.QuoteParams{}
	q.PoolID, _ = cmd.Flags().GetString("pool-id")
	q.SymbolIn, _ = cmd.Flags().GetString("symbol-in")
	q.Requester, _ = cmd.Flags().GetString("requester")

	var err error
	if q.AmountIn, err = amountFlag(cmd, "amount-in"); err != nil {
		return nil, err
	}
	if q.MinAmountOut, err = amountFlag(cmd, "min-out"); err != nil {
		return nil, err
	}

	req, quote, err := s.engine.Quote(ctx, q)
	if err != nil {
		return nil, err
	}
	return quoteOutput{Request: req, Quote: quote}, nil
}

func runSwapExecute(ctx context.Context, cmd *cobra.Command, s *session) (any, error) {
	path, _ := cmd.Flags().GetString("request")

	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	req, err := model.DecodeStrict[model.SwapRequest](data)
	if err != nil {
		return nil, amm.ErrInvalidParams.Wrapf("decode request: %v", err)
	}
	return s.engine.Execute(ctx, req)
}
