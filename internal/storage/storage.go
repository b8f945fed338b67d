package storage

import (
	"context"
	"errors"

	"ammEngine/internal/model"
)

// Sink receives committed receipts and liquidity events.
type Sink interface {
	PutReceipts(ctx context.Context, receipts []model.Receipt) error
	PutLiquidityEvents(ctx context.Context, events []model.LiquidityEvent) error
}

// MultiSink fans writes out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) PutReceipts(ctx context.Context, receipts []model.Receipt) error {
	var errs []error
	for _, s := range m {
		if err := s.PutReceipts(ctx, receipts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) PutLiquidityEvents(ctx context.Context, events []model.LiquidityEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.PutLiquidityEvents(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
