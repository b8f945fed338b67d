package model

import (
	"time"

	"ammEngine/internal/fixed"
)

// SwapRequest is a quoted trade waiting to be executed. It is consumed exactly once.
type SwapRequest struct {
	ID           string       `json:"id"`
	PoolID       string       `json:"pool_id"`
	SymbolIn     string       `json:"symbol_in"`
	SymbolOut    string       `json:"symbol_out"`
	AmountIn     fixed.Amount `json:"amount_in"`
	MinAmountOut fixed.Amount `json:"min_amount_out"`
	Requester    string       `json:"requester"`
	CreatedAt    time.Time    `json:"created_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// SwapQuote describes the trade a request would produce against the reserves at quote time.
type SwapQuote struct {
	AmountOut        fixed.Amount `json:"amount_out"`
	AmountInAfterFee fixed.Amount `json:"amount_in_after_fee"`
	TotalFee         fixed.Amount `json:"total_fee"`
	LPFee            fixed.Amount `json:"lp_fee"`
	ProtocolFee      fixed.Amount `json:"protocol_fee"`
	PriceImpactBps   uint64       `json:"price_impact_bps"`
	ImpactClass      string       `json:"impact_class"`
}

// Receipt is the immutable record of a committed swap.
type Receipt struct {
	PoolID           string       `json:"pool_id"`
	RequestID        string       `json:"request_id"`
	Requester        string       `json:"requester"`
	SymbolIn         string       `json:"symbol_in"`
	SymbolOut        string       `json:"symbol_out"`
	AmountIn         fixed.Amount `json:"amount_in"`
	AmountOut        fixed.Amount `json:"amount_out"`
	TotalFee         fixed.Amount `json:"total_fee"`
	LPFee            fixed.Amount `json:"lp_fee"`
	ProtocolFee      fixed.Amount `json:"protocol_fee"`
	PriceImpactBps   uint64       `json:"price_impact_bps"`
	ImpactClass      string       `json:"impact_class"`
	ReserveInBefore  fixed.Amount `json:"reserve_in_before"`
	ReserveOutBefore fixed.Amount `json:"reserve_out_before"`
	ReserveInAfter   fixed.Amount `json:"reserve_in_after"`
	ReserveOutAfter  fixed.Amount `json:"reserve_out_after"`
	OutputTokenRef   string       `json:"output_token_ref"`
	ExecutedAt       time.Time    `json:"executed_at"`
}
