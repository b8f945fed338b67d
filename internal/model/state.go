package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// StateVersion is the current EngineState schema version.
const StateVersion = 1

// EngineState is everything needed to rebuild an engine between process runs.
type EngineState struct {
	Version      int                  `json:"version"`
	Pools        []PoolRecord         `json:"pools"`
	Positions    []LiquidityPosition  `json:"positions"`
	ProtocolFees []ProtocolFeeBalance `json:"protocol_fees"`
	Pending      []SwapRequest        `json:"pending"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Validate checks the fields that cannot be defaulted.
func (s EngineState) Validate() error {
	if s.Version != StateVersion {
		return fmt.Errorf("unsupported state version %d", s.Version)
	}
	for i, p := range s.Pools {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("pool %d: %w", i, err)
		}
	}
	for i, req := range s.Pending {
		if err := req.Validate(); err != nil {
			return fmt.Errorf("pending request %d: %w", i, err)
		}
	}
	for i, pos := range s.Positions {
		if pos.Provider == "" || pos.PoolID == "" {
			return fmt.Errorf("position %d: provider and pool_id are required", i)
		}
	}
	for i, fee := range s.ProtocolFees {
		if fee.Receiver == "" || fee.PoolID == "" || fee.Symbol == "" {
			return fmt.Errorf("protocol fee %d: receiver, pool_id and symbol are required", i)
		}
	}
	return nil
}

// Validate checks required pool fields.
func (p PoolRecord) Validate() error {
	switch {
	case p.PoolID == "":
		return fmt.Errorf("pool_id is required")
	case p.SymbolA == "" || p.SymbolB == "":
		return fmt.Errorf("symbol_a and symbol_b are required")
	case p.Status == "":
		return fmt.Errorf("status is required")
	}
	return nil
}

// Validate checks required request fields.
func (r SwapRequest) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("id is required")
	case r.PoolID == "":
		return fmt.Errorf("pool_id is required")
	case r.SymbolIn == "" || r.SymbolOut == "":
		return fmt.Errorf("symbol_in and symbol_out are required")
	case r.Requester == "":
		return fmt.Errorf("requester is required")
	case r.ExpiresAt.IsZero():
		return fmt.Errorf("expires_at is required")
	}
	return nil
}

// JournalKind names the payload carried by a JournalEntry.
type JournalKind string

const (
	JournalReceipt   JournalKind = "receipt"
	JournalLiquidity JournalKind = "liquidity"
)

// JournalEntry is one line of the append-only operations journal.
type JournalEntry struct {
	Kind      JournalKind     `json:"kind"`
	Receipt   *Receipt        `json:"receipt,omitempty"`
	Liquidity *LiquidityEvent `json:"liquidity,omitempty"`
}

// Duration is a time.Duration encoded as a Go duration string ("10m").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("negative duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}
