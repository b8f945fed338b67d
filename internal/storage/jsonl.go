package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ammEngine/internal/model"
)

// JournalStorage appends receipts and liquidity events to a JSONL journal.
type JournalStorage struct {
	path string
	mu   sync.Mutex
}

func NewJournalStorage(path string) *JournalStorage {
	return &JournalStorage{path: path}
}

// PutReceipts appends one journal line per receipt.
func (s *JournalStorage) PutReceipts(_ context.Context, receipts []model.Receipt) error {
	entries := make([]model.JournalEntry, 0, len(receipts))
	for i := range receipts {
		entries = append(entries, model.JournalEntry{Kind: model.JournalReceipt, Receipt: &receipts[i]})
	}
	return s.append(entries)
}

// PutLiquidityEvents appends one journal line per event.
func (s *JournalStorage) PutLiquidityEvents(_ context.Context, events []model.LiquidityEvent) error {
	entries := make([]model.JournalEntry, 0, len(events))
	for i := range events {
		entries = append(entries, model.JournalEntry{Kind: model.JournalLiquidity, Liquidity: &events[i]})
	}
	return s.append(entries)
}

func (s *JournalStorage) append(entries []model.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal journal entry: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write journal entry: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return file.Sync()
}

// ReadJournal decodes every entry of a journal file, strictly.
func ReadJournal(path string) ([]model.JournalEntry, error) {
	var entries []model.JournalEntry
	err := ScanJournal(path, func(entry model.JournalEntry) error {
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ScanJournal streams journal entries to fn in file order. It stops at the
// first malformed line or the first error returned by fn.
func ScanJournal(path string, fn func(model.JournalEntry) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		entry, err := model.DecodeStrict[model.JournalEntry](scanner.Bytes())
		if err != nil {
			return fmt.Errorf("journal line %d: %w", line, err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan journal: %w", err)
	}
	return nil
}
