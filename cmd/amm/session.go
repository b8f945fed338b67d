package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammEngine/internal/amm"
	"ammEngine/internal/config"
	"ammEngine/internal/fixed"
	"ammEngine/internal/state"
	"ammEngine/internal/storage"
	"ammEngine/internal/storage/postgres"
)

// session is one CLI invocation: the engine restored from the state store,
// and the sinks its events are published to. The state lock is held from
// load until close, so overlapping invocations run one after the other.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	engine *amm.Engine
	store  state.Store
	unlock state.Unlock
	pg     *postgres.Store
}

// run wraps a command body with config, logging and state load. When
// persist is set the engine state is saved after the body.
func run(persist bool, body func(ctx context.Context, cmd *cobra.Command, s *session) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.close()

		out, err := body(ctx, cmd, s)
		if persist {
			// Rejected operations leave the engine unchanged apart from
			// dropping expired requests, so the state is saved either way.
			if saveErr := s.save(ctx); saveErr != nil {
				return errors.Join(err, saveErr)
			}
		}
		if err != nil {
			s.logger.Error("command failed",
				zap.String("command", cmd.CommandPath()),
				zap.String("class", amm.Classify(err).String()),
				zap.Error(err),
			)
			return err
		}
		if out == nil {
			return nil
		}
		return printJSON(cmd.OutOrStdout(), out)
	}
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger}
	sinks := storage.MultiSink{storage.NewJournalStorage(cfg.Journal)}

	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN, postgres.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.RetryBackoff,
		})
		if err != nil {
			logger.Sync()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			logger.Sync()
			return nil, err
		}
		s.pg = pg
		s.store = &state.DBStore{Store: pg, Name: cfg.StateName}
		sinks = append(sinks, pg)
	} else {
		s.store = &state.FileStore{Path: cfg.StateFile}
	}

	s.engine = amm.NewEngine(nil, amm.Options{
		Logger: logger,
		Sink:   sinks,
		Impact: amm.ImpactThresholds{
			SmallBps: cfg.Impact.SmallBps,
			LargeBps: cfg.Impact.LargeBps,
		},
	})

	if err := s.lock(ctx); err != nil {
		s.close()
		return nil, err
	}

	st, ok, err := s.store.Load(ctx)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("load state: %w", err)
	}
	if ok {
		if err := s.engine.Restore(st); err != nil {
			s.close()
			return nil, fmt.Errorf("restore state: %w", err)
		}
	}

	logger.Debug("session open",
		zap.String("state_file", cfg.StateFile),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("restored", ok),
	)
	return s, nil
}

func (s *session) lock(ctx context.Context) error {
	if s.cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LockTimeout)
		defer cancel()
	}
	unlock, err := s.store.Lock(ctx)
	if err != nil {
		return err
	}
	s.unlock = unlock
	return nil
}

func (s *session) save(ctx context.Context) error {
	st := s.engine.Export()
	if err := s.store.Save(ctx, st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if s.pg != nil {
		if err := s.pg.UpsertPools(ctx, slices.Collect(s.engine.Pools())); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
	}
	return nil
}

func (s *session) close() {
	if s.unlock != nil {
		if err := s.unlock(); err != nil {
			s.logger.Warn("release state lock", zap.Error(err))
		}
		s.unlock = nil
	}
	if s.pg != nil {
		s.pg.Close()
	}
	s.logger.Sync()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func amountFlag(cmd *cobra.Command, name string) (fixed.Amount, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return fixed.Zero(), nil
	}
	a, err := fixed.ParseAmount(raw)
	if err != nil {
		return fixed.Amount{}, fmt.Errorf("--%s: %w", name, err)
	}
	return a, nil
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
