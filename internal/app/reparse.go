package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"swapwatch/internal/fetcher"
	"swapwatch/internal/storage"
)

// ReparseResult summarises a reparse run.
type ReparseResult struct {
	Stored   int64
	Existing int64
	Failed   int64
}

// Reparse 通过外部解析器重新解析指定签名并写入交易表。
func (a *App) Reparse(ctx context.Context, opts ReparseOptions) error {
	if len(opts.Signatures) == 0 {
		return errors.New("至少需要一个签名")
	}
	for _, sig := range opts.Signatures {
		if err := validateSignature(sig); err != nil {
			return err
		}
	}

	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if c.parser == nil {
		return errors.New("shyft.api_key 未配置，无法重新解析")
	}

	var store storage.TradeStore = c.store
	if opts.DryRun {
		a.Logger.Warn().Msg("reparse dry-run：不会写入数据库")
		store = nil
	}

	res := reparse(ctx, c.parser, store, opts, a.Logger)
	a.Logger.Info().
		Int64("stored", res.Stored).
		Int64("existing", res.Existing).
		Int64("failed", res.Failed).
		Msg("reparse 完成")
	if res.Failed > 0 {
		return fmt.Errorf("%d 个签名解析失败，请检查日志", res.Failed)
	}
	return nil
}

// reparse fans signatures out over a bounded worker pool. A nil store means dry run.
func reparse(ctx context.Context, parser fetcher.TxParser, store storage.TradeStore, opts ReparseOptions, logger zerolog.Logger) ReparseResult {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	var stored, existing, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, sig := range opts.Signatures {
		sig := sig
		g.Go(func() error {
			log := logger.With().Str("signature", sig).Logger()
			t, err := parser.ParseTrade(gctx, sig)
			if err != nil {
				failed.Add(1)
				log.Error().Err(err).Msg("parse failed")
				return nil
			}
			if store == nil {
				log.Info().
					Str("account", t.Account).
					Str("token_in", t.TokenInAddress).
					Str("amount_in", t.TokenInAmount.String()).
					Str("token_out", t.TokenOutAddress).
					Str("amount_out", t.TokenOutAmount.String()).
					Msg("parsed (dry run)")
				return nil
			}
			inserted, err := store.InsertTrade(gctx, t)
			if err != nil {
				failed.Add(1)
				log.Error().Err(err).Msg("store failed")
				return nil
			}
			if inserted {
				stored.Add(1)
			} else {
				existing.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return ReparseResult{Stored: stored.Load(), Existing: existing.Load(), Failed: failed.Load()}
}

func validateSignature(sig string) error {
	raw, err := base58.Decode(sig)
	if err != nil {
		return fmt.Errorf("signature %q is not base58: %w", sig, err)
	}
	if len(raw) != 64 {
		return fmt.Errorf("signature %q decodes to %d bytes, want 64", sig, len(raw))
	}
	return nil
}
