package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mnemo-dev/mnemo/lifecycle"
	"github.com/mnemo-dev/mnemo/store"
	"github.com/mnemo-dev/mnemo/tenant"
)

// ErrReadOnly is returned for mutations the read-only variant refuses.
var ErrReadOnly = errors.New("document set is read-only")

// Result summarizes one reconciliation pass. A pass over an unchanged
// tree reports zero actions.
type Result struct {
	FilesScanned int
	Added        int
	Updated      int
	Deleted      int
	Failed       int
	Duration     time.Duration
}

// Reconciler brings the store in line with disk: it indexes files the
// store has never seen, re-indexes files whose hash drifted, and removes
// records whose file is gone. Runs are idempotent and safe to overlap
// with live watcher events, since both paths converge on the same
// hash comparison.
type Reconciler struct {
	manager  *lifecycle.Manager
	store    store.Store
	scanner  *Scanner
	tenant   tenant.Context
	readOnly bool
	logger   zerolog.Logger
}

func New(manager *lifecycle.Manager, s store.Store, scanner *Scanner, tn tenant.Context, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		manager: manager,
		store:   s,
		scanner: scanner,
		tenant:  tn,
		logger:  logger,
	}
}

// NewReadOnly builds the variant for external document sets: the set is
// mirrored into the store but its records refuse promotion changes.
func NewReadOnly(manager *lifecycle.Manager, s store.Store, scanner *Scanner, tn tenant.Context, logger zerolog.Logger) *Reconciler {
	r := New(manager, s, scanner, tn, logger)
	r.readOnly = true
	return r
}

// Scanner exposes the reconciler's path filter for watcher wiring.
func (r *Reconciler) Scanner() *Scanner {
	return r.scanner
}

// Promote changes a document's promotion level. The read-only variant
// refuses, since an external set's curation lives with its owner.
func (r *Reconciler) Promote(ctx context.Context, documentID string, level store.PromotionLevel) error {
	if r.readOnly {
		return ErrReadOnly
	}
	if !level.Valid() {
		return errors.New("invalid promotion level: " + string(level))
	}
	return r.store.SetPromotionLevel(ctx, r.tenant, documentID, level)
}

// Run executes one reconciliation pass.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	files, err := r.scanner.Scan()
	if err != nil {
		return nil, err
	}

	indexed, err := r.store.ListDocuments(ctx, r.tenant)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]store.Document, len(indexed))
	for _, doc := range indexed {
		byPath[doc.RelativePath] = doc
	}

	result := &Result{FilesScanned: len(files)}

	for _, f := range files {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		existing, known := byPath[f.RelativePath]
		delete(byPath, f.RelativePath)

		if known && existing.ContentHash == f.ContentHash {
			continue
		}

		res := r.manager.Update(ctx, f.RelativePath)
		switch {
		case res.Skipped:
			// A live watcher event got here first.
		case !res.Success:
			result.Failed++
			r.logger.Warn().
				Str("path", f.RelativePath).
				Str("code", string(res.ErrorCode)).
				Str("error", res.ErrorMessage).
				Msg("reconcile item failed")
		case known:
			result.Updated++
		default:
			result.Added++
		}
	}

	// Whatever is left in byPath has no file behind it anymore.
	if len(byPath) > 0 {
		orphans := make([]string, 0, len(byPath))
		for _, doc := range byPath {
			orphans = append(orphans, doc.ID)
		}
		deleted, itemErrs, err := r.store.BulkDelete(ctx, r.tenant, orphans)
		if err != nil {
			return nil, err
		}
		result.Deleted = deleted
		result.Failed += len(itemErrs)
		for _, ie := range itemErrs {
			r.logger.Warn().
				Str("document_id", ie.DocumentID).
				Err(ie.Err).
				Msg("failed to remove orphaned record")
		}
	}

	result.Duration = time.Since(start)
	r.logger.Info().
		Int("scanned", result.FilesScanned).
		Int("added", result.Added).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("reconciliation complete")

	return result, nil
}
