package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pharmastock/internal/core/dates"
	"pharmastock/internal/core/tx"
	"pharmastock/internal/domain/ledger"
	"pharmastock/pkg/logger"
)

// DateStore reads and rewrites the date columns of the ledger tables.
type DateStore interface {
	ListDateFields(ctx context.Context, kind ledger.Kind) ([]ledger.DateFields, error)
	UpdateDateFields(ctx context.Context, kind ledger.Kind, row ledger.DateFields) error
}

// Result counts what happened to one ledger table.
type Result struct {
	Kind        ledger.Kind
	Scanned     int
	Converted   int
	Unparseable int
}

// errDryRun rolls back the conversion transaction.
var errDryRun = errors.New("dry run")

// Converter rewrites stored expiries to MM-YYYY and entry dates to YYYY-MM-DD.
type Converter struct {
	store DateStore
	txm   tx.Manager
	dates *dates.Normalizer
	log   *logger.Logger
}

// NewConverter creates a converter over store.
func NewConverter(store DateStore, txm tx.Manager, normalizer *dates.Normalizer, log *logger.Logger) *Converter {
	return &Converter{store: store, txm: txm, dates: normalizer, log: log}
}

// Run converts all four ledgers in one transaction. With dryRun the
// transaction is rolled back after every change has been logged.
func (c *Converter) Run(ctx context.Context, dryRun bool) ([]Result, error) {
	var results []Result
	err := c.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		results = results[:0]
		for _, kind := range ledger.Kinds {
			res, err := c.convert(ctx, kind, dryRun)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		if dryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, err
	}
	return results, nil
}

func (c *Converter) convert(ctx context.Context, kind ledger.Kind, dryRun bool) (Result, error) {
	res := Result{Kind: kind}
	rows, err := c.store.ListDateFields(ctx, kind)
	if err != nil {
		return res, err
	}

	for _, row := range rows {
		res.Scanned++
		next, ok := c.normalizeRow(kind, row)
		if !ok {
			res.Unparseable++
		}
		if sameDates(row, next) {
			continue
		}

		res.Converted++
		c.log.Infow("date fields converted",
			"kind", kind,
			"id", row.ID,
			"expiry_from", row.Expiry,
			"expiry_to", next.Expiry,
			"entry_date_from", deref(row.EntryDate),
			"entry_date_to", deref(next.EntryDate),
			"dry_run", dryRun,
		)
		if dryRun {
			continue
		}
		if err := c.store.UpdateDateFields(ctx, kind, next); err != nil {
			return res, fmt.Errorf("convert %s %s: %w", kind, row.ID, err)
		}
	}
	return res, nil
}

// normalizeRow returns the converted row. A value that cannot be parsed is
// kept as stored and reported; ok is false when that happened.
func (c *Converter) normalizeRow(kind ledger.Kind, row ledger.DateFields) (ledger.DateFields, bool) {
	next := row
	ok := true

	if expiry, err := c.dates.NormalizeExpiry(row.Expiry); err != nil {
		ok = false
		c.log.Warnw("unparseable expiry left unchanged", "kind", kind, "id", row.ID, "expiry", row.Expiry, "error", err)
	} else {
		next.Expiry = expiry
	}

	if row.EntryDate != nil && strings.TrimSpace(*row.EntryDate) != "" {
		d, err := c.dates.Parse("entry_date", *row.EntryDate)
		if err != nil {
			ok = false
			c.log.Warnw("unparseable entry date left unchanged", "kind", kind, "id", row.ID, "entry_date", *row.EntryDate, "error", err)
		} else {
			stored := d.FormatStorage()
			next.EntryDate = &stored
		}
	}
	return next, ok
}

func sameDates(a, b ledger.DateFields) bool {
	if a.Expiry != b.Expiry {
		return false
	}
	if (a.EntryDate == nil) != (b.EntryDate == nil) {
		return false
	}
	return a.EntryDate == nil || *a.EntryDate == *b.EntryDate
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
