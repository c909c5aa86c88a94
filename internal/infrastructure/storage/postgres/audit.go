package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"pharmastock/internal/core/id"
	"pharmastock/internal/domain/ledger"
	"pharmastock/internal/domain/stock"
)

const stockAuditTable = "stock_audit"

var _ stock.AuditTrail = (*StockAudit)(nil)

// CompressionAlgo specifies the compression algorithm used for snapshots.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the snapshot size above which zstd is used.
const DefaultCompressThreshold = 1024

// auditRow is one row of stock_audit.
type auditRow struct {
	ID                 id.ID           `db:"id"`
	EntryKind          string          `db:"entry_kind"`
	EntryID            id.ID           `db:"entry_id"`
	Action             string          `db:"action"`
	ProductID          id.ID           `db:"product_id"`
	BatchNo            string          `db:"batch_no"`
	Quantity           int64           `db:"quantity"`
	PreviousStock      int64           `db:"previous_stock"`
	NewStock           int64           `db:"new_stock"`
	UserID             string          `db:"user_id"`
	Snapshot           json.RawMessage `db:"snapshot"`
	SnapshotCompressed []byte          `db:"snapshot_compressed"`
	CompressionAlgo    CompressionAlgo `db:"compression_algo"`
	CreatedAt          time.Time       `db:"created_at"`
}

var auditColumns = ExtractDBColumns[auditRow]()

// StockAudit stores the stock audit trail. Snapshots larger than the
// threshold are stored zstd-compressed.
type StockAudit struct {
	txManager         *TxManager
	builder           squirrel.StatementBuilderType
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewStockAudit creates a new stock audit trail.
func NewStockAudit(txManager *TxManager, compressThreshold int) (*StockAudit, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if compressThreshold <= 0 {
		compressThreshold = DefaultCompressThreshold
	}

	return &StockAudit{
		txManager:         txManager,
		builder:           squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: compressThreshold,
	}, nil
}

// RecordStockChange inserts one audit row.
func (s *StockAudit) RecordStockChange(ctx context.Context, change *stock.StockChange) error {
	row, err := s.toRow(change)
	if err != nil {
		return err
	}

	sql, args, err := s.builder.Insert(stockAuditTable).
		Columns(auditColumns...).
		Values(Pick(StructToMap(row), auditColumns)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert stock audit: %w", err)
	}
	return nil
}

// History retrieves the audit trail of one ledger row, newest first.
func (s *StockAudit) History(ctx context.Context, kind ledger.Kind, entryID id.ID, limit int) ([]stock.StockChange, error) {
	sql, args, err := s.builder.Select(auditColumns...).
		From(stockAuditTable).
		Where(squirrel.Eq{"entry_kind": string(kind), "entry_id": entryID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []auditRow
	if err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	changes := make([]stock.StockChange, 0, len(rows))
	for _, row := range rows {
		change, err := s.fromRow(row)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// Cleanup deletes audit rows older than retention and returns how many went.
func (s *StockAudit) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)

	sql, args, err := s.builder.Delete(stockAuditTable).
		Where(squirrel.Lt{"created_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("cleanup stock audit: %w", err)
	}
	return result.RowsAffected(), nil
}

func (s *StockAudit) toRow(change *stock.StockChange) (auditRow, error) {
	row := auditRow{
		ID:              change.ID,
		EntryKind:       string(change.Kind),
		EntryID:         change.EntryID,
		Action:          string(change.Action),
		ProductID:       change.ProductID,
		BatchNo:         change.BatchNo,
		Quantity:        change.Quantity,
		PreviousStock:   change.PreviousStock,
		NewStock:        change.NewStock,
		UserID:          change.UserID,
		CompressionAlgo: CompressionNone,
		CreatedAt:       change.CreatedAt,
	}
	if id.IsNil(row.ID) {
		row.ID = id.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	if change.Snapshot == nil {
		return row, nil
	}
	snapshot, err := json.Marshal(change.Snapshot)
	if err != nil {
		return row, fmt.Errorf("marshal snapshot: %w", err)
	}
	if len(snapshot) > s.compressThreshold {
		row.SnapshotCompressed = s.encoder.EncodeAll(snapshot, nil)
		row.CompressionAlgo = CompressionZstd
		return row, nil
	}
	row.Snapshot = snapshot
	return row, nil
}

func (s *StockAudit) fromRow(row auditRow) (stock.StockChange, error) {
	change := stock.StockChange{
		ID:            row.ID,
		EntryID:       row.EntryID,
		Kind:          ledger.Kind(row.EntryKind),
		Action:        stock.Action(row.Action),
		ProductID:     row.ProductID,
		BatchNo:       row.BatchNo,
		Quantity:      row.Quantity,
		PreviousStock: row.PreviousStock,
		NewStock:      row.NewStock,
		UserID:        row.UserID,
		CreatedAt:     row.CreatedAt,
	}

	snapshot := row.Snapshot
	if row.CompressionAlgo == CompressionZstd && len(row.SnapshotCompressed) > 0 {
		decompressed, err := s.decoder.DecodeAll(row.SnapshotCompressed, nil)
		if err != nil {
			return change, fmt.Errorf("decompress snapshot: %w", err)
		}
		snapshot = decompressed
	}

	if len(snapshot) > 0 {
		var e ledger.Entry
		if err := json.Unmarshal(snapshot, &e); err != nil {
			return change, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		change.Snapshot = &e
	}
	return change, nil
}
