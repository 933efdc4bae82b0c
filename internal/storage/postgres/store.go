package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityPortal/internal/model"
)

// Store provides Postgres persistence for operation history.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutOperations inserts or updates operation history records.
func (s *Store) PutOperations(records []model.OperationRecord) error {
	return s.PutOperationsCtx(context.Background(), records)
}

// PutOperationsCtx is PutOperations with an explicit context.
func (s *Store) PutOperationsCtx(ctx context.Context, records []model.OperationRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(`
			INSERT INTO operation_history (
				id, op, address, token_id, tx_hash, status, gas_used, error_class, error, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
			ON CONFLICT (id)
			DO UPDATE SET
				status = EXCLUDED.status,
				gas_used = EXCLUDED.gas_used,
				error_class = EXCLUDED.error_class,
				error = EXCLUDED.error,
				updated_at = now()
		`,
			record.ID,
			string(record.Op),
			record.Address,
			int64(record.TokenID),
			record.TxHash,
			string(record.Status),
			int64(record.GasUsed),
			record.ErrorClass,
			record.Error,
			record.CreatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LastOperation returns the most recent record for an address and op.
func (s *Store) LastOperation(ctx context.Context, address string, op model.Operation) (model.OperationRecord, bool, error) {
	var record model.OperationRecord
	var tokenID, gasUsed int64

	row := s.pool.QueryRow(ctx, `
		SELECT id, op, address, token_id, tx_hash, status, gas_used, error_class, error, created_at
		FROM operation_history
		WHERE address = $1 AND op = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, address, string(op))

	err := row.Scan(&record.ID, &record.Op, &record.Address, &tokenID, &record.TxHash,
		&record.Status, &gasUsed, &record.ErrorClass, &record.Error, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.OperationRecord{}, false, nil
		}
		return model.OperationRecord{}, false, err
	}

	record.TokenID = uint64(tokenID)
	record.GasUsed = uint64(gasUsed)
	return record, true, nil
}
