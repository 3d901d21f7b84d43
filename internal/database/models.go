package database

import (
	"database/sql"
	"errors"
	"fmt"

	"blockchain-explorer/internal/models"
	"blockchain-explorer/internal/normalize"
)

var errNotInitialized = errors.New("database not initialized")

// ArchiveEmitter appends every newly observed transaction to the archive
// table. The archive is write-only; nothing is loaded back on startup.
type ArchiveEmitter struct{}

func (ArchiveEmitter) EmitEvent(event models.TransactionEvent) error {
	if err := SaveTransaction(event); err != nil {
		return fmt.Errorf("failed to archive transaction %s: %w", event.TxHash, err)
	}
	return nil
}

// SaveTransaction saves a transaction to the database
func SaveTransaction(event models.TransactionEvent) error {
	if DB == nil {
		return errNotInitialized
	}

	_, err := DB.Exec(`
		INSERT INTO transactions (tx_hash, network, from_address, to_address, amount, status, gas, from_shard, to_shard, timestamp, explorer_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tx_hash, network) DO UPDATE SET status = EXCLUDED.status
	`, event.TxHash, event.Network.String(), nullable(event.From), nullable(event.To), amountValue(event.Amount),
		event.Status, event.Gas, event.FromShard, event.ToShard, timestampValue(event), nullable(event.ExplorerURL))
	return err
}

func nullable(s string) sql.NullString {
	if s == "" || s == normalize.Unknown {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// amountValue keeps the NUMERIC column NULL for the absent-amount sentinel.
func amountValue(amount string) sql.NullString {
	if amount == "" || amount == normalize.ZeroAmount {
		return sql.NullString{}
	}
	return sql.NullString{String: amount, Valid: true}
}

func timestampValue(event models.TransactionEvent) sql.NullTime {
	if event.Timestamp.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: event.Timestamp, Valid: true}
}
