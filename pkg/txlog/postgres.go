package txlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/farbod-bigdeli/banking-2pc/pkg/protocol"
)

const schema = `
CREATE TABLE IF NOT EXISTS tx_decisions (
	tx_id      TEXT PRIMARY KEY,
	decision   TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	decided_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresLog stores decisions in a tx_decisions table. It is the durable
// variant of the decision log; the coordinator survives a restart with its
// past decisions intact.
type PostgresLog struct {
	db *sql.DB
}

// OpenPostgres connects via the pgx stdlib driver and ensures the decision
// table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresLog, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure tx_decisions table: %w", err)
	}

	return &PostgresLog{db: db}, nil
}

// Close releases the underlying connection pool
func (l *PostgresLog) Close() error {
	return l.db.Close()
}

// Record inserts the decision; a later insert for the same transaction is a
// no-op, the first recorded decision wins.
func (l *PostgresLog) Record(ctx context.Context, txID string, decision protocol.Decision, reason string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO tx_decisions (tx_id, decision, reason) VALUES ($1, $2, $3)
		 ON CONFLICT (tx_id) DO NOTHING`,
		txID, string(decision), reason)
	return err
}

// Lookup returns the recorded decision for a transaction, if any
func (l *PostgresLog) Lookup(ctx context.Context, txID string) (Entry, bool, error) {
	var entry Entry
	var decision string

	row := l.db.QueryRowContext(ctx,
		`SELECT tx_id, decision, reason, decided_at FROM tx_decisions WHERE tx_id = $1`, txID)
	if err := row.Scan(&entry.TransactionID, &decision, &entry.Reason, &entry.DecidedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}

	entry.Decision = protocol.Decision(decision)
	return entry, true, nil
}
