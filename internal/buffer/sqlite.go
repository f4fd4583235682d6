package buffer

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/mattjperez/micro-rdk/internal/lib/logger/sl"
	"github.com/mattjperez/micro-rdk/internal/model"
)

// Fixed width so stored timestamps compare as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Buffer keeps envelopes the sink rejected until they can be resent.
type Buffer interface {
	// Store keeps the envelope under stream, the key of the collector that
	// produced it. Each stream holds at most capacity bytes; the oldest
	// envelopes of the stream are evicted first, but the newest one is always
	// kept.
	Store(ctx context.Context, envelope *model.Envelope, stream string, capacity int) error
	GetPending(ctx context.Context, limit int) ([]*model.Envelope, error)
	MarkSent(ctx context.Context, ids []string) error
	Cleanup(ctx context.Context, maxAge time.Duration) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

type SQLiteBuffer struct {
	log *slog.Logger
	db  *sql.DB
}

func NewSQLiteBuffer(log *slog.Logger, dbPath string) (*SQLiteBuffer, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create buffer directory")
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return newSQLiteBuffer(log, db)
}

func newSQLiteBuffer(log *slog.Logger, db *sql.DB) (*SQLiteBuffer, error) {
	buf := &SQLiteBuffer{
		log: log,
		db:  db,
	}

	if err := buf.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return buf, nil
}

func (b *SQLiteBuffer) migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS buffer (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			stream TEXT NOT NULL,
			component_name TEXT NOT NULL,
			component_type TEXT NOT NULL,
			method TEXT NOT NULL,
			envelope_json TEXT NOT NULL,
			size INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_buffer_stream ON buffer(stream);
		CREATE INDEX IF NOT EXISTS idx_buffer_created_at ON buffer(created_at);
	`
	_, err := b.db.Exec(query)
	return err
}

func (b *SQLiteBuffer) Store(ctx context.Context, envelope *model.Envelope, stream string, capacity int) error {
	data, err := envelope.ToJSON()
	if err != nil {
		return errors.Wrap(err, "failed to marshal envelope")
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO buffer (id, stream, component_name, component_type, method, envelope_json, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		envelope.ID,
		stream,
		envelope.ComponentName,
		envelope.ComponentType,
		envelope.Method,
		string(data),
		len(data),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return errors.Wrap(err, "failed to store envelope")
	}

	evicted, err := evict(ctx, tx, stream, capacity)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	b.log.Debug("envelope stored in buffer",
		slog.String("id", envelope.ID),
		slog.String("stream", stream),
		slog.Int("evicted", evicted),
	)
	return nil
}

// evict drops the oldest envelopes of a stream until it fits in capacity.
func evict(ctx context.Context, tx *sql.Tx, stream string, capacity int) (int, error) {
	if capacity <= 0 {
		return 0, nil
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT seq, size FROM buffer
		WHERE stream = ?
		ORDER BY seq DESC
	`, stream)
	if err != nil {
		return 0, errors.Wrap(err, "failed to query stream")
	}

	var (
		total int
		stale []int64
		first = true
	)
	for rows.Next() {
		var seq int64
		var size int
		if err := rows.Scan(&seq, &size); err != nil {
			rows.Close()
			return 0, errors.Wrap(err, "failed to scan stream row")
		}
		total += size
		if total > capacity && !first {
			stale = append(stale, seq)
		}
		first = false
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, errors.Wrap(err, "failed to read stream")
	}
	rows.Close()

	for _, seq := range stale {
		if _, err := tx.ExecContext(ctx, "DELETE FROM buffer WHERE seq = ?", seq); err != nil {
			return 0, errors.Wrapf(err, "failed to evict envelope %d", seq)
		}
	}
	return len(stale), nil
}

func (b *SQLiteBuffer) GetPending(ctx context.Context, limit int) ([]*model.Envelope, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, envelope_json
		FROM buffer
		ORDER BY seq ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query pending envelopes")
	}
	defer rows.Close()

	var envelopes []*model.Envelope
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			b.log.Error("failed to scan row", sl.Err(err))
			continue
		}

		envelope, err := model.EnvelopeFromJSON([]byte(data))
		if err != nil {
			b.log.Error("failed to unmarshal envelope", slog.String("id", id), sl.Err(err))
			continue
		}
		envelopes = append(envelopes, envelope)
	}

	return envelopes, rows.Err()
}

func (b *SQLiteBuffer) MarkSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM buffer WHERE id = ?")
	if err != nil {
		return errors.Wrap(err, "failed to prepare statement")
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return errors.Wrapf(err, "failed to delete envelope %s", id)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	b.log.Debug("marked envelopes as sent", slog.Int("count", len(ids)))
	return nil
}

func (b *SQLiteBuffer) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge).Format(timeLayout)

	result, err := b.db.ExecContext(ctx, "DELETE FROM buffer WHERE created_at < ?", cutoff)
	if err != nil {
		return errors.Wrap(err, "failed to cleanup old envelopes")
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		b.log.Info("cleaned up old buffer entries", slog.Int64("deleted", deleted))
	}

	return nil
}

func (b *SQLiteBuffer) Count(ctx context.Context) (int64, error) {
	var count int64
	err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM buffer").Scan(&count)
	return count, errors.Wrap(err, "failed to count envelopes")
}

func (b *SQLiteBuffer) Close() error {
	return b.db.Close()
}
