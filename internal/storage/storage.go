// Package storage persists the robot configuration cache and the WiFi
// network settings across restarts.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/mattjperez/micro-rdk/internal/robotconfig"
)

var ErrNoRobotConfiguration = errors.New("no robot configuration stored")

type SQLiteStore struct {
	log *slog.Logger
	db  *sql.DB
}

func NewSQLiteStore(log *slog.Logger, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create storage directory")
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	s := &SQLiteStore{log: log, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS robot_config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			revision TEXT NOT NULL,
			config_json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS network_settings (
			position INTEGER PRIMARY KEY,
			ssid TEXT NOT NULL,
			password TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}

func (s *SQLiteStore) StoreRobotConfiguration(ctx context.Context, cfg *robotconfig.RobotConfig) error {
	if cfg == nil {
		return errors.New("nil robot configuration")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal robot configuration")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO robot_config (id, revision, config_json, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			revision = excluded.revision,
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`, cfg.Revision, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return errors.Wrap(err, "failed to store robot configuration")
	}

	s.log.Debug("robot configuration stored", slog.String("revision", cfg.Revision))
	return nil
}

// RobotConfiguration returns the cached configuration or
// ErrNoRobotConfiguration.
func (s *SQLiteStore) RobotConfiguration(ctx context.Context) (*robotconfig.RobotConfig, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT config_json FROM robot_config WHERE id = 1").Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRobotConfiguration
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read robot configuration")
	}

	var cfg robotconfig.RobotConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal robot configuration")
	}
	return &cfg, nil
}

func (s *SQLiteStore) ResetRobotConfiguration(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM robot_config"); err != nil {
		return errors.Wrap(err, "failed to reset robot configuration")
	}
	s.log.Info("robot configuration cache cleared")
	return nil
}

func (s *SQLiteStore) GetNetworkSettings(ctx context.Context) ([]robotconfig.NetworkSetting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ssid, password, priority FROM network_settings ORDER BY position ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query network settings")
	}
	defer rows.Close()

	settings := []robotconfig.NetworkSetting{}
	for rows.Next() {
		var n robotconfig.NetworkSetting
		if err := rows.Scan(&n.SSID, &n.Password, &n.Priority); err != nil {
			return nil, errors.Wrap(err, "failed to scan network setting")
		}
		settings = append(settings, n)
	}
	return settings, errors.Wrap(rows.Err(), "failed to read network settings")
}

// StoreNetworkSettings replaces the stored list.
func (s *SQLiteStore) StoreNetworkSettings(ctx context.Context, settings []robotconfig.NetworkSetting) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM network_settings"); err != nil {
		return errors.Wrap(err, "failed to clear network settings")
	}

	for i, n := range settings {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO network_settings (position, ssid, password, priority) VALUES (?, ?, ?, ?)",
			i, n.SSID, n.Password, n.Priority,
		); err != nil {
			return errors.Wrapf(err, "failed to store network %q", n.SSID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	s.log.Info("network settings stored", slog.Int("count", len(settings)))
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
