package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	cx INTEGER NOT NULL,
	cy INTEGER NOT NULL,
	data BLOB NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	PRIMARY KEY (cx, cy)
);
CREATE TABLE IF NOT EXISTS world_meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	data BLOB NOT NULL
);`

// SQLiteStore хранит записи чанков в файле SQLite (чистый Go драйвер modernc.org/sqlite)
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore открывает базу dataPath/world.db и создаёт схему
func NewSQLiteStore(dataPath string) (*SQLiteStore, error) {
	if dataPath == "" {
		return nil, fmt.Errorf("пустой путь к базе SQLite")
	}
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("создание каталога %s: %w", dataPath, err)
	}

	dsn := filepath.Join(dataPath, "world.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть SQLite: %w", err)
	}
	// Один писатель: SQLite не любит конкурентные транзакции записи
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("создание схемы SQLite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveChunk сохраняет запись чанка
func (s *SQLiteStore) SaveChunk(ctx context.Context, snap *world.ChunkSnapshot) error {
	data, err := EncodeChunk(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO chunks (cx, cy, data) VALUES (?, ?, ?)
ON CONFLICT (cx, cy) DO UPDATE SET data = excluded.data,
	updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		snap.Coords.X, snap.Coords.Y, data)
	if err != nil {
		return fmt.Errorf("ошибка сохранения чанка %v в SQLite: %w", snap.Coords, err)
	}
	return nil
}

// LoadChunk загружает запись чанка
func (s *SQLiteStore) LoadChunk(ctx context.Context, coords vec.Vec2) (*world.ChunkSnapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM chunks WHERE cx = ? AND cy = ?`, coords.X, coords.Y).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения чанка %v из SQLite: %w", coords, err)
	}
	return DecodeChunk(data)
}

// DeleteChunk удаляет запись чанка
func (s *SQLiteStore) DeleteChunk(ctx context.Context, coords vec.Vec2) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE cx = ? AND cy = ?`, coords.X, coords.Y); err != nil {
		return fmt.Errorf("ошибка удаления чанка %v из SQLite: %w", coords, err)
	}
	return nil
}

// SaveMeta сохраняет метаданные мира
func (s *SQLiteStore) SaveMeta(ctx context.Context, meta *world.WorldMeta) error {
	data, err := EncodeMeta(meta)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO world_meta (id, data) VALUES (1, ?)
ON CONFLICT (id) DO UPDATE SET data = excluded.data`, data)
	if err != nil {
		return fmt.Errorf("ошибка сохранения метаданных в SQLite: %w", err)
	}
	return nil
}

// LoadMeta загружает метаданные мира
func (s *SQLiteStore) LoadMeta(ctx context.Context) (*world.WorldMeta, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM world_meta WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMetaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения метаданных из SQLite: %w", err)
	}
	return DecodeMeta(data)
}

// Count возвращает количество сохранённых чанков
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Close закрывает базу
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
