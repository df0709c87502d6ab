package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
)

// chunkRow строка таблицы world_chunks
type chunkRow struct {
	WorldID   string `gorm:"primaryKey;size:36"`
	ChunkX    int64  `gorm:"primaryKey"`
	ChunkY    int64  `gorm:"primaryKey"`
	Data      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (chunkRow) TableName() string { return "world_chunks" }

// metaRow строка таблицы world_meta
type metaRow struct {
	Namespace string `gorm:"primaryKey;size:128"`
	Data      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (metaRow) TableName() string { return "world_meta" }

// PostgresStore хранит записи чанков в PostgreSQL через GORM.
// Несколько миров могут делить одну базу: строки разделены по namespace.
type PostgresStore struct {
	db        *gorm.DB
	namespace string
}

// OpenPostgres открывает подключение GORM к PostgreSQL
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// NewPostgresStore создаёт хранилище поверх db и применяет миграции.
// namespace отделяет записи разных миров в одной базе.
func NewPostgresStore(ctx context.Context, db *gorm.DB, namespace string) (*PostgresStore, error) {
	if namespace == "" {
		namespace = "default"
	}
	if err := db.WithContext(ctx).AutoMigrate(&chunkRow{}, &metaRow{}); err != nil {
		return nil, fmt.Errorf("миграция схемы PostgreSQL: %w", err)
	}
	return &PostgresStore{db: db, namespace: namespace}, nil
}

// SaveChunk сохраняет запись чанка
func (s *PostgresStore) SaveChunk(ctx context.Context, snap *world.ChunkSnapshot) error {
	data, err := EncodeChunk(snap)
	if err != nil {
		return err
	}
	row := chunkRow{
		WorldID:   s.namespace,
		ChunkX:    int64(snap.Coords.X),
		ChunkY:    int64(snap.Coords.Y),
		Data:      data,
		UpdatedAt: time.Now(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "world_id"}, {Name: "chunk_x"}, {Name: "chunk_y"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("ошибка сохранения чанка %v в PostgreSQL: %w", snap.Coords, err)
	}
	return nil
}

// LoadChunk загружает запись чанка
func (s *PostgresStore) LoadChunk(ctx context.Context, coords vec.Vec2) (*world.ChunkSnapshot, error) {
	var row chunkRow
	err := s.db.WithContext(ctx).
		Where(map[string]any{
			"world_id": s.namespace,
			"chunk_x":  int64(coords.X),
			"chunk_y":  int64(coords.Y),
		}).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения чанка %v из PostgreSQL: %w", coords, err)
	}
	return DecodeChunk(row.Data)
}

// DeleteChunk удаляет запись чанка
func (s *PostgresStore) DeleteChunk(ctx context.Context, coords vec.Vec2) error {
	err := s.db.WithContext(ctx).
		Where("world_id = ? AND chunk_x = ? AND chunk_y = ?", s.namespace, int64(coords.X), int64(coords.Y)).
		Delete(&chunkRow{}).Error
	if err != nil {
		return fmt.Errorf("ошибка удаления чанка %v из PostgreSQL: %w", coords, err)
	}
	return nil
}

// SaveMeta сохраняет метаданные мира
func (s *PostgresStore) SaveMeta(ctx context.Context, meta *world.WorldMeta) error {
	data, err := EncodeMeta(meta)
	if err != nil {
		return err
	}
	row := metaRow{Namespace: s.namespace, Data: data, UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("ошибка сохранения метаданных в PostgreSQL: %w", err)
	}
	return nil
}

// LoadMeta загружает метаданные мира
func (s *PostgresStore) LoadMeta(ctx context.Context) (*world.WorldMeta, error) {
	var row metaRow
	err := s.db.WithContext(ctx).Where("namespace = ?", s.namespace).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMetaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения метаданных из PostgreSQL: %w", err)
	}
	return DecodeMeta(row.Data)
}

// Close закрывает пул соединений
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
