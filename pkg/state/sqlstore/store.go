// Package sqlstore persists session documents in a SQL table through gorm.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/goliatone/go-rased/pkg/state"
)

// Document is one stored slot.
type Document struct {
	Key        string         `gorm:"primaryKey;size:255"`
	Data       datatypes.JSON `gorm:"not null"`
	SnapshotID string         `gorm:"size:64"`
	ETag       string         `gorm:"size:64"`
	Extra      datatypes.JSON
	UpdatedAt  time.Time
}

func (Document) TableName() string { return "rased_documents" }

// Open connects to driver ("sqlite" or "postgres") and migrates the table.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the documents table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

// Store implements state.Store on a gorm connection.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Load(ctx context.Context, ref state.Ref) ([]byte, state.Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, state.Meta{}, false, err
	}
	var doc Document
	err = s.db.WithContext(ctx).Where("key = ?", key).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, state.Meta{}, false, nil
	}
	if err != nil {
		return nil, state.Meta{}, false, fmt.Errorf("sqlstore: load %q: %w", key, err)
	}
	meta, err := doc.meta()
	if err != nil {
		return nil, state.Meta{}, false, err
	}
	return []byte(doc.Data), meta, true, nil
}

func (s *Store) Save(ctx context.Context, ref state.Ref, data []byte, meta state.Meta) (state.Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return state.Meta{}, err
	}
	var saved state.Meta
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("key = ?", key).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		default:
			if err := state.CheckETag(meta.ETag, existing.ETag); err != nil {
				return err
			}
		}

		saved = state.Stamp(meta, data, s.now())
		doc := Document{
			Key:        key,
			Data:       datatypes.JSON(append([]byte(nil), data...)),
			SnapshotID: saved.SnapshotID,
			ETag:       saved.ETag,
			UpdatedAt:  saved.UpdatedAt,
		}
		if len(saved.Extra) > 0 {
			extra, err := json.Marshal(saved.Extra)
			if err != nil {
				return err
			}
			doc.Extra = datatypes.JSON(extra)
		}
		return tx.Save(&doc).Error
	})
	if err != nil {
		if errors.Is(err, state.ErrETagMismatch) {
			return state.Meta{}, err
		}
		return state.Meta{}, fmt.Errorf("sqlstore: save %q: %w", key, err)
	}
	return saved, nil
}

func (s *Store) Delete(ctx context.Context, ref state.Ref) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&Document{}).Error; err != nil {
		return fmt.Errorf("sqlstore: delete %q: %w", key, err)
	}
	return nil
}

func (d Document) meta() (state.Meta, error) {
	meta := state.Meta{SnapshotID: d.SnapshotID, ETag: d.ETag, UpdatedAt: d.UpdatedAt}
	if len(d.Extra) > 0 {
		if err := json.Unmarshal(d.Extra, &meta.Extra); err != nil {
			return state.Meta{}, fmt.Errorf("sqlstore: decode meta of %q: %w", d.Key, err)
		}
	}
	return meta, nil
}
