// Package datastore keeps the backend credential on the device in SQLite.
package datastore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

const slowQueryThreshold = 200 * time.Millisecond

// ErrNoCredential is returned when nobody is logged in
var ErrNoCredential = errors.NewStd("no stored credential")

// Store persists credentials
type Store struct {
	db  *gorm.DB
	log logger.Logger
}

// Open opens or creates the database at path and migrates the schema.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Global().Module("datastore")
	}
	if path == "" {
		return nil, validationError("database path is required", "path", path)
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, dbError(err, "create_directory", "path", path)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowQueryThreshold),
	})
	if err != nil {
		return nil, dbError(err, "open", "path", path)
	}
	if path == MemoryPath {
		// each pooled connection would get its own empty database
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err := db.AutoMigrate(&Credential{}); err != nil {
		return nil, dbError(err, "migrate")
	}

	log.Debug("credential store opened", logger.String("path", path))
	return &Store{db: db, log: log}, nil
}

// Close closes the database
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbError(err, "close")
	}
	return sqlDB.Close()
}

// SaveCredential stores c as the current credential, replacing any other.
func (s *Store) SaveCredential(ctx context.Context, c *Credential) error {
	if c == nil || c.Username == "" || c.AccessToken == "" {
		return validationError("credential requires a username and access token", "username", credentialName(c))
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username <> ?", c.Username).Delete(&Credential{}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "name", "email", "role", "access_token", "token_type", "expiry", "updated_at",
			}),
		}).Create(c).Error
	})
	if err != nil {
		return dbError(err, "save_credential", "username", c.Username)
	}
	s.log.Info("credential saved",
		logger.String("username", c.Username),
		logger.String("role", c.Role),
		logger.Time("expiry", c.Expiry))
	return nil
}

// Current returns the stored credential, or ErrNoCredential.
func (s *Store) Current(ctx context.Context) (*Credential, error) {
	var c Credential
	err := s.db.WithContext(ctx).Order("updated_at DESC").First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(ErrNoCredential).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}
	if err != nil {
		return nil, dbError(err, "current_credential")
	}
	return &c, nil
}

// Clear removes every stored credential
func (s *Store) Clear(ctx context.Context) error {
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&Credential{})
	if res.Error != nil {
		return dbError(res.Error, "clear_credentials")
	}
	s.log.Info("credentials cleared", logger.Int64("rows", res.RowsAffected))
	return nil
}

func credentialName(c *Credential) string {
	if c == nil {
		return ""
	}
	return c.Username
}
