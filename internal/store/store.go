// Package store persists users, cafes and comments through gorm.
//
// Uniqueness of user emails and cafe names is guarded twice: a lookup
// inside the write transaction gives a precise error on the common path,
// and the unique indexes settle concurrent writers. Both surface as
// ErrDuplicateEmail / ErrDuplicateName.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"cafelist/internal/config"
	"cafelist/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrDuplicateName  = errors.New("cafe name already taken")
	ErrUnknownAuthor  = errors.New("author does not exist")
)

// Store is the entity store. It is safe for concurrent use.
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig, logger *logrus.Logger) (*Store, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var (
		db  *gorm.DB
		err error
	)
	if cfg.UsePostgres() {
		logger.WithField("host", cfg.Host).Info("Connecting to PostgreSQL database")
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	} else {
		logger.WithField("path", cfg.Path).Info("Connecting to SQLite database")
		db, err = gorm.Open(sqlite.Open(sqliteDSN(cfg.Path)), gormCfg)
	}
	if err != nil {
		logger.WithError(err).Error("Failed to connect to the database")
		return nil, err
	}

	if !cfg.UsePostgres() {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// one writer at a time; SQLite would otherwise answer "database is locked"
		sqlDB.SetMaxOpenConns(1)
	}

	s := New(db, logger)
	if err := s.Migrate(); err != nil {
		return nil, err
	}

	logger.Info("Database connection successful")
	return s, nil
}

func sqliteDSN(path string) string {
	if path == ":memory:" {
		path = "file::memory:"
	}
	return path + "?_foreign_keys=on"
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, logger *logrus.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates or updates the users, cafe and comments tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&models.User{}, &models.Cafe{}, &models.Comment{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Ping verifies the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser inserts u and sets its ID.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", u.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateEmail
		}
		return tx.Omit(clause.Associations).Create(u).Error
	})
	return duplicateAs(err, ErrDuplicateEmail)
}

// UserByID returns the user with the given id or ErrNotFound.
func (s *Store) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UserByEmail returns the user with exactly this email or ErrNotFound.
func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UpdatePassword replaces the stored credential of a user.
func (s *Store) UpdatePassword(ctx context.Context, id uint, credential string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", credential)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCafes returns all cafes with their authors in insertion order.
func (s *Store) ListCafes(ctx context.Context) ([]models.Cafe, error) {
	var cafes []models.Cafe
	err := s.db.WithContext(ctx).
		Preload("Author").
		Order("id ASC").
		Find(&cafes).Error
	if err != nil {
		return nil, err
	}
	return cafes, nil
}

// CafeByID returns a cafe with its author, comments and comment authors.
func (s *Store) CafeByID(ctx context.Context, id uint) (*models.Cafe, error) {
	var c models.Cafe
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Comments.Author").
		First(&c, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// CreateCafe inserts c and sets its ID. c.AuthorID must reference an
// existing user, otherwise ErrUnknownAuthor is returned.
func (s *Store) CreateCafe(ctx context.Context, c *models.Cafe) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := nameTaken(tx, c.Name, 0); err != nil {
			return err
		}
		if err := userExists(tx, c.AuthorID); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(c).Error
	})
	return duplicateAs(err, ErrDuplicateName)
}

// UpdateCafe overwrites every column of the stored cafe with c.
func (s *Store) UpdateCafe(ctx context.Context, c *models.Cafe) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Cafe{}).Where("id = ?", c.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		if err := nameTaken(tx, c.Name, c.ID); err != nil {
			return err
		}
		if err := userExists(tx, c.AuthorID); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(c).Error
	})
	return duplicateAs(err, ErrDuplicateName)
}

// DeleteCafe removes a cafe and all of its comments in one transaction and
// reports how many comments went with it.
func (s *Store) DeleteCafe(ctx context.Context, id uint) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("coffe_id = ?", id).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected

		res = tx.Delete(&models.Cafe{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{"cafe_id": id, "comments": removed}).Debug("Cafe deleted")
	return removed, nil
}

// CreateComment inserts cm after checking that its cafe and author exist.
func (s *Store) CreateComment(ctx context.Context, cm *models.Comment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Cafe{}).Where("id = ?", cm.CafeID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		if err := userExists(tx, cm.AuthorID); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(cm).Error
	})
}

// CountComments returns the number of comments on a cafe.
func (s *Store) CountComments(ctx context.Context, cafeID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Comment{}).Where("coffe_id = ?", cafeID).Count(&n).Error
	return n, err
}

func nameTaken(tx *gorm.DB, name string, exceptID uint) error {
	q := tx.Model(&models.Cafe{}).Where("name = ?", name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicateName
	}
	return nil
}

func userExists(tx *gorm.DB, id uint) error {
	var n int64
	if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownAuthor
	}
	return nil
}

// duplicateAs maps a unique index violation to sentinel. It settles the
// writers that pass the pre-check at the same time.
func duplicateAs(err, sentinel error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return sentinel
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
