// Package store persists exam sessions and their violations in SQLite.
package store

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Session statuses.
const (
	StatusActive     = "active"
	StatusCompleted  = "completed"
	StatusTerminated = "terminated"
)

// ExamSession is one monitored exam run.
type ExamSession struct {
	ID             string `gorm:"primaryKey"`
	StartedAt      time.Time
	EndedAt        *time.Time
	Status         string `gorm:"index"`
	ViolationCount int
}

// Violation is one emitted alert, persisted for audit.
type Violation struct {
	ID          uint   `gorm:"primaryKey"`
	SessionID   string `gorm:"index"`
	Kind        string `gorm:"index"`
	Message     string
	Confidence  float32
	TimestampMs int64
	CreatedAt   time.Time
}

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// Open opens or creates the SQLite database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}

	if err := db.AutoMigrate(&ExamSession{}, &Violation{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate schema")
	}

	return &Store{db: db}, nil
}

// BeginSession records a new active exam session.
func (s *Store) BeginSession(id string, startedAt time.Time) error {
	session := ExamSession{
		ID:        id,
		StartedAt: startedAt,
		Status:    StatusActive,
	}
	if err := s.db.Create(&session).Error; err != nil {
		return errors.Wrap(err, "failed to create session")
	}
	return nil
}

// SaveViolation persists one violation and bumps the session counter in the
// same transaction. It returns the session's violation count after the save.
func (s *Store) SaveViolation(v *Violation) (int, error) {
	var count int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		if err := tx.Model(&ExamSession{}).
			Where("id = ?", v.SessionID).
			UpdateColumn("violation_count", gorm.Expr("violation_count + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&ExamSession{}).
			Where("id = ?", v.SessionID).
			Select("violation_count").
			Scan(&count).Error
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to save violation")
	}
	return count, nil
}

// RecentViolations returns the latest violations for a session, newest first.
func (s *Store) RecentViolations(sessionID string, limit int) ([]Violation, error) {
	var violations []Violation
	err := s.db.Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&violations).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query violations")
	}
	return violations, nil
}

// ViolationCount returns the persisted violation count for a session.
func (s *Store) ViolationCount(sessionID string) (int, error) {
	var session ExamSession
	if err := s.db.First(&session, "id = ?", sessionID).Error; err != nil {
		return 0, errors.Wrapf(err, "failed to load session %s", sessionID)
	}
	return session.ViolationCount, nil
}

// GetSession loads one session by ID.
func (s *Store) GetSession(sessionID string) (*ExamSession, error) {
	var session ExamSession
	if err := s.db.First(&session, "id = ?", sessionID).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to load session %s", sessionID)
	}
	return &session, nil
}

// EndSession marks a session finished with the given status.
func (s *Store) EndSession(sessionID, status string, endedAt time.Time) error {
	err := s.db.Model(&ExamSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":   status,
			"ended_at": endedAt,
		}).Error
	if err != nil {
		return errors.Wrapf(err, "failed to end session %s", sessionID)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
