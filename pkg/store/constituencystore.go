package store

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/electdata/electbot-go/pkg/db/models"
)

// ConstituencyStore reads and updates canonical constituency rows. The
// pipeline never creates or deletes them.
type ConstituencyStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewConstituencyStore creates a ConstituencyStore on the given connection
func NewConstituencyStore(db *gorm.DB, logger *logrus.Logger) *ConstituencyStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &ConstituencyStore{db: db, logger: logger}
}

// FindByNumber returns the constituency with the given number in a state,
// or (nil, nil) when absent
func (s *ConstituencyStore) FindByNumber(ctx context.Context, number int, stateCode string) (*models.Constituency, error) {
	var c models.Constituency
	err := s.db.WithContext(ctx).
		Where("constituency_number = ? AND state_code = ?", number, stateCode).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByName returns the constituency whose name matches exactly
// (case-insensitive) in a state, or (nil, nil)
func (s *ConstituencyStore) FindByName(ctx context.Context, name, stateCode string) (*models.Constituency, error) {
	var c models.Constituency
	err := s.db.WithContext(ctx).
		Where("LOWER(name) = ? AND state_code = ?", strings.ToLower(strings.TrimSpace(name)), stateCode).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SearchByName returns every constituency in a state whose name contains the
// fragment, ordered by constituency number so results are stable
func (s *ConstituencyStore) SearchByName(ctx context.Context, fragment, stateCode string) ([]models.Constituency, error) {
	var rows []models.Constituency
	err := s.db.WithContext(ctx).
		Where("state_code = ? AND LOWER(name) LIKE ?", stateCode, "%"+strings.ToLower(fragment)+"%").
		Order("constituency_number asc").
		Find(&rows).Error
	return rows, err
}

// ListByState returns all constituencies for a state
func (s *ConstituencyStore) ListByState(ctx context.Context, stateCode string) ([]models.Constituency, error) {
	var rows []models.Constituency
	err := s.db.WithContext(ctx).
		Where("state_code = ?", stateCode).
		Order("constituency_number asc").
		Find(&rows).Error
	return rows, err
}

// Save writes a constituency row back. Only the current-member fields and
// the back-reference are expected to change.
func (s *ConstituencyStore) Save(ctx context.Context, c *models.Constituency) error {
	return s.db.WithContext(ctx).Save(c).Error
}

// SeedOnEmpty inserts the given rows only when the table has no entries
func (s *ConstituencyStore) SeedOnEmpty(ctx context.Context, rows []models.Constituency) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Constituency{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}
