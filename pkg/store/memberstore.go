package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/electdata/electbot-go/pkg/db/models"
)

// MemberStore persists scraped member records
type MemberStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewMemberStore creates a MemberStore on the given connection
func NewMemberStore(db *gorm.DB, logger *logrus.Logger) *MemberStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &MemberStore{db: db, logger: logger}
}

// FindByConstituency returns the member stored under (number, state), or
// (nil, nil)
func (s *MemberStore) FindByConstituency(ctx context.Context, number int, stateCode string) (*models.Member, error) {
	if number == 0 {
		return nil, nil
	}
	var m models.Member
	err := s.db.WithContext(ctx).
		Where("constituency_number = ? AND state_code = ?", number, stateCode).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByDistrict returns the member stored under (district name, state), or
// (nil, nil). Fallback key for records scraped without a usable number.
func (s *MemberStore) FindByDistrict(ctx context.Context, districtName, stateCode string) (*models.Member, error) {
	var m models.Member
	err := s.db.WithContext(ctx).
		Where("LOWER(district_name) = ? AND state_code = ?",
			strings.ToLower(strings.TrimSpace(districtName)), stateCode).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByState returns all members for a state
func (s *MemberStore) ListByState(ctx context.Context, stateCode string) ([]models.Member, error) {
	var rows []models.Member
	err := s.db.WithContext(ctx).
		Where("state_code = ?", stateCode).
		Order("constituency_number asc").
		Find(&rows).Error
	return rows, err
}

// Save writes one member row, creating it when it has no id yet
func (s *MemberStore) Save(ctx context.Context, m *models.Member) error {
	err := s.db.WithContext(ctx).Save(m).Error
	if isUniqueViolation(err) {
		// Another writer inserted the same natural key between our lookup
		// and this save; re-read and overwrite instead.
		existing, ferr := s.FindByConstituency(ctx, m.ConstituencyNumber, m.StateCode)
		if ferr != nil || existing == nil {
			return err
		}
		m.ID = existing.ID
		return s.db.WithContext(ctx).Save(m).Error
	}
	return err
}

// BulkSave writes every member in the slice, one row at a time. Single-row
// writes keep the last-writer-wins contract; no transaction spans the batch.
func (s *MemberStore) BulkSave(ctx context.Context, members []*models.Member) error {
	for _, m := range members {
		if err := s.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// isUniqueViolation reports whether the error is a postgres unique-key
// violation (class 23505). The gorm postgres driver is pgx-backed, so the
// violation surfaces as a *pgconn.PgError.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
