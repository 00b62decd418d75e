package models

import (
	"time"
)

// Constituency is the canonical electoral-district record. Rows are seeded
// from official rolls and never created or deleted by the scraping pipeline;
// only the current-member fields and the member back-reference are mutable.
type Constituency struct {
	ID uint `gorm:"primaryKey;column:id"`

	ConstituencyNumber int    `gorm:"column:constituency_number;uniqueIndex:idx_constituency_number_state;not null"`
	Name               string `gorm:"column:name;size:160;not null;index"`
	StateCode          string `gorm:"column:state_code;size:8;uniqueIndex:idx_constituency_number_state;not null"`
	ReservedCategory   string `gorm:"column:reserved_category;size:8"`

	CurrentMemberName  string `gorm:"column:current_member_name;size:160"`
	CurrentMemberParty string `gorm:"column:current_member_party;size:160"`
	CurrentMemberID    *uint  `gorm:"column:current_member_id"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for the Constituency model
func (Constituency) TableName() string {
	return "constituencies"
}

// Member is the stored record for a scraped candidate or sitting member.
// Natural key: (constituency_number, state_code), falling back to
// (district_name, state_code) when the number was unavailable at scrape time.
type Member struct {
	ID uint `gorm:"primaryKey;column:id"`

	Name  string `gorm:"column:name;size:160;not null"`
	Party string `gorm:"column:party;size:160"`

	ConstituencyNumber int    `gorm:"column:constituency_number;index:idx_member_number_state"`
	DistrictName       string `gorm:"column:district_name;size:160;index"`
	StateCode          string `gorm:"column:state_code;size:8;index:idx_member_number_state"`
	ReservedCategory   string `gorm:"column:reserved_category;size:8"`
	VoteMargin         int    `gorm:"column:vote_margin;default:0"`

	SourceURL string `gorm:"column:source_url"`

	// Set in the second save pass once entity resolution has linked the
	// member to a canonical constituency. Nil means unmatched.
	ConstituencyID *uint `gorm:"column:constituency_id;index"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for the Member model
func (Member) TableName() string {
	return "members"
}

// Linked reports whether the member has been resolved to a constituency
func (m *Member) Linked() bool {
	return m.ConstituencyID != nil
}
