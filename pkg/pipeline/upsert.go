package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/electdata/electbot-go/pkg/db/models"
	"github.com/electdata/electbot-go/pkg/scrape"
)

// MemberStore is the persistence surface the pipeline needs for scraped
// member records. Find methods return (nil, nil) on no hit.
type MemberStore interface {
	FindByConstituency(ctx context.Context, number int, stateCode string) (*models.Member, error)
	FindByDistrict(ctx context.Context, districtName, stateCode string) (*models.Member, error)
	ListByState(ctx context.Context, stateCode string) ([]models.Member, error)
	Save(ctx context.Context, m *models.Member) error
	BulkSave(ctx context.Context, members []*models.Member) error
}

// ConstituencyWriter is the write surface for canonical constituency rows
type ConstituencyWriter interface {
	Save(ctx context.Context, c *models.Constituency) error
}

// pendingUpsert pairs a staged member with the constituency it resolved to,
// nil when the record is unmatched
type pendingUpsert struct {
	member       *models.Member
	constituency *models.Constituency
}

// UpsertEngine stages insert-or-update decisions during a run and writes
// them out in two passes: all member rows first, then constituency links.
// The split keeps a crash from ever producing a half-linked member; an
// inserted-but-unlinked row is repaired by the next MEMBER_SYNC run.
type UpsertEngine struct {
	members MemberStore
	consts  ConstituencyWriter
	logger  *logrus.Logger
	pending []pendingUpsert
}

// NewUpsertEngine creates an engine for one run
func NewUpsertEngine(members MemberStore, consts ConstituencyWriter, logger *logrus.Logger) *UpsertEngine {
	if logger == nil {
		logger = logrus.New()
	}
	return &UpsertEngine{
		members: members,
		consts:  consts,
		logger:  logger,
	}
}

// Stage decides insert-vs-update for one resolved record and queues the row
// for the flush passes. allowInsert is false for update-only (secondary)
// sources; their unknown records are counted as skipped.
func (e *UpsertEngine) Stage(ctx context.Context, rec *scrape.CandidateRecord, constituency *models.Constituency, stateCode string, allowInsert bool, res *Result, runlog *RunLog) error {
	existing, err := e.members.FindByConstituency(ctx, rec.Number, stateCode)
	if err != nil {
		return fmt.Errorf("member lookup by constituency failed: %w", err)
	}
	if existing == nil {
		existing, err = e.members.FindByDistrict(ctx, rec.DistrictClean, stateCode)
		if err != nil {
			return fmt.Errorf("member lookup by district failed: %w", err)
		}
	}

	var member *models.Member
	if existing != nil {
		// Overwrite mutable fields; last writer wins
		existing.Name = rec.Name
		existing.Party = rec.Party
		existing.ConstituencyNumber = rec.Number
		existing.DistrictName = rec.DistrictClean
		existing.ReservedCategory = rec.ReservedCategory
		existing.VoteMargin = rec.Margin
		existing.SourceURL = rec.SourceURL
		member = existing
		res.Updated++
		runlog.Appendf("updated member %s (%s, #%d)", rec.Name, rec.DistrictClean, rec.Number)
	} else {
		if !allowInsert {
			res.Skipped++
			runlog.Appendf("skipped unknown member %s (%s, #%d): source is update-only", rec.Name, rec.DistrictClean, rec.Number)
			return nil
		}
		member = &models.Member{
			Name:               rec.Name,
			Party:              rec.Party,
			ConstituencyNumber: rec.Number,
			DistrictName:       rec.DistrictClean,
			StateCode:          stateCode,
			ReservedCategory:   rec.ReservedCategory,
			VoteMargin:         rec.Margin,
			SourceURL:          rec.SourceURL,
		}
		res.Inserted++
		runlog.Appendf("inserted member %s (%s, #%d)", rec.Name, rec.DistrictClean, rec.Number)
	}

	e.pending = append(e.pending, pendingUpsert{member: member, constituency: constituency})
	return nil
}

// Flush writes the staged rows. Pass one bulk-saves every member so each row
// exists and has an id; pass two writes the constituency back-references and
// re-saves the linked members. Both passes must complete for a record to be
// durably linked.
func (e *UpsertEngine) Flush(ctx context.Context, runlog *RunLog) error {
	if len(e.pending) == 0 {
		return nil
	}

	members := make([]*models.Member, 0, len(e.pending))
	for _, p := range e.pending {
		members = append(members, p.member)
	}
	if err := e.members.BulkSave(ctx, members); err != nil {
		return fmt.Errorf("member save pass failed: %w", err)
	}

	linked := make([]*models.Member, 0, len(e.pending))
	for _, p := range e.pending {
		if p.constituency == nil {
			continue
		}

		p.member.ConstituencyID = &p.constituency.ID
		p.constituency.CurrentMemberName = p.member.Name
		p.constituency.CurrentMemberParty = p.member.Party
		p.constituency.CurrentMemberID = &p.member.ID

		if err := e.consts.Save(ctx, p.constituency); err != nil {
			return fmt.Errorf("constituency save failed for %q: %w", p.constituency.Name, err)
		}
		linked = append(linked, p.member)
	}
	if err := e.members.BulkSave(ctx, linked); err != nil {
		return fmt.Errorf("member link pass failed: %w", err)
	}

	runlog.Appendf("flushed %d member rows, %d constituency links", len(members), len(linked))
	e.pending = e.pending[:0]
	return nil
}
