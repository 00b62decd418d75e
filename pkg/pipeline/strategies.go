package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/electdata/electbot-go/pkg/db/models"
	"github.com/electdata/electbot-go/pkg/match"
	"github.com/electdata/electbot-go/pkg/scrape"
)

// ScrapeStrategy drives the adapter → normalizer → matcher → upsert chain
// for one source page. With allowInsert unset it acts as a secondary-source
// strategy that only overwrites members it already knows.
type ScrapeStrategy struct {
	adapters    *scrape.AdapterRegistry
	normalizer  *scrape.Normalizer
	matcher     *match.Matcher
	members     MemberStore
	consts      ConstituencyWriter
	logger      *logrus.Logger
	allowInsert bool
}

// NewResultsScrapeStrategy creates the primary-source strategy: unknown
// candidates are inserted, known ones overwritten.
func NewResultsScrapeStrategy(adapters *scrape.AdapterRegistry, normalizer *scrape.Normalizer, matcher *match.Matcher, members MemberStore, consts ConstituencyWriter, logger *logrus.Logger) *ScrapeStrategy {
	return newScrapeStrategy(adapters, normalizer, matcher, members, consts, logger, true)
}

// NewArchiveScrapeStrategy creates the secondary-source strategy: it only
// updates members the primary source already produced.
func NewArchiveScrapeStrategy(adapters *scrape.AdapterRegistry, normalizer *scrape.Normalizer, matcher *match.Matcher, members MemberStore, consts ConstituencyWriter, logger *logrus.Logger) *ScrapeStrategy {
	return newScrapeStrategy(adapters, normalizer, matcher, members, consts, logger, false)
}

func newScrapeStrategy(adapters *scrape.AdapterRegistry, normalizer *scrape.Normalizer, matcher *match.Matcher, members MemberStore, consts ConstituencyWriter, logger *logrus.Logger, allowInsert bool) *ScrapeStrategy {
	if logger == nil {
		logger = logrus.New()
	}
	return &ScrapeStrategy{
		adapters:    adapters,
		normalizer:  normalizer,
		matcher:     matcher,
		members:     members,
		consts:      consts,
		logger:      logger,
		allowInsert: allowInsert,
	}
}

// Execute implements Strategy
func (s *ScrapeStrategy) Execute(ctx context.Context, bot *models.Bot, runlog *RunLog) (*Result, error) {
	adapter, err := s.adapters.Get(bot.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("source adapter unavailable: %w", err)
	}

	runlog.Appendf("fetching %s via %s", bot.SourceURL, bot.DataSourceName)
	raws, err := adapter.Fetch(ctx, bot.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("source fetch failed: %w", err)
	}
	runlog.Appendf("source returned %d raw rows", len(raws))

	res := &Result{}
	engine := NewUpsertEngine(s.members, s.consts, s.logger)

	for _, raw := range raws {
		rec, err := s.normalizer.Normalize(raw)
		switch {
		case errors.Is(err, scrape.ErrResultNotDeclared):
			res.Skipped++
			runlog.Appendf("skipped %q: %s", raw.DistrictLabel, raw.Status)
			continue
		case errors.Is(err, scrape.ErrInvalidConstituencyNumber):
			res.Failed++
			runlog.Appendf("discarded %q: constituency number %q is invalid", raw.DistrictLabel, raw.Number)
			continue
		case err != nil:
			res.Failed++
			runlog.Appendf("discarded %q: %v", raw.DistrictLabel, err)
			continue
		}
		res.Fetched++

		outcome, err := s.matcher.Match(ctx, rec, bot.TargetStateCode)
		if err != nil {
			res.Failed++
			runlog.Appendf("match failed for %q: %v", rec.DistrictClean, err)
			continue
		}
		if outcome.Ambiguous {
			runlog.Appendf("ambiguous match for %q resolved at stage %s to %q",
				rec.DistrictClean, outcome.Stage, outcome.Constituency.Name)
		}

		before := res.Inserted + res.Updated
		if err := engine.Stage(ctx, rec, outcome.Constituency, bot.TargetStateCode, s.allowInsert, res, runlog); err != nil {
			res.Failed++
			runlog.Appendf("upsert failed for %q: %v", rec.DistrictClean, err)
			continue
		}
		if res.Inserted+res.Updated == before {
			// Update-only source skipped an unknown member
			continue
		}

		if outcome.Matched() {
			res.Linked++
		} else {
			res.Unmatched++
			runlog.Appendf("no constituency match for %q (#%d); stored unlinked", rec.DistrictClean, rec.Number)
		}
	}

	if err := engine.Flush(ctx, runlog); err != nil {
		return nil, err
	}

	runlog.Appendf("run finished: %s", res.Summary())
	return res, nil
}

// SyncStrategy re-runs entity resolution over the stored members of a state
// and repairs missing constituency links. Running it against a fully linked
// dataset changes nothing, which is what makes crash recovery between the
// upsert passes safe.
type SyncStrategy struct {
	matcher *match.Matcher
	members MemberStore
	consts  ConstituencyWriter
	logger  *logrus.Logger
}

// NewSyncStrategy creates the MEMBER_SYNC strategy
func NewSyncStrategy(matcher *match.Matcher, members MemberStore, consts ConstituencyWriter, logger *logrus.Logger) *SyncStrategy {
	if logger == nil {
		logger = logrus.New()
	}
	return &SyncStrategy{
		matcher: matcher,
		members: members,
		consts:  consts,
		logger:  logger,
	}
}

// Execute implements Strategy
func (s *SyncStrategy) Execute(ctx context.Context, bot *models.Bot, runlog *RunLog) (*Result, error) {
	members, err := s.members.ListByState(ctx, bot.TargetStateCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list members for %s: %w", bot.TargetStateCode, err)
	}
	runlog.Appendf("syncing %d stored members for %s", len(members), bot.TargetStateCode)

	res := &Result{Fetched: len(members)}
	for i := range members {
		m := &members[i]

		rec := &scrape.CandidateRecord{
			Name:          m.Name,
			Party:         m.Party,
			DistrictClean: m.DistrictName,
			Number:        m.ConstituencyNumber,
		}
		outcome, err := s.matcher.Match(ctx, rec, bot.TargetStateCode)
		if err != nil {
			res.Failed++
			runlog.Appendf("match failed for member %s: %v", m.Name, err)
			continue
		}
		if !outcome.Matched() {
			res.Unmatched++
			runlog.Appendf("member %s (%q) still unmatched", m.Name, m.DistrictName)
			continue
		}

		c := outcome.Constituency
		if m.ConstituencyID != nil && *m.ConstituencyID == c.ID &&
			c.CurrentMemberID != nil && *c.CurrentMemberID == m.ID {
			res.Skipped++
			res.Linked++
			continue
		}

		m.ConstituencyID = &c.ID
		if err := s.members.Save(ctx, m); err != nil {
			res.Failed++
			runlog.Appendf("failed to link member %s: %v", m.Name, err)
			continue
		}

		c.CurrentMemberName = m.Name
		c.CurrentMemberParty = m.Party
		c.CurrentMemberID = &m.ID
		if err := s.consts.Save(ctx, c); err != nil {
			res.Failed++
			runlog.Appendf("failed to write back constituency %q: %v", c.Name, err)
			continue
		}

		res.Updated++
		res.Linked++
		runlog.Appendf("linked member %s to %q (#%d)", m.Name, c.Name, c.ConstituencyNumber)
	}

	runlog.Appendf("sync finished: %s", res.Summary())
	return res, nil
}
