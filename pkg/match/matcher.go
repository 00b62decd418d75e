// Package match resolves normalized candidate records to canonical
// constituency rows through a four-stage cascade: number, exact name,
// fuzzy name, aggressively-normalized fuzzy name.
package match

import (
	"context"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sirupsen/logrus"

	"github.com/electdata/electbot-go/pkg/db/models"
	"github.com/electdata/electbot-go/pkg/scrape"
)

// Stage identifies which cascade stage produced a match
type Stage string

const (
	StageNumber     Stage = "number"
	StageExactName  Stage = "exact_name"
	StageFuzzy      Stage = "fuzzy"
	StageAggressive Stage = "fuzzy_aggressive"
	StageUnmatched  Stage = "unmatched"
)

// ConstituencyFinder is the read surface the matcher needs from the
// constituency store. Find methods return (nil, nil) on no hit; Search
// returns every row whose name contains the fragment.
type ConstituencyFinder interface {
	FindByNumber(ctx context.Context, number int, stateCode string) (*models.Constituency, error)
	FindByName(ctx context.Context, name, stateCode string) (*models.Constituency, error)
	SearchByName(ctx context.Context, fragment, stateCode string) ([]models.Constituency, error)
}

// Outcome describes the result of one cascade evaluation
type Outcome struct {
	// Constituency is the resolved row, nil when unmatched
	Constituency *models.Constituency
	// Stage records which cascade stage decided the outcome
	Stage Stage
	// Ambiguous is set when a fuzzy stage had to score multiple candidates
	Ambiguous bool
}

// Matched reports whether the cascade resolved a constituency
func (o Outcome) Matched() bool {
	return o.Constituency != nil
}

// Matcher runs the resolution cascade against a constituency store
type Matcher struct {
	finder ConstituencyFinder
	logger *logrus.Logger
}

// NewMatcher creates a Matcher backed by the given store
func NewMatcher(finder ConstituencyFinder, logger *logrus.Logger) *Matcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Matcher{finder: finder, logger: logger}
}

// Match resolves a candidate record to at most one constituency. Stages run
// in order and the first hit wins. An unmatched record is a normal outcome,
// not an error; errors are reserved for store failures.
func (m *Matcher) Match(ctx context.Context, rec *scrape.CandidateRecord, stateCode string) (Outcome, error) {
	// Stage 1: constituency number, skipped when the number is absent
	if rec.Number > 0 {
		c, err := m.finder.FindByNumber(ctx, rec.Number, stateCode)
		if err != nil {
			return Outcome{Stage: StageUnmatched}, fmt.Errorf("number lookup failed: %w", err)
		}
		if c != nil {
			return Outcome{Constituency: c, Stage: StageNumber}, nil
		}
	}

	// Stage 2: exact district name
	c, err := m.finder.FindByName(ctx, rec.DistrictClean, stateCode)
	if err != nil {
		return Outcome{Stage: StageUnmatched}, fmt.Errorf("name lookup failed: %w", err)
	}
	if c != nil {
		return Outcome{Constituency: c, Stage: StageExactName}, nil
	}

	// Stage 3: fuzzy search on the normalized name
	outcome, err := m.fuzzyStage(ctx, NormalizeName(rec.DistrictClean), stateCode, StageFuzzy)
	if err != nil {
		return Outcome{Stage: StageUnmatched}, err
	}
	if outcome.Matched() {
		return outcome, nil
	}

	// Stage 4: retry with aggressive normalization
	outcome, err = m.fuzzyStage(ctx, AggressiveNormalizeName(rec.DistrictClean), stateCode, StageAggressive)
	if err != nil {
		return Outcome{Stage: StageUnmatched}, err
	}
	if outcome.Matched() {
		return outcome, nil
	}

	m.logger.WithFields(logrus.Fields{
		"district": rec.DistrictClean,
		"number":   rec.Number,
		"state":    stateCode,
	}).Debug("Cascade exhausted without a match")

	return Outcome{Stage: StageUnmatched}, nil
}

// fuzzyStage retrieves candidates by the leading word of the normalized name
// and scores each one by edit distance against the full name. The lowest
// distance wins; distance ties break on the lowest constituency number so
// repeated calls always pick the same row.
func (m *Matcher) fuzzyStage(ctx context.Context, fragment, stateCode string, stage Stage) (Outcome, error) {
	if fragment == "" {
		return Outcome{Stage: StageUnmatched}, nil
	}

	candidates, err := m.finder.SearchByName(ctx, searchToken(fragment), stateCode)
	if err != nil {
		return Outcome{Stage: StageUnmatched}, fmt.Errorf("fuzzy search failed: %w", err)
	}
	if len(candidates) == 0 {
		return Outcome{Stage: StageUnmatched}, nil
	}

	best := 0
	bestScore := levenshtein.ComputeDistance(fragment, NormalizeName(candidates[0].Name))
	for i := 1; i < len(candidates); i++ {
		score := levenshtein.ComputeDistance(fragment, NormalizeName(candidates[i].Name))
		if score < bestScore ||
			(score == bestScore && candidates[i].ConstituencyNumber < candidates[best].ConstituencyNumber) {
			best, bestScore = i, score
		}
	}

	if len(candidates) > 1 {
		m.logger.WithFields(logrus.Fields{
			"fragment":   fragment,
			"candidates": len(candidates),
			"picked":     candidates[best].Name,
			"distance":   bestScore,
			"stage":      stage,
		}).Info("Ambiguous fuzzy match resolved by edit distance")
	}

	return Outcome{
		Constituency: &candidates[best],
		Stage:        stage,
		Ambiguous:    len(candidates) > 1,
	}, nil
}

// searchToken is the first word of a normalized name. Substring retrieval on
// the full scraped label misses canonical rows that are shorter than it, so
// retrieval keys on the leading word and scoring runs against the full name.
func searchToken(fragment string) string {
	if i := strings.IndexByte(fragment, ' '); i > 0 {
		return fragment[:i]
	}
	return fragment
}

// NormalizeName lowercases a district name and collapses internal whitespace
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// AggressiveNormalizeName additionally strips hyphens and periods, for
// sources that disagree on punctuation within district names
func AggressiveNormalizeName(name string) string {
	replacer := strings.NewReplacer("-", " ", ".", " ")
	return NormalizeName(replacer.Replace(name))
}
