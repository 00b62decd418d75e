package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// tooltipSuffixes are status fragments that bleed from hover tooltips into
// scraped text fields. Order matters: longer variants strip first.
var tooltipSuffixes = []string{
	"Result Declared",
	"Leading In",
	"Won In",
	"Leading",
	"Won",
}

var (
	digitsRe   = regexp.MustCompile(`\d+`)
	reservedRe = regexp.MustCompile(`\((SC|ST)\)\s*$`)
)

// Normalizer cleans raw scraped rows into structured candidate records
type Normalizer struct {
	logger *logrus.Logger
}

// NewNormalizer creates a Normalizer
func NewNormalizer(logger *logrus.Logger) *Normalizer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Normalizer{logger: logger}
}

// Normalize converts one raw row into a CandidateRecord.
//
// Rows whose status does not indicate a declared result return
// ErrResultNotDeclared; rows without a usable constituency number return
// ErrInvalidConstituencyNumber. Both are per-record conditions and never
// abort the surrounding run.
func (n *Normalizer) Normalize(raw RawRecord) (*CandidateRecord, error) {
	if !resultDeclared(raw.Status) {
		n.logger.WithFields(logrus.Fields{
			"district": raw.DistrictLabel,
			"status":   raw.Status,
		}).Debug("Skipping row without declared result")
		return nil, ErrResultNotDeclared
	}

	number := ExtractNumber(raw.Number)
	if number == 0 {
		n.logger.WithFields(logrus.Fields{
			"district": raw.DistrictLabel,
			"number":   raw.Number,
		}).Debug("Skipping row with unresolvable constituency number")
		return nil, ErrInvalidConstituencyNumber
	}

	name, party := splitWinner(raw.Winner)
	if party == "" {
		party = raw.Party
	}
	party = TrimTooltipSuffix(party)

	clean, reserved := SplitReservedCategory(raw.DistrictLabel)

	return &CandidateRecord{
		Name:             name,
		Party:            party,
		DistrictClean:    clean,
		ReservedCategory: reserved,
		Number:           number,
		Margin:           ExtractNumber(raw.Margin),
		SourceURL:        raw.SourceURL,
	}, nil
}

// resultDeclared reports whether the status text marks a finalized result
func resultDeclared(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	return strings.Contains(s, "declared") || strings.Contains(s, "won")
}

// splitWinner separates the candidate name from a party rendered on the
// following line of the same cell. The first line is always the name.
func splitWinner(winner string) (name, party string) {
	lines := strings.Split(winner, "\n")
	name = strings.TrimSpace(lines[0])
	if len(lines) > 1 {
		party = strings.TrimSpace(lines[1])
	}
	return name, party
}

// TrimTooltipSuffix removes trailing tooltip fragments such as "Won In" or
// "Leading In" that sources concatenate onto party names.
func TrimTooltipSuffix(text string) string {
	text = strings.TrimSpace(text)
	for changed := true; changed; {
		changed = false
		for _, suffix := range tooltipSuffixes {
			if strings.HasSuffix(text, suffix) && text != suffix {
				text = strings.TrimSpace(strings.TrimSuffix(text, suffix))
				changed = true
			}
		}
	}
	return text
}

// ExtractNumber pulls the first digit run out of a printed value, ignoring
// separators. Absent or malformed values resolve to 0.
func ExtractNumber(printed string) int {
	digits := digitsRe.FindAllString(printed, -1)
	if len(digits) == 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.Join(digits, ""))
	if err != nil {
		return 0
	}
	return n
}

// SplitReservedCategory strips a trailing "(SC)" or "(ST)" marker off a
// district label, returning the clean label and the category tag.
func SplitReservedCategory(label string) (clean, category string) {
	label = strings.TrimSpace(label)
	if m := reservedRe.FindStringSubmatch(label); m != nil {
		return strings.TrimSpace(reservedRe.ReplaceAllString(label, "")), m[1]
	}
	return label, ""
}
