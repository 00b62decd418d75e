// Package scrape provides source adapters that pull raw candidate rows from
// external result pages, and the normalizer that turns those rows into
// structured candidate records.
package scrape

import "errors"

// RawRecord is one unprocessed row as extracted by a SourceAdapter. Field
// contents are whatever the source printed; nothing is trimmed or validated
// until normalization.
type RawRecord struct {
	// DistrictLabel is the constituency label, possibly carrying a
	// reservation suffix such as "Valmiki Nagar(SC)"
	DistrictLabel string `json:"districtLabel"`

	// Number is the constituency number as printed; may be blank or a
	// placeholder glyph on malformed rows
	Number string `json:"number"`

	// Winner is the leading candidate cell; many sources render it as
	// "name\nparty" inside a single cell
	Winner string `json:"winner"`

	// Party is the party cell when the source has one; tooltip text such
	// as "Won In" frequently bleeds into it
	Party string `json:"party"`

	// Margin is the printed vote margin, with separators
	Margin string `json:"margin"`

	// Status is the counting status, e.g. "Result Declared" or "Counting"
	Status string `json:"status"`

	// SourceURL is the page the row was extracted from
	SourceURL string `json:"sourceUrl"`
}

// CandidateRecord is the normalized form of a RawRecord, ready for entity
// resolution. It exists only for the duration of a run.
type CandidateRecord struct {
	Name             string
	Party            string
	DistrictClean    string
	ReservedCategory string
	Number           int
	Margin           int
	SourceURL        string
}

// ErrResultNotDeclared marks rows whose status is not a finalized result.
// Callers count these as skipped, not failed.
var ErrResultNotDeclared = errors.New("result not declared")

// ErrInvalidConstituencyNumber marks rows whose constituency number could
// not be resolved to a positive integer.
var ErrInvalidConstituencyNumber = errors.New("invalid constituency number")

// ErrSourceUnavailable marks whole-page transport failures: the source site
// could not be reached or answered with a non-OK status.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrPageUnparseable marks pages that were fetched but whose markup could
// not be parsed into a document.
var ErrPageUnparseable = errors.New("page unparseable")
