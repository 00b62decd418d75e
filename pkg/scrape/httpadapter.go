package scrape

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Default operational values for the results page adapter
const (
	// DefaultRequestTimeout bounds a single page fetch
	DefaultRequestTimeout = 60 * time.Second

	// DefaultRequestsPerMinute limits how hard we hit a source site
	DefaultRequestsPerMinute = 12

	// defaultUserAgent identifies the collector to source sites
	defaultUserAgent = "electbot/1.0 (+https://github.com/electdata/electbot-go)"
)

// RowSelectors configures where in the page markup each field lives. Cell
// indexes are zero-based positions within a result row.
type RowSelectors struct {
	Row           string
	DistrictCell  int
	NumberCell    int
	WinnerCell    int
	PartyCell     int
	MarginCell    int
	StatusCell    int
}

// DefaultRowSelectors matches the constituency-wise results table layout
// used by the commission's trends pages.
func DefaultRowSelectors() RowSelectors {
	return RowSelectors{
		Row:          "table tbody tr",
		DistrictCell: 0,
		NumberCell:   1,
		WinnerCell:   2,
		PartyCell:    3,
		MarginCell:   4,
		StatusCell:   5,
	}
}

// ResultsPageAdapter fetches a constituency-wise results page over HTTP and
// extracts one RawRecord per table row.
type ResultsPageAdapter struct {
	name      string
	client    *http.Client
	limiter   *rate.Limiter
	selectors RowSelectors
	logger    *logrus.Logger
}

// ResultsPageAdapterConfig holds construction options for ResultsPageAdapter
type ResultsPageAdapterConfig struct {
	// Name is the data source name the adapter registers under
	Name string

	// RequestTimeout bounds a single fetch; zero means DefaultRequestTimeout
	RequestTimeout time.Duration

	// RequestsPerMinute throttles fetches; zero means DefaultRequestsPerMinute
	RequestsPerMinute int

	// Selectors overrides the row/cell layout; zero value means defaults
	Selectors *RowSelectors

	Logger *logrus.Logger
}

// NewResultsPageAdapter creates a rate-limited HTTP adapter for one source
func NewResultsPageAdapter(config ResultsPageAdapterConfig) (*ResultsPageAdapter, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("adapter name is required")
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}

	timeout := config.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}

	rpm := config.RequestsPerMinute
	if rpm == 0 {
		rpm = DefaultRequestsPerMinute
	}

	selectors := DefaultRowSelectors()
	if config.Selectors != nil {
		selectors = *config.Selectors
	}

	return &ResultsPageAdapter{
		name:      config.Name,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		selectors: selectors,
		logger:    config.Logger,
	}, nil
}

// Name implements SourceAdapter
func (a *ResultsPageAdapter) Name() string {
	return a.name
}

// Fetch implements SourceAdapter. It retrieves the page, parses the result
// table and returns one RawRecord per row. Row-level oddities are left for
// the normalizer; only transport and parse failures of the page as a whole
// error out.
func (a *ResultsPageAdapter) Fetch(ctx context.Context, sourceURL string) ([]RawRecord, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", sourceURL, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	a.logger.WithFields(logrus.Fields{
		"source": a.name,
		"url":    sourceURL,
	}).Debug("Fetching results page")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", ErrSourceUnavailable, sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d fetching %s", ErrSourceUnavailable, resp.StatusCode, sourceURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPageUnparseable, sourceURL, err)
	}

	var records []RawRecord
	doc.Find(a.selectors.Row).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() <= a.selectors.StatusCell {
			// Header or spacer row
			return
		}

		records = append(records, RawRecord{
			DistrictLabel: cellText(cells, a.selectors.DistrictCell),
			Number:        cellText(cells, a.selectors.NumberCell),
			Winner:        cellText(cells, a.selectors.WinnerCell),
			Party:         cellText(cells, a.selectors.PartyCell),
			Margin:        cellText(cells, a.selectors.MarginCell),
			Status:        cellText(cells, a.selectors.StatusCell),
			SourceURL:     sourceURL,
		})
	})

	a.logger.WithFields(logrus.Fields{
		"source": a.name,
		"url":    sourceURL,
		"rows":   len(records),
	}).Info("Extracted result rows")

	return records, nil
}

func cellText(cells *goquery.Selection, index int) string {
	if index < 0 || index >= cells.Length() {
		return ""
	}
	return cells.Eq(index).Text()
}
