package scrape_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/electdata/electbot-go/pkg/scrape"
)

var _ = Describe("ResultsPageAdapter", func() {
	newAdapter := func() *scrape.ResultsPageAdapter {
		adapter, err := scrape.NewResultsPageAdapter(scrape.ResultsPageAdapterConfig{
			Name:              "trends",
			RequestsPerMinute: 600,
		})
		Expect(err).NotTo(HaveOccurred())
		return adapter
	}

	It("extracts one raw record per result row", func() {
		page := `<html><body><table><tbody>
			<tr><th>Constituency</th><th>No.</th><th>Winner</th><th>Party</th><th>Margin</th><th>Status</th></tr>
			<tr><td>Valmiki Nagar(SC)</td><td>1</td><td>A. Kumar</td><td>BJP</td><td>12,345</td><td>Result Declared</td></tr>
		</tbody></table></body></html>`
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(page))
		}))
		defer server.Close()

		records, err := newAdapter().Fetch(context.Background(), server.URL)

		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].DistrictLabel).To(Equal("Valmiki Nagar(SC)"))
		Expect(records[0].Number).To(Equal("1"))
		Expect(records[0].Status).To(Equal("Result Declared"))
		Expect(records[0].SourceURL).To(Equal(server.URL))
	})

	It("reports a non-OK response as a source failure", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := newAdapter().Fetch(context.Background(), server.URL)

		Expect(errors.Is(err, scrape.ErrSourceUnavailable)).To(BeTrue())
	})

	It("reports an unreachable source as a source failure", func() {
		server := httptest.NewServer(http.NewServeMux())
		sourceURL := server.URL
		server.Close()

		_, err := newAdapter().Fetch(context.Background(), sourceURL)

		Expect(errors.Is(err, scrape.ErrSourceUnavailable)).To(BeTrue())
	})
})
