package match_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/electdata/electbot-go/pkg/db/models"
	"github.com/electdata/electbot-go/pkg/match"
	"github.com/electdata/electbot-go/pkg/scrape"
)

// fakeFinder serves constituencies from a slice, mimicking the store's
// number-ordered substring search
type fakeFinder struct {
	rows []models.Constituency
}

func (f *fakeFinder) FindByNumber(_ context.Context, number int, stateCode string) (*models.Constituency, error) {
	for i := range f.rows {
		if f.rows[i].ConstituencyNumber == number && f.rows[i].StateCode == stateCode {
			return &f.rows[i], nil
		}
	}
	return nil, nil
}

func (f *fakeFinder) FindByName(_ context.Context, name, stateCode string) (*models.Constituency, error) {
	for i := range f.rows {
		if strings.EqualFold(f.rows[i].Name, strings.TrimSpace(name)) && f.rows[i].StateCode == stateCode {
			return &f.rows[i], nil
		}
	}
	return nil, nil
}

func (f *fakeFinder) SearchByName(_ context.Context, fragment, stateCode string) ([]models.Constituency, error) {
	var out []models.Constituency
	for i := range f.rows {
		if f.rows[i].StateCode == stateCode &&
			strings.Contains(strings.ToLower(f.rows[i].Name), strings.ToLower(fragment)) {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

var _ = Describe("Matcher", func() {
	var (
		ctx     context.Context
		finder  *fakeFinder
		matcher *match.Matcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		finder = &fakeFinder{rows: []models.Constituency{
			{ID: 1, ConstituencyNumber: 1, Name: "Valmiki Nagar", StateCode: "BR"},
			{ID: 2, ConstituencyNumber: 2, Name: "Ramnagar", StateCode: "BR"},
			{ID: 3, ConstituencyNumber: 3, Name: "Narkatiaganj", StateCode: "BR"},
			{ID: 4, ConstituencyNumber: 60, Name: "Darbhanga Rural", StateCode: "BR"},
			{ID: 5, ConstituencyNumber: 61, Name: "Darbhanga", StateCode: "BR"},
			{ID: 6, ConstituencyNumber: 1, Name: "Agra North", StateCode: "UP"},
		}}
		logger := logrus.New()
		logger.SetLevel(logrus.PanicLevel)
		matcher = match.NewMatcher(finder, logger)
	})

	It("matches by constituency number first", func() {
		outcome, err := matcher.Match(ctx, &scrape.CandidateRecord{
			Number:        1,
			DistrictClean: "Totally Different Label",
		}, "BR")

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Stage).To(Equal(match.StageNumber))
		Expect(outcome.Constituency.Name).To(Equal("Valmiki Nagar"))
	})

	It("scopes number matches to the region", func() {
		outcome, err := matcher.Match(ctx, &scrape.CandidateRecord{
			Number:        1,
			DistrictClean: "Agra North",
		}, "UP")

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Constituency.StateCode).To(Equal("UP"))
	})

	It("skips the number stage when the number is absent", func() {
		outcome, err := matcher.Match(ctx, &scrape.CandidateRecord{
			Number:        0,
			DistrictClean: "Ramnagar",
		}, "BR")

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Stage).To(Equal(match.StageExactName))
		Expect(outcome.Constituency.ConstituencyNumber).To(Equal(2))
	})

	It("falls through to fuzzy matching on near-miss names", func() {
		outcome, err := matcher.Match(ctx, &scrape.CandidateRecord{
			Number:        999,
			DistrictClean: "Narkatiaganj Assembly",
		}, "BR")

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Stage).To(Equal(match.StageFuzzy))
		Expect(outcome.Constituency.Name).To(Equal("Narkatiaganj"))
	})

	It("prefers the closest candidate by edit distance", func() {
		outcome, err := matcher.Match(ctx, &scrape.CandidateRecord{
			Number:        999,
			DistrictClean: "Darbhang",
		}, "BR")

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Ambiguous).To(BeTrue())
		Expect(outcome.Constituency.Name).To(Equal("Darbhanga"))
	})

	It("breaks distance ties on the lowest constituency number", func() {
		// "Darbhanga Town" is equidistant from both Darbhanga rows
		outcome, err := matcher.Match(ctx, &scrape.CandidateRecord{
			Number:        999,
			DistrictClean: "Darbhanga Town",
		}, "BR")

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Ambiguous).To(BeTrue())
		Expect(outcome.Constituency.Name).To(Equal("Darbhanga Rural"))
		Expect(outcome.Constituency.ConstituencyNumber).To(Equal(60))
	})

	It("retries with aggressive normalization for punctuated names", func() {
		outcome, err := matcher.Match(ctx, &scrape.CandidateRecord{
			Number:        999,
			DistrictClean: "Valmiki-Nagar.",
		}, "BR")

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Matched()).To(BeTrue())
		Expect(outcome.Stage).To(Equal(match.StageAggressive))
		Expect(outcome.Constituency.Name).To(Equal("Valmiki Nagar"))
	})

	It("reports unmatched when the cascade exhausts", func() {
		outcome, err := matcher.Match(ctx, &scrape.CandidateRecord{
			Number:        999,
			DistrictClean: "Nowhere At All",
		}, "BR")

		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Matched()).To(BeFalse())
		Expect(outcome.Stage).To(Equal(match.StageUnmatched))
	})

	It("is deterministic across repeated calls", func() {
		rec := &scrape.CandidateRecord{Number: 999, DistrictClean: "Darbhanga Town"}

		first, err := matcher.Match(ctx, rec, "BR")
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 5; i++ {
			again, err := matcher.Match(ctx, rec, "BR")
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Constituency.ID).To(Equal(first.Constituency.ID))
			Expect(again.Stage).To(Equal(first.Stage))
		}
	})
})

var _ = Describe("name normalization", func() {
	It("collapses whitespace and lowercases", func() {
		Expect(match.NormalizeName("  Valmiki   Nagar ")).To(Equal("valmiki nagar"))
	})

	It("strips hyphens and periods aggressively", func() {
		Expect(match.AggressiveNormalizeName("Valmiki-Nagar.")).To(Equal("valmiki nagar"))
	})
})
