package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("isUniqueViolation", func() {
	It("detects a pgx unique violation", func() {
		Expect(isUniqueViolation(&pgconn.PgError{Code: "23505"})).To(BeTrue())
	})

	It("detects the violation through error wrapping", func() {
		err := fmt.Errorf("save failed: %w", &pgconn.PgError{Code: "23505"})
		Expect(isUniqueViolation(err)).To(BeTrue())
	})

	It("ignores other postgres error classes", func() {
		Expect(isUniqueViolation(&pgconn.PgError{Code: "23503"})).To(BeFalse())
	})

	It("ignores non-postgres errors", func() {
		Expect(isUniqueViolation(errors.New("connection reset"))).To(BeFalse())
		Expect(isUniqueViolation(nil)).To(BeFalse())
	})
})
