package parse

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("ParseDate", func() {
	DescribeTable("valid dates",
		func(input string, expected time.Time) {
			t, ok := ParseDate(input)
			Expect(ok).To(BeTrue())
			Expect(t).To(Equal(expected))
		},
		Entry("ISO", "2024-03-15", date(2024, time.March, 15)),
		Entry("ISO with slashes", "2024/03/15", date(2024, time.March, 15)),
		Entry("US month first", "10/19/2024", date(2024, time.October, 19)),
		Entry("ambiguous slash resolves month first", "03/04/2024", date(2024, time.March, 4)),
		Entry("day first when month slot is impossible", "19/10/2024", date(2024, time.October, 19)),
		Entry("dotted European", "15.03.2024", date(2024, time.March, 15)),
		Entry("dashed day first", "15-03-2024", date(2024, time.March, 15)),
		Entry("two-digit year slash", "10/19/24", date(2024, time.October, 19)),
		Entry("two-digit year dotted", "15.03.24", date(2024, time.March, 15)),
		Entry("two-digit year before the epoch cutoff", "01.02.99", date(1999, time.February, 1)),
	)

	DescribeTable("rejected input",
		func(input string) {
			_, ok := ParseDate(input)
			Expect(ok).To(BeFalse())
		},
		Entry("no date", "no date here"),
		Entry("calendar-invalid day", "31.02.2024"),
		Entry("month out of range both ways", "13/13/2024"),
		Entry("empty", ""),
	)
})

var _ = Describe("ExtractDate", func() {
	It("finds a date embedded next to a time", func() {
		text := "COFFEE SHOP\n123 Main St\n10/19/2024 3:45 PM\nLatte 4.50"
		t := ExtractDate(text)
		Expect(t).NotTo(BeNil())
		Expect(*t).To(Equal(date(2024, time.October, 19)))
	})

	It("prefers the ISO form when several formats appear", func() {
		text := "Printed 15.03.2024\nRef 2024-01-02"
		t := ExtractDate(text)
		Expect(t).NotTo(BeNil())
		Expect(*t).To(Equal(date(2024, time.January, 2)))
	})

	It("skips a calendar-invalid match and keeps searching", func() {
		text := "batch 31.02.2024\nsold 15.03.2024"
		t := ExtractDate(text)
		Expect(t).NotTo(BeNil())
		Expect(*t).To(Equal(date(2024, time.March, 15)))
	})

	It("returns nil when the text has no date", func() {
		Expect(ExtractDate("Latte 4.50\nMuffin 4.00")).To(BeNil())
	})
})

var _ = Describe("FormatDate", func() {
	It("renders ISO", func() {
		Expect(FormatDate(date(2024, time.October, 19))).To(Equal("2024-10-19"))
	})
})
