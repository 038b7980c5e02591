package normalize

import (
	"regexp"
	"strconv"
)

// Period label grammar. A column is a period column only if it matches
// one of these exactly: a bare 4-digit year, or year + space + sub-year
// label. Anything else is treated as an ordinary data column.
var (
	annualRe     = regexp.MustCompile(`^(\d{4})$`)
	semiannualRe = regexp.MustCompile(`^(\d{4}) ([1-4]H)$`)
	quarterlyRe  = regexp.MustCompile(`^(\d{4}) ([1-4]Q)$`)
	monthlyRe    = regexp.MustCompile(`^(\d{4}) (Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)$`)
)

// Period is a parsed period column label.
type Period struct {
	Year  int
	Label string    // the full label, e.g. "2021 1H"; equals the year alone when annual
	Freq  Frequency // the label family this period belongs to
}

// ParsePeriod parses a column label against the period grammar.
func ParsePeriod(label string) (Period, bool) {
	if m := annualRe.FindStringSubmatch(label); m != nil {
		year, _ := strconv.Atoi(m[1])
		return Period{Year: year, Label: label, Freq: Annual}, true
	}
	if m := semiannualRe.FindStringSubmatch(label); m != nil {
		year, _ := strconv.Atoi(m[1])
		return Period{Year: year, Label: label, Freq: Semiannual}, true
	}
	if m := quarterlyRe.FindStringSubmatch(label); m != nil {
		year, _ := strconv.Atoi(m[1])
		return Period{Year: year, Label: label, Freq: Quarterly}, true
	}
	if m := monthlyRe.FindStringSubmatch(label); m != nil {
		year, _ := strconv.Atoi(m[1])
		return Period{Year: year, Label: label, Freq: Monthly}, true
	}
	return Period{}, false
}

// Classify infers the frequency of a wide table from its column
// labels. Mixed-frequency tables are not supported: the first family
// with any evidence wins, checked semiannual, then quarterly, then
// monthly. Annual is the default when no sub-year labels are present.
func Classify(columns []string) Frequency {
	seen := map[Frequency]bool{}
	for _, col := range columns {
		if p, ok := ParsePeriod(col); ok {
			seen[p.Freq] = true
		}
	}
	for _, f := range []Frequency{Semiannual, Quarterly, Monthly} {
		if seen[f] {
			return f
		}
	}
	return Annual
}

// PeriodColumns returns the column labels matching the period grammar,
// in table order.
func PeriodColumns(columns []string) []string {
	var out []string
	for _, col := range columns {
		if _, ok := ParsePeriod(col); ok {
			out = append(out, col)
		}
	}
	return out
}
