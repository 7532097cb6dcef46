package pubdate

import (
	"regexp"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
)

// Fields is the raw content of a PubDate element. A registry PubDate carries
// either the structured Year/Month/Day/Season group or a free-text MedlineDate.
type Fields struct {
	Year        string
	Month       string
	Day         string
	Season      string
	MedlineDate string
}

// Matcher recognizes one date encoding. Match returns false when the fields
// are not in its shape or do not form a valid date.
//
// The structured matchers each claim the most specific field group present:
// a less specific one declines when a field it would ignore is set. An
// invalid structured date therefore ends the cascade unmatched instead of
// degrading to a coarser date.
type Matcher struct {
	Name  string
	Match func(Fields) (domain.PublicationDate, bool)
}

// DefaultMatchers returns the cascade in priority order: structured shapes
// first, then MedlineDate patterns from the most to the least specific.
func DefaultMatchers() []Matcher {
	return []Matcher{
		{Name: "year_month_day", Match: matchYearMonthDay},
		{Name: "year_month", Match: matchYearMonth},
		{Name: "year_season", Match: matchYearSeason},
		{Name: "year_only", Match: matchYearOnly},
		{Name: "medline_year", Match: matchMedlineYear},
		{Name: "medline_month_range", Match: matchMedlineMonthRange},
		{Name: "medline_day_range", Match: matchMedlineDayRange},
		{Name: "medline_month", Match: matchMedlineMonth},
		{Name: "medline_month_range_cross_year", Match: matchMedlineMonthRangeCrossYear},
		{Name: "medline_year_range", Match: matchMedlineYearRange},
		{Name: "medline_month_day", Match: matchMedlineMonthDay},
		{Name: "medline_month_day_range", Match: matchMedlineMonthDayRange},
		{Name: "medline_season", Match: matchMedlineSeason},
		{Name: "medline_year_range_season", Match: matchMedlineYearRangeSeason},
		{Name: "medline_year_season_range", Match: matchMedlineYearSeasonRange},
	}
}

var (
	reYear              = regexp.MustCompile(`^(\d{4})$`)
	reMonthRangeDash    = regexp.MustCompile(`^(\d{4}) ([a-zA-Z]{3,})(.*)-(.*)[a-zA-Z]{3}$`)
	reMonthRangeSlash   = regexp.MustCompile(`^(\d{4}) ([a-zA-Z]{3,})(.*)/(.*)[a-zA-Z]{3}$`)
	reDayRange          = regexp.MustCompile(`^(\d{4}) ([a-zA-Z]{3,}) (\d{1,2})-\d{1,2}$`)
	reMonth             = regexp.MustCompile(`^(\d{4}) ([a-zA-Z]{3,})$`)
	reCrossYearNamed    = regexp.MustCompile(`^(\d{4}) ([a-zA-Z]{3,})-\d{4} [a-zA-Z]{3}$`)
	reCrossYearNumeric  = regexp.MustCompile(`^(\d{4}) (\d{1,2})-\d{1,2}$`)
	reYearRange         = regexp.MustCompile(`^(\d{4})-\d{4}$`)
	reMonthDay          = regexp.MustCompile(`^(\d{4}) ([a-zA-Z]{3,}) (\d{1,2})$`)
	reMonthDayRange     = regexp.MustCompile(`^(\d{4}) ([a-zA-Z]{3,}) (\d{1,2})-[a-zA-Z]{3} \d{1,2}$`)
	reYearSeason        = regexp.MustCompile(`^(\d{4}) ([a-zA-Z]+)$`)
	reSeasonYear        = regexp.MustCompile(`^([a-zA-Z]+) (\d{4})$`)
	reYearRangeSeason   = regexp.MustCompile(`^(\d{4})-\d{4} ([a-zA-Z]+)$`)
	reYearSeasonToRange = regexp.MustCompile(`^(\d{4})-\d{4} ([a-zA-Z]+)-[a-zA-Z]+$`)
)

func date(year, month, day int) (domain.PublicationDate, bool) {
	if !validDate(year, month, day) {
		return domain.PublicationDate{}, false
	}
	return domain.PublicationDate{Year: year, Month: month, Day: day}, true
}

func matchYearMonthDay(f Fields) (domain.PublicationDate, bool) {
	if f.Year == "" || f.Month == "" || f.Day == "" {
		return domain.PublicationDate{}, false
	}
	year, ok1 := number(f.Year)
	month, ok2 := monthNumber(f.Month)
	day, ok3 := number(f.Day)
	if !ok1 || !ok2 || !ok3 {
		return domain.PublicationDate{}, false
	}
	return date(year, month, day)
}

func matchYearMonth(f Fields) (domain.PublicationDate, bool) {
	if f.Year == "" || f.Month == "" || f.Day != "" {
		return domain.PublicationDate{}, false
	}
	year, ok1 := number(f.Year)
	month, ok2 := monthNumber(f.Month)
	if !ok1 || !ok2 {
		return domain.PublicationDate{}, false
	}
	return date(year, month, defaultDay)
}

func matchYearSeason(f Fields) (domain.PublicationDate, bool) {
	if f.Year == "" || f.Season == "" || f.Month != "" {
		return domain.PublicationDate{}, false
	}
	year, ok1 := number(f.Year)
	month, ok2 := seasonMonth(f.Season)
	if !ok1 || !ok2 {
		return domain.PublicationDate{}, false
	}
	return date(year, month, defaultDay)
}

func matchYearOnly(f Fields) (domain.PublicationDate, bool) {
	if f.Year == "" || f.Month != "" || f.Season != "" {
		return domain.PublicationDate{}, false
	}
	year, ok := number(f.Year)
	if !ok {
		return domain.PublicationDate{}, false
	}
	return date(year, defaultMonth, defaultDay)
}

// medline applies re to the MedlineDate text and returns the submatches.
func medline(f Fields, patterns ...*regexp.Regexp) []string {
	if f.MedlineDate == "" {
		return nil
	}
	for _, re := range patterns {
		if m := re.FindStringSubmatch(f.MedlineDate); m != nil {
			return m
		}
	}
	return nil
}

// "1998"
func matchMedlineYear(f Fields) (domain.PublicationDate, bool) {
	m := medline(f, reYear)
	if m == nil {
		return domain.PublicationDate{}, false
	}
	year, _ := number(m[1])
	return date(year, defaultMonth, defaultDay)
}

// "1998 Jul-Aug", "1998 Dec-1999 Jan", "1998 Jul/Aug"
func matchMedlineMonthRange(f Fields) (domain.PublicationDate, bool) {
	m := medline(f, reMonthRangeDash, reMonthRangeSlash)
	if m == nil {
		return domain.PublicationDate{}, false
	}
	year, _ := number(m[1])
	month, ok := monthName(m[2])
	if !ok {
		return domain.PublicationDate{}, false
	}
	return date(year, month, defaultDay)
}

// "1998 Jul 12-15"
func matchMedlineDayRange(f Fields) (domain.PublicationDate, bool) {
	m := medline(f, reDayRange)
	if m == nil {
		return domain.PublicationDate{}, false
	}
	year, _ := number(m[1])
	month, ok := monthName(m[2])
	if !ok {
		return domain.PublicationDate{}, false
	}
	day, _ := number(m[3])
	return date(year, month, day)
}

// "1998 July"
func matchMedlineMonth(f Fields) (domain.PublicationDate, bool) {
	m := medline(f, reMonth)
	if m == nil {
		return domain.PublicationDate{}, false
	}
	year, _ := number(m[1])
	month, ok := monthName(m[2])
	if !ok {
		return domain.PublicationDate{}, false
	}
	return date(year, month, defaultDay)
}

// "1998 Dec-1999 Jan" or "1998 11-12"
func matchMedlineMonthRangeCrossYear(f Fields) (domain.PublicationDate, bool) {
	m := medline(f, reCrossYearNamed, reCrossYearNumeric)
	if m == nil {
		return domain.PublicationDate{}, false
	}
	year, _ := number(m[1])
	month, ok := monthNumber(m[2])
	if !ok {
		return domain.PublicationDate{}, false
	}
	return date(year, month, defaultDay)
}

// "1976-1977"
func matchMedlineYearRange(f Fields) (domain.PublicationDate, bool) {
	m := medline(f, reYearRange)
	if m == nil {
		return domain.PublicationDate{}, false
	}
	year, _ := number(m[1])
	return date(year, defaultMonth, defaultDay)
}

// "1998 Jul 12"
func matchMedlineMonthDay(f Fields) (domain.PublicationDate, bool) {
	m := medline(f, reMonthDay)
	if m == nil {
		return domain.PublicationDate{}, false
	}
	year, _ := number(m[1])
	month, ok := monthName(m[2])
	if !ok {
		return domain.PublicationDate{}, false
	}
	day, _ := number(m[3])
	return date(year, month, day)
}

// "1998 Jul 28-Aug 3"
func matchMedlineMonthDayRange(f Fields) (domain.PublicationDate, bool) {
	m := medline(f, reMonthDayRange)
	if m == nil {
		return domain.PublicationDate{}, false
	}
	year, _ := number(m[1])
	month, ok := monthName(m[2])
	if !ok {
		return domain.PublicationDate{}, false
	}
	day, _ := number(m[3])
	return date(year, month, day)
}

// "1976 Winter" or "Winter 1976"
func matchMedlineSeason(f Fields) (domain.PublicationDate, bool) {
	var yearText, seasonText string
	if m := medline(f, reYearSeason); m != nil {
		yearText, seasonText = m[1], m[2]
	} else if m := medline(f, reSeasonYear); m != nil {
		seasonText, yearText = m[1], m[2]
	} else {
		return domain.PublicationDate{}, false
	}
	year, _ := number(yearText)
	month, ok := seasonMonth(seasonText)
	if !ok {
		return domain.PublicationDate{}, false
	}
	return date(year, month, defaultDay)
}

// "1976-1977 Winter"
func matchMedlineYearRangeSeason(f Fields) (domain.PublicationDate, bool) {
	m := medline(f, reYearRangeSeason)
	if m == nil {
		return domain.PublicationDate{}, false
	}
	year, _ := number(m[1])
	month, ok := seasonMonth(m[2])
	if !ok {
		return domain.PublicationDate{}, false
	}
	return date(year, month, defaultDay)
}

// "1977-1978 Fall-Winter"
func matchMedlineYearSeasonRange(f Fields) (domain.PublicationDate, bool) {
	m := medline(f, reYearSeasonToRange)
	if m == nil {
		return domain.PublicationDate{}, false
	}
	year, _ := number(m[1])
	month, ok := seasonMonth(m[2])
	if !ok {
		return domain.PublicationDate{}, false
	}
	return date(year, month, defaultDay)
}
