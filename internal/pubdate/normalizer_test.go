package pubdate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/xmltree"
)

func pubDateNode(t *testing.T, inner string) xmltree.Node {
	t.Helper()
	doc, err := xmltree.ParseString("<PubDate>" + inner + "</PubDate>")
	require.NoError(t, err)
	node := doc.First("/PubDate")
	require.NotNil(t, node)
	return node
}

func TestNormalize_Structured(t *testing.T) {
	tests := []struct {
		name    string
		inner   string
		want    domain.PublicationDate
		matcher string
	}{
		{
			name:    "year month name day",
			inner:   "<Year>2020</Year><Month>Jan</Month><Day>15</Day>",
			want:    domain.PublicationDate{Year: 2020, Month: 1, Day: 15},
			matcher: "year_month_day",
		},
		{
			name:    "numeric month",
			inner:   "<Year>2018</Year><Month>11</Month><Day>3</Day>",
			want:    domain.PublicationDate{Year: 2018, Month: 11, Day: 3},
			matcher: "year_month_day",
		},
		{
			name:    "upper case month",
			inner:   "<Year>2018</Year><Month>SEPT</Month><Day>30</Day>",
			want:    domain.PublicationDate{Year: 2018, Month: 9, Day: 30},
			matcher: "year_month_day",
		},
		{
			name:    "year and month",
			inner:   "<Year>2001</Year><Month>Mar</Month>",
			want:    domain.PublicationDate{Year: 2001, Month: 3, Day: 1},
			matcher: "year_month",
		},
		{
			name:    "misspelled month",
			inner:   "<Year>2001</Year><Month>Novembre</Month>",
			want:    domain.PublicationDate{Year: 2001, Month: 11, Day: 1},
			matcher: "year_month",
		},
		{
			name:    "year and season",
			inner:   "<Year>1995</Year><Season>Summer</Season>",
			want:    domain.PublicationDate{Year: 1995, Month: 7, Day: 1},
			matcher: "year_season",
		},
		{
			name:    "year only",
			inner:   "<Year>1987</Year>",
			want:    domain.PublicationDate{Year: 1987, Month: 1, Day: 1},
			matcher: "year_only",
		},
		{
			name:    "day without month is ignored",
			inner:   "<Year>1987</Year><Day>12</Day>",
			want:    domain.PublicationDate{Year: 1987, Month: 1, Day: 1},
			matcher: "year_only",
		},
		{
			name:    "month wins over season",
			inner:   "<Year>1995</Year><Month>Mar</Month><Season>Summer</Season>",
			want:    domain.PublicationDate{Year: 1995, Month: 3, Day: 1},
			matcher: "year_month",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, name, err := New().NormalizeFields(FieldsFrom(pubDateNode(t, tt.inner)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.matcher, name)
		})
	}
}

func TestNormalize_MedlineDate(t *testing.T) {
	tests := []struct {
		text    string
		want    domain.PublicationDate
		matcher string
	}{
		{"1998", domain.PublicationDate{Year: 1998, Month: 1, Day: 1}, "medline_year"},
		{"1998 Jul-Aug", domain.PublicationDate{Year: 1998, Month: 7, Day: 1}, "medline_month_range"},
		{"1998 Jul/Aug", domain.PublicationDate{Year: 1998, Month: 7, Day: 1}, "medline_month_range"},
		{"1998 Dec-1999 Jan", domain.PublicationDate{Year: 1998, Month: 12, Day: 1}, "medline_month_range"},
		{"1998 Jul 12-15", domain.PublicationDate{Year: 1998, Month: 7, Day: 12}, "medline_day_range"},
		{"1999 Jul", domain.PublicationDate{Year: 1999, Month: 7, Day: 1}, "medline_month"},
		{"1999 September", domain.PublicationDate{Year: 1999, Month: 9, Day: 1}, "medline_month"},
		{"1998 11-12", domain.PublicationDate{Year: 1998, Month: 11, Day: 1}, "medline_month_range_cross_year"},
		{"1976-1977", domain.PublicationDate{Year: 1976, Month: 1, Day: 1}, "medline_year_range"},
		{"2003 Mar 5", domain.PublicationDate{Year: 2003, Month: 3, Day: 5}, "medline_month_day"},
		{"2003 Mar 28-Apr 3", domain.PublicationDate{Year: 2003, Month: 3, Day: 28}, "medline_month_day_range"},
		{"1976 Winter", domain.PublicationDate{Year: 1976, Month: 1, Day: 1}, "medline_season"},
		{"Winter 1976", domain.PublicationDate{Year: 1976, Month: 1, Day: 1}, "medline_season"},
		{"Autumn 1980", domain.PublicationDate{Year: 1980, Month: 10, Day: 1}, "medline_season"},
		{"1976-1977 Winter", domain.PublicationDate{Year: 1976, Month: 1, Day: 1}, "medline_year_range_season"},
		{"1977-1978 Fall-Winter", domain.PublicationDate{Year: 1977, Month: 10, Day: 1}, "medline_year_season_range"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, name, err := New().NormalizeFields(Fields{MedlineDate: tt.text})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.matcher, name)
		})
	}
}

func TestNormalize_CollapsesMedlineWhitespace(t *testing.T) {
	got, err := Normalize(pubDateNode(t, "<MedlineDate>  1999   Jul </MedlineDate>"))
	require.NoError(t, err)
	assert.Equal(t, domain.PublicationDate{Year: 1999, Month: 7, Day: 1}, got)
}

func TestNormalize_Unparseable(t *testing.T) {
	tests := []struct {
		name  string
		inner string
	}{
		{"empty element", ""},
		{"unknown words", "<MedlineDate>Date unknown</MedlineDate>"},
		{"unknown season range", "<MedlineDate>2000 Spring-Summer</MedlineDate>"},
		{"non numeric year", "<Year>MCMXC</Year>"},
		{"unknown month in text", "<MedlineDate>1999 Foo</MedlineDate>"},
		{"unknown structured month", "<Year>2019</Year><Month>Foo</Month>"},
		{"impossible structured day", "<Year>2019</Year><Month>Feb</Month><Day>30</Day>"},
		{"month out of range", "<Year>2019</Year><Month>13</Month><Day>1</Day>"},
		{"unknown structured season", "<Year>2019</Year><Season>Monsoon</Season>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(pubDateNode(t, tt.inner))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnparseable))

			var ue *UnparseableError
			require.True(t, errors.As(err, &ue))
		})
	}
}

func TestNormalize_FirstMatchWins(t *testing.T) {
	calls := make([]string, 0, 3)
	matcher := func(name string, ok bool) Matcher {
		return Matcher{Name: name, Match: func(Fields) (domain.PublicationDate, bool) {
			calls = append(calls, name)
			if !ok {
				return domain.PublicationDate{}, false
			}
			return domain.PublicationDate{Year: 2000, Month: 1, Day: 1}, true
		}}
	}

	n := New(matcher("first", false), matcher("second", true), matcher("third", true))
	_, name, err := n.NormalizeFields(Fields{})
	require.NoError(t, err)
	assert.Equal(t, "second", name)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDefaultMatchers_Order(t *testing.T) {
	matchers := DefaultMatchers()
	require.Len(t, matchers, 15)
	assert.Equal(t, "year_month_day", matchers[0].Name)
	assert.Equal(t, "year_only", matchers[3].Name)
	assert.Equal(t, "medline_year_season_range", matchers[14].Name)
}

func TestMonthNumber(t *testing.T) {
	m, ok := monthNumber("may")
	assert.True(t, ok)
	assert.Equal(t, 5, m)

	_, ok = monthNumber("13")
	assert.False(t, ok)

	_, ok = monthNumber("Smarch")
	assert.False(t, ok)
}
