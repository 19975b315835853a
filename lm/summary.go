package lm

import (
	"bytes"
	"fmt"
	"strings"
)

// Fmter formats the elements of a column of values for display.
type Fmter func(interface{}, string) []string

// SummaryTable holds the summary values for a fitted model or a search
// result, and renders them as text.
type SummaryTable struct {

	// Title
	Title string

	// Column names
	ColNames []string

	// Formatters for the column values
	ColFmt []Fmter

	// Cols[j] is the j^th column.  Its concrete type should be a
	// slice, e.g. of numbers or strings.
	Cols []interface{}

	// Values at the top of the summary
	Top []string

	// Messages displayed below the table
	Msg []string

	// Total width of the table
	tw int
}

// Draw a line constructed of the given character filling the width of
// the table.
func (s *SummaryTable) line(c string) string {
	return strings.Repeat(c, s.tw) + "\n"
}

// Construct the upper part of the table, which contains summary values
// for the model, laid out in two columns.
func (s *SummaryTable) top(gap int) string {

	w := []int{0, 0}
	for j, x := range s.Top {
		if len(x) > w[j%2] {
			w[j%2] = len(x)
		}
	}

	var b bytes.Buffer
	for j, x := range s.Top {
		c := fmt.Sprintf("%%-%ds", w[j%2])
		b.WriteString(fmt.Sprintf(c, x))
		if j%2 == 1 {
			b.WriteString("\n")
		} else {
			b.WriteString(strings.Repeat(" ", gap))
		}
	}
	if len(s.Top)%2 == 1 {
		b.WriteString("\n")
	}

	return b.String()
}

// String returns the table as a string.
func (s *SummaryTable) String() string {

	var tab [][]string
	var wx []int
	for j, c := range s.Cols {
		u := s.ColFmt[j](c, s.ColNames[j])
		tab = append(tab, u)
		w := len(s.ColNames[j])
		for _, v := range u {
			if len(v) > w {
				w = len(v)
			}
		}
		wx = append(wx, w)
	}

	gap := 10

	s.tw = 0
	for _, w := range wx {
		s.tw += w
	}
	if s.tw < len(s.Title) {
		s.tw = len(s.Title)
	}

	var buf bytes.Buffer

	// Center the title
	kr := (s.tw - len(s.Title)) / 2
	if kr < 0 {
		kr = 0
	}
	buf.WriteString(strings.Repeat(" ", kr))
	buf.WriteString(s.Title)
	buf.WriteString("\n")

	buf.WriteString(s.line("="))
	if len(s.Top) > 0 {
		buf.WriteString(s.top(gap))
		buf.WriteString(s.line("-"))
	}

	for j, c := range s.ColNames {
		f := fmt.Sprintf("%%%ds", wx[j])
		buf.WriteString(fmt.Sprintf(f, c))
	}
	buf.WriteString("\n")
	buf.WriteString(s.line("-"))

	nrow := 0
	if len(tab) > 0 {
		nrow = len(tab[0])
	}
	for i := 0; i < nrow; i++ {
		for j := 0; j < len(tab); j++ {
			f := fmt.Sprintf("%%%ds", wx[j])
			buf.WriteString(fmt.Sprintf(f, tab[j][i]))
		}
		buf.WriteString("\n")
	}
	buf.WriteString(s.line("-"))

	for _, msg := range s.Msg {
		buf.WriteString(msg + "\n")
	}

	return buf.String()
}

// FmtString formats a column of strings, left padded to a common width.
func FmtString(v interface{}, name string) []string {
	x := v.([]string)
	u := make([]string, len(x))
	for i, s := range x {
		u[i] = " " + s
	}
	return u
}

// FmtFloat formats a column of floats with four significant decimals.
func FmtFloat(v interface{}, name string) []string {
	x := v.([]float64)
	u := make([]string, len(x))
	for i, f := range x {
		u[i] = fmt.Sprintf(" %10.4f", f)
	}
	return u
}

// FmtInt formats a column of integers.
func FmtInt(v interface{}, name string) []string {
	x := v.([]int)
	u := make([]string, len(x))
	for i, f := range x {
		u[i] = fmt.Sprintf(" %d", f)
	}
	return u
}

// Summary returns a coefficient table for the fitted model: term,
// estimate, standard error, t statistic, p-value.  The displayed values
// are rounded for presentation; the numeric accessors are exact.
func (rslt *OLSResults) Summary() *SummaryTable {

	names := rslt.KeptNames()
	coeff := make([]float64, len(names))
	se := make([]float64, len(names))
	ts := make([]float64, len(names))
	pv := make([]float64, len(names))

	allse := rslt.StdErr()
	allts := rslt.TStats()
	allpv := rslt.PValues()
	for jk, j := range rslt.kept {
		coeff[jk] = rslt.coeff[j]
		se[jk] = allse[j]
		ts[jk] = allts[j]
		pv[jk] = allpv[j]
	}

	top := []string{
		fmt.Sprintf("Response: %s", rslt.dm.ResponseName()),
		fmt.Sprintf("N: %d", rslt.NumObs()),
		fmt.Sprintf("RSS: %.4f", rslt.rss),
		fmt.Sprintf("Resid. DF: %d", rslt.df),
		fmt.Sprintf("R-squared: %.4f", rslt.r2),
		fmt.Sprintf("Adj. R-squared: %.4f", rslt.adjr2),
		fmt.Sprintf("Cond. number: %.1f", rslt.cond),
	}

	s := &SummaryTable{
		Title:    "Least squares regression",
		ColNames: []string{"Term", "Estimate", "Std Err", "t", "P>|t|"},
		ColFmt:   []Fmter{FmtString, FmtFloat, FmtFloat, FmtFloat, FmtFloat},
		Cols:     []interface{}{names, coeff, se, ts, pv},
		Top:      top,
	}

	if dropped := rslt.DroppedNames(); len(dropped) > 0 {
		s.Msg = append(s.Msg,
			fmt.Sprintf("Dropped as not estimable: %s", strings.Join(dropped, ", ")))
	}

	return s
}
