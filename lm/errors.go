package lm

import (
	"fmt"
	"strings"
)

// DimensionError indicates that the shapes of the inputs to a computation
// are incompatible, for example a response whose length differs from the
// number of rows of the design, or a design with fewer observations than
// columns.  It is fatal and never retried.
type DimensionError struct {
	Msg string
}

func (e *DimensionError) Error() string {
	return "lm: " + e.Msg
}

// Is reports whether target is a DimensionError, so that
// errors.Is(err, lm.ErrDimension) matches any dimension failure.
func (e *DimensionError) Is(target error) bool {
	_, ok := target.(*DimensionError)
	return ok
}

func dimErrorf(format string, args ...interface{}) error {
	return &DimensionError{Msg: fmt.Sprintf(format, args...)}
}

// RankDeficiencyError indicates that the design matrix does not have full
// column rank.  The fit can be retried with collinear-column dropping
// enabled, or the offending subset can be skipped by a caller that is
// searching over many designs.
type RankDeficiencyError struct {
	// Rank is the detected numerical rank of the design.
	Rank int

	// Cols is the number of columns of the design.
	Cols int

	// Dependent holds the names of the columns found to be linearly
	// dependent on columns appearing before them.
	Dependent []string
}

func (e *RankDeficiencyError) Error() string {
	if len(e.Dependent) == 0 {
		return fmt.Sprintf("lm: design matrix is rank deficient (rank %d of %d columns)", e.Rank, e.Cols)
	}
	return fmt.Sprintf("lm: design matrix is rank deficient (rank %d of %d columns; dependent: %s)",
		e.Rank, e.Cols, strings.Join(e.Dependent, ", "))
}

func (e *RankDeficiencyError) Is(target error) bool {
	_, ok := target.(*RankDeficiencyError)
	return ok
}

// NotNestedError indicates that a model comparison was requested between
// models that are not nested: the reduced model's columns are not a subset
// of the full model's columns.  This signals a usage error in the test
// construction and is never coerced.
type NotNestedError struct {
	// Extra holds the reduced-model columns missing from the full model.
	Extra []string
}

func (e *NotNestedError) Error() string {
	return fmt.Sprintf("lm: models are not nested (reduced model terms not in full model: %s)",
		strings.Join(e.Extra, ", "))
}

func (e *NotNestedError) Is(target error) bool {
	_, ok := target.(*NotNestedError)
	return ok
}

// InconsistentSampleError indicates that two models being compared were
// fit on different numbers of observations.
type InconsistentSampleError struct {
	NFull    int
	NReduced int
}

func (e *InconsistentSampleError) Error() string {
	return fmt.Sprintf("lm: models were fit on different samples (%d vs %d observations)",
		e.NFull, e.NReduced)
}

func (e *InconsistentSampleError) Is(target error) bool {
	_, ok := target.(*InconsistentSampleError)
	return ok
}

// UnknownTermError indicates a reference to a term that is not in the
// model, or whose coefficient is not estimable.
type UnknownTermError struct {
	Term string
}

func (e *UnknownTermError) Error() string {
	return fmt.Sprintf("lm: unknown term '%s'", e.Term)
}

func (e *UnknownTermError) Is(target error) bool {
	_, ok := target.(*UnknownTermError)
	return ok
}

// NonPositiveResponseError indicates that a computation requiring a
// strictly positive response (e.g. a Box-Cox transformation) was given a
// response with values at or below zero.  Switching to a shifted-log
// transformation recovers from this condition.
type NonPositiveResponseError struct {
	// Index is the position of the first offending response value.
	Index int
	Value float64
}

func (e *NonPositiveResponseError) Error() string {
	return fmt.Sprintf("lm: response is not strictly positive (y[%d] = %v)", e.Index, e.Value)
}

func (e *NonPositiveResponseError) Is(target error) bool {
	_, ok := target.(*NonPositiveResponseError)
	return ok
}

// Sentinel values for use with errors.Is.  Each matches any error of its
// type regardless of the details it carries.
var (
	ErrDimension           = &DimensionError{}
	ErrRankDeficient       = &RankDeficiencyError{}
	ErrNotNested           = &NotNestedError{}
	ErrInconsistentSample  = &InconsistentSampleError{}
	ErrUnknownTerm         = &UnknownTermError{}
	ErrNonPositiveResponse = &NonPositiveResponseError{}
)
