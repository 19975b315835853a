package lm

import (
	"github.com/kshedden/dstream/dstream"
	"gonum.org/v1/gonum/mat"
)

// InterceptName is the column name given to the intercept column of a
// DesignMatrix constructed with an intercept.
const InterceptName = "intercept"

// DesignMatrix holds a design matrix and its response vector.  All columns
// are tracked by name.  A DesignMatrix is immutable once constructed;
// Select and WithResponse return new values sharing the unchanged parts.
type DesignMatrix struct {

	// Column names, with the intercept first when present.
	names []string

	// Column-major predictor data, parallel to names.
	cols [][]float64

	// The response vector.
	y []float64

	// Name of the response, for reporting.
	yname string

	icept bool
}

// NewDesignMatrix constructs a DesignMatrix from column-major predictor
// data.  The columns of x are parallel to names.  If icept is true an
// intercept column of ones is prepended.  The input slices are copied.
func NewDesignMatrix(x [][]float64, names []string, y []float64, icept bool) (*DesignMatrix, error) {

	if len(x) != len(names) {
		return nil, dimErrorf("have %d predictor columns but %d names", len(x), len(names))
	}
	n := len(y)
	if n == 0 {
		return nil, dimErrorf("response is empty")
	}
	for j, c := range x {
		if len(c) != n {
			return nil, dimErrorf("column '%s' has %d values but the response has %d",
				names[j], len(c), n)
		}
	}

	dm := &DesignMatrix{
		yname: "y",
		icept: icept,
	}

	if icept {
		ones := make([]float64, n)
		for i := range ones {
			ones[i] = 1
		}
		dm.names = append(dm.names, InterceptName)
		dm.cols = append(dm.cols, ones)
	}

	for j, c := range x {
		cc := make([]float64, n)
		copy(cc, c)
		dm.names = append(dm.names, names[j])
		dm.cols = append(dm.cols, cc)
	}

	dm.y = make([]float64, n)
	copy(dm.y, y)

	return dm, nil
}

// FromDstream constructs a DesignMatrix from a column-oriented data
// stream.  The response is the column named yname, the predictors are the
// columns named in xnames, in order.  All named columns must hold float64
// data.  If icept is true an intercept column of ones is prepended.
func FromDstream(ds dstream.Dstream, yname string, xnames []string, icept bool) (*DesignMatrix, error) {

	pos := make(map[string]int)
	for k, na := range ds.Names() {
		pos[na] = k
	}

	ypos, ok := pos[yname]
	if !ok {
		return nil, &UnknownTermError{Term: yname}
	}

	xpos := make([]int, len(xnames))
	for j, na := range xnames {
		k, ok := pos[na]
		if !ok {
			return nil, &UnknownTermError{Term: na}
		}
		xpos[j] = k
	}

	var y []float64
	xcols := make([][]float64, len(xnames))

	ds.Reset()
	for ds.Next() {
		y = append(y, ds.GetPos(ypos).([]float64)...)
		for j, k := range xpos {
			xcols[j] = append(xcols[j], ds.GetPos(k).([]float64)...)
		}
	}

	dm, err := NewDesignMatrix(xcols, xnames, y, icept)
	if err != nil {
		return nil, err
	}
	dm.yname = yname

	return dm, nil
}

// NumObs returns the number of observations.
func (dm *DesignMatrix) NumObs() int {
	return len(dm.y)
}

// NumCols returns the number of columns of the design, counting the
// intercept column when present.
func (dm *DesignMatrix) NumCols() int {
	return len(dm.cols)
}

// NumPredictors returns the number of predictor columns, excluding the
// intercept.
func (dm *DesignMatrix) NumPredictors() int {
	if dm.icept {
		return len(dm.cols) - 1
	}
	return len(dm.cols)
}

// HasIntercept reports whether the design contains an intercept column.
func (dm *DesignMatrix) HasIntercept() bool {
	return dm.icept
}

// Names returns the column names of the design, including the intercept
// when present.
func (dm *DesignMatrix) Names() []string {
	na := make([]string, len(dm.names))
	copy(na, dm.names)
	return na
}

// PredictorNames returns the predictor column names, excluding the
// intercept.
func (dm *DesignMatrix) PredictorNames() []string {
	na := dm.Names()
	if dm.icept {
		na = na[1:]
	}
	return na
}

// ResponseName returns the name of the response column.
func (dm *DesignMatrix) ResponseName() string {
	return dm.yname
}

// Response returns a copy of the response vector.
func (dm *DesignMatrix) Response() []float64 {
	y := make([]float64, len(dm.y))
	copy(y, dm.y)
	return y
}

// Column returns a copy of the named column's values.
func (dm *DesignMatrix) Column(name string) ([]float64, error) {
	for j, na := range dm.names {
		if na == name {
			c := make([]float64, len(dm.cols[j]))
			copy(c, dm.cols[j])
			return c, nil
		}
	}
	return nil, &UnknownTermError{Term: name}
}

// Select returns a new DesignMatrix containing the predictors at the
// given positions (indices into PredictorNames, in the given order),
// together with the intercept column when the receiver has one, and the
// same response.  The column data are shared, not copied.
func (dm *DesignMatrix) Select(predictors []int) (*DesignMatrix, error) {

	q := dm.NumPredictors()
	off := 0
	if dm.icept {
		off = 1
	}

	sel := &DesignMatrix{
		y:     dm.y,
		yname: dm.yname,
		icept: dm.icept,
	}
	if dm.icept {
		sel.names = append(sel.names, dm.names[0])
		sel.cols = append(sel.cols, dm.cols[0])
	}

	for _, j := range predictors {
		if j < 0 || j >= q {
			return nil, dimErrorf("predictor index %d out of range [0, %d)", j, q)
		}
		sel.names = append(sel.names, dm.names[off+j])
		sel.cols = append(sel.cols, dm.cols[off+j])
	}

	return sel, nil
}

// WithResponse returns a new DesignMatrix with the same columns and the
// given response.  The response is copied; the column data are shared.
func (dm *DesignMatrix) WithResponse(y []float64) (*DesignMatrix, error) {

	if len(y) != len(dm.y) {
		return nil, dimErrorf("new response has %d values, design has %d observations",
			len(y), len(dm.y))
	}

	yy := make([]float64, len(y))
	copy(yy, y)

	return &DesignMatrix{
		names: dm.names,
		cols:  dm.cols,
		y:     yy,
		yname: dm.yname,
		icept: dm.icept,
	}, nil
}

// WithColumn returns a new DesignMatrix in which the named predictor
// column is replaced by the given values.  The intercept column cannot be
// replaced.
func (dm *DesignMatrix) WithColumn(name string, vals []float64) (*DesignMatrix, error) {

	if len(vals) != len(dm.y) {
		return nil, dimErrorf("new column has %d values, design has %d observations",
			len(vals), len(dm.y))
	}
	if dm.icept && name == dm.names[0] {
		return nil, &UnknownTermError{Term: name}
	}

	jx := -1
	for j, na := range dm.names {
		if na == name {
			jx = j
			break
		}
	}
	if jx == -1 {
		return nil, &UnknownTermError{Term: name}
	}

	cols := make([][]float64, len(dm.cols))
	copy(cols, dm.cols)
	vv := make([]float64, len(vals))
	copy(vv, vals)
	cols[jx] = vv

	return &DesignMatrix{
		names: dm.names,
		cols:  cols,
		y:     dm.y,
		yname: dm.yname,
		icept: dm.icept,
	}, nil
}

// matrix assembles the design columns into a dense matrix.  cols indexes
// into the design's columns (including the intercept position).
func (dm *DesignMatrix) matrix(cols []int) *mat.Dense {

	n := len(dm.y)
	x := mat.NewDense(n, len(cols), nil)
	for j, k := range cols {
		c := dm.cols[k]
		for i := 0; i < n; i++ {
			x.Set(i, j, c[i])
		}
	}

	return x
}
