package lm

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// OLSResults describes the results of a fitted least squares regression.
// A results value is immutable; refitting with a new response produces a
// new value.
type OLSResults struct {
	dm *DesignMatrix

	// All column names of the design, including the intercept.
	names []string

	// Positions (into names) of the columns whose coefficients were
	// estimated.  Columns dropped for collinearity are absent.
	kept []int

	// Coefficients, parallel to names.  NaN marks a coefficient that
	// is not estimable.
	coeff []float64

	fitted []float64
	resid  []float64

	rank   int
	df     int
	rss    float64
	tss    float64
	sigma2 float64
	r2     float64
	adjr2  float64

	// 2-norm condition number of the (kept columns of the) design.
	cond float64

	// Hat matrix diagonal.
	leverage []float64

	// The R factor of the QR decomposition of the kept columns, and
	// the unscaled covariance basis (X'X)^{-1} derived from it.
	r      *mat.Dense
	xtxinv *mat.Dense

	// Refit operator R^{-1}Q' and the kept-column design.  Refit only
	// multiplies by these, never solves through the factorization, so
	// many goroutines can refit off one results value at once.
	solve *mat.Dense
	x     *mat.Dense

	// Derived lazily on first use, from any goroutine.
	donce   sync.Once
	stderr  []float64
	tstats  []float64
	pvalues []float64
}

// Design returns the design matrix the model was fit to.
func (rslt *OLSResults) Design() *DesignMatrix { return rslt.dm }

// Names returns the column names of the design, including the intercept.
func (rslt *OLSResults) Names() []string {
	na := make([]string, len(rslt.names))
	copy(na, rslt.names)
	return na
}

// Coeffs returns the coefficient estimates, parallel to Names.  NaN marks
// a coefficient that is not estimable.
func (rslt *OLSResults) Coeffs() []float64 {
	c := make([]float64, len(rslt.coeff))
	copy(c, rslt.coeff)
	return c
}

// FittedValues returns the fitted values.
func (rslt *OLSResults) FittedValues() []float64 {
	f := make([]float64, len(rslt.fitted))
	copy(f, rslt.fitted)
	return f
}

// Residuals returns the residuals.
func (rslt *OLSResults) Residuals() []float64 {
	r := make([]float64, len(rslt.resid))
	copy(r, rslt.resid)
	return r
}

// Leverage returns the hat matrix diagonal.
func (rslt *OLSResults) Leverage() []float64 {
	h := make([]float64, len(rslt.leverage))
	copy(h, rslt.leverage)
	return h
}

// NumObs returns the number of observations used to fit the model.
func (rslt *OLSResults) NumObs() int { return len(rslt.resid) }

// Rank returns the numerical rank of the design.
func (rslt *OLSResults) Rank() int { return rslt.rank }

// ResidDF returns the residual degrees of freedom, n - rank.
func (rslt *OLSResults) ResidDF() int { return rslt.df }

// RSS returns the residual sum of squares.
func (rslt *OLSResults) RSS() float64 { return rslt.rss }

// TSS returns the total sum of squares (centered when the model has an
// intercept).
func (rslt *OLSResults) TSS() float64 { return rslt.tss }

// Sigma2 returns the residual variance estimate RSS / (n - rank), or NaN
// when there are no residual degrees of freedom.
func (rslt *OLSResults) Sigma2() float64 { return rslt.sigma2 }

// RSquared returns the coefficient of determination.
func (rslt *OLSResults) RSquared() float64 { return rslt.r2 }

// AdjRSquared returns the adjusted coefficient of determination.
func (rslt *OLSResults) AdjRSquared() float64 { return rslt.adjr2 }

// Cond returns the 2-norm condition number of the design.  A large value
// is a diagnostic for near-collinearity, not an error.
func (rslt *OLSResults) Cond() float64 { return rslt.cond }

// Position returns the position of the named term among the estimated
// coefficients.  A term that is not in the model, or whose coefficient
// was dropped as not estimable, is an UnknownTermError.
func (rslt *OLSResults) Position(term string) (int, error) {
	for jk, j := range rslt.kept {
		if rslt.names[j] == term {
			return jk, nil
		}
	}
	return -1, &UnknownTermError{Term: term}
}

// KeptNames returns the names of the columns whose coefficients were
// estimated, in coefficient order.
func (rslt *OLSResults) KeptNames() []string {
	na := make([]string, len(rslt.kept))
	for jk, j := range rslt.kept {
		na[jk] = rslt.names[j]
	}
	return na
}

// DroppedNames returns the names of columns dropped as not estimable.
func (rslt *OLSResults) DroppedNames() []string {
	keep := make(map[int]bool)
	for _, j := range rslt.kept {
		keep[j] = true
	}
	var na []string
	for j, name := range rslt.names {
		if !keep[j] {
			na = append(na, name)
		}
	}
	return na
}

// CoeffOf returns the estimated coefficient of the named term.
func (rslt *OLSResults) CoeffOf(term string) (float64, error) {
	jk, err := rslt.Position(term)
	if err != nil {
		return math.NaN(), err
	}
	return rslt.coeff[rslt.kept[jk]], nil
}

// derive fills the standard error, t statistic and p-value tables.
func (rslt *OLSResults) derive() {

	se := make([]float64, len(rslt.coeff))
	for j := range se {
		se[j] = math.NaN()
	}
	sigma := math.Sqrt(rslt.sigma2)
	for jk, j := range rslt.kept {
		se[j] = sigma * math.Sqrt(rslt.xtxinv.At(jk, jk))
	}
	rslt.stderr = se

	ts := make([]float64, len(rslt.coeff))
	for j := range ts {
		ts[j] = rslt.coeff[j] / se[j]
	}
	rslt.tstats = ts

	st := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(rslt.df)}
	pv := make([]float64, len(ts))
	for j, t := range ts {
		if math.IsNaN(t) {
			pv[j] = math.NaN()
			continue
		}
		pv[j] = 2 * st.CDF(-math.Abs(t))
	}
	rslt.pvalues = pv
}

// StdErr returns the standard errors of the coefficients, parallel to
// Names, NaN for coefficients that are not estimable.
func (rslt *OLSResults) StdErr() []float64 {

	rslt.donce.Do(rslt.derive)

	se := make([]float64, len(rslt.stderr))
	copy(se, rslt.stderr)
	return se
}

// StdErrOf returns the standard error of the named term's coefficient.
func (rslt *OLSResults) StdErrOf(term string) (float64, error) {
	jk, err := rslt.Position(term)
	if err != nil {
		return math.NaN(), err
	}
	se := rslt.StdErr()
	return se[rslt.kept[jk]], nil
}

// TStats returns the t statistics for the null hypothesis that each
// coefficient is zero, parallel to Names.
func (rslt *OLSResults) TStats() []float64 {

	rslt.donce.Do(rslt.derive)

	ts := make([]float64, len(rslt.tstats))
	copy(ts, rslt.tstats)
	return ts
}

// PValues returns the two-sided p-values from the t(n - rank) reference
// distribution for the null hypothesis that each coefficient is zero,
// parallel to Names.
func (rslt *OLSResults) PValues() []float64 {

	rslt.donce.Do(rslt.derive)

	pv := make([]float64, len(rslt.pvalues))
	copy(pv, rslt.pvalues)
	return pv
}

// ConfInt returns the 1-alpha confidence interval for the named term's
// coefficient, based on the t(n - rank) distribution.
func (rslt *OLSResults) ConfInt(term string, alpha float64) (float64, float64, error) {

	b, err := rslt.CoeffOf(term)
	if err != nil {
		return math.NaN(), math.NaN(), err
	}
	se, err := rslt.StdErrOf(term)
	if err != nil {
		return math.NaN(), math.NaN(), err
	}

	st := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(rslt.df)}
	q := st.Quantile(1 - alpha/2)

	return b - q*se, b + q*se, nil
}

// VCov returns the sampling covariance matrix of the estimated
// coefficients, sigma^2 (X'X)^{-1}, in coefficient (kept) order.
func (rslt *OLSResults) VCov() *mat.Dense {
	var v mat.Dense
	v.Scale(rslt.sigma2, rslt.xtxinv)
	return &v
}

// XtXBlock reconstructs the block of X'X for the given estimated
// coefficient positions from the R factor, without touching X itself.
func (rslt *OLSResults) XtXBlock(pos []int) *mat.Dense {

	var xtx mat.Dense
	xtx.Mul(rslt.r.T(), rslt.r)

	b := mat.NewDense(len(pos), len(pos), nil)
	for i, pi := range pos {
		for j, pj := range pos {
			b.Set(i, j, xtx.At(pi, pj))
		}
	}

	return b
}

// Refit fits the model to a new response using the precomputed solve
// operator of the design.  The receiver is not modified, and Refit does
// not write to any state shared with other refits, so it is safe to call
// concurrently.  This is the fast path for resampling and
// response-transformation loops, since the operator depends only on the
// design.
func (rslt *OLSResults) Refit(y []float64) (*OLSResults, error) {

	n := rslt.NumObs()
	if len(y) != n {
		return nil, dimErrorf("new response has %d values, model was fit on %d observations",
			len(y), n)
	}

	dm, err := rslt.dm.WithResponse(y)
	if err != nil {
		return nil, err
	}

	yv := mat.NewVecDense(n, dm.Response())
	var bv mat.VecDense
	bv.MulVec(rslt.solve, yv)

	var fv mat.VecDense
	fv.MulVec(rslt.x, &bv)

	fitted := make([]float64, n)
	resid := make([]float64, n)
	for i := 0; i < n; i++ {
		fitted[i] = fv.AtVec(i)
		resid[i] = y[i] - fitted[i]
	}
	rss := floats.Dot(resid, resid)

	var tss float64
	if dm.HasIntercept() {
		ybar := floats.Sum(y) / float64(n)
		for _, v := range y {
			tss += (v - ybar) * (v - ybar)
		}
	} else {
		tss = floats.Dot(y, y)
	}

	sigma2 := math.NaN()
	if rslt.df > 0 {
		sigma2 = rss / float64(rslt.df)
	}

	coeff := make([]float64, len(rslt.coeff))
	for j := range coeff {
		coeff[j] = math.NaN()
	}
	for jk, j := range rslt.kept {
		coeff[j] = bv.AtVec(jk)
	}

	r2 := math.NaN()
	adjr2 := math.NaN()
	if tss > 0 {
		r2 = 1 - rss/tss
		k := rslt.rank
		if dm.HasIntercept() {
			k--
		}
		if n-k-1 > 0 {
			adjr2 = 1 - (rss/float64(n-k-1))/(tss/float64(n-1))
		}
	}

	return &OLSResults{
		dm:       dm,
		names:    rslt.names,
		kept:     rslt.kept,
		coeff:    coeff,
		fitted:   fitted,
		resid:    resid,
		rank:     rslt.rank,
		df:       rslt.df,
		rss:      rss,
		tss:      tss,
		sigma2:   sigma2,
		r2:       r2,
		adjr2:    adjr2,
		cond:     rslt.cond,
		leverage: rslt.leverage,
		r:        rslt.r,
		xtxinv:   rslt.xtxinv,
		solve:    rslt.solve,
		x:        rslt.x,
	}, nil
}

// Predict returns the fitted value for a new row of predictor values,
// given in PredictorNames order (the intercept is implicit).
func (rslt *OLSResults) Predict(row []float64) (float64, error) {

	q := len(rslt.names)
	off := 0
	if rslt.dm.HasIntercept() {
		off = 1
	}
	if len(row) != q-off {
		return math.NaN(), dimErrorf("prediction row has %d values, model has %d predictors",
			len(row), q-off)
	}

	var fv float64
	for _, j := range rslt.kept {
		if j == 0 && off == 1 {
			fv += rslt.coeff[0]
			continue
		}
		fv += rslt.coeff[j] * row[j-off]
	}

	return fv, nil
}
