package lm

import (
	"log"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// rankTol is the relative tolerance used to decide that a diagonal
// element of the R factor is numerically zero, i.e. that the
// corresponding column is linearly dependent on the columns before it.
const rankTol = 1e-10

// OLS specifies an ordinary least squares regression of the response of a
// DesignMatrix on its columns.  The model is fit by QR decomposition; the
// cross-product matrix X'X is never formed.
type OLS struct {
	dm *DesignMatrix

	// If true, columns that are linearly dependent on earlier columns
	// are dropped from the fit and their coefficients reported as NaN.
	// If false (the default), a rank deficient design is an error.
	dropCollinear bool

	// If not nil, write log messages here.
	log *log.Logger
}

// NewOLS creates an OLS value for the given design matrix.  The model can
// be fit by calling the Fit method.
func NewOLS(dm *DesignMatrix) *OLS {
	return &OLS{dm: dm}
}

// DropCollinear determines how a rank deficient design is handled.  When
// drop is true, columns linearly dependent on columns appearing before
// them are dropped (so later columns are dropped first) and their
// coefficients are reported as NaN.  When false, Fit fails with a
// RankDeficiencyError.
func (m *OLS) DropCollinear(drop bool) *OLS {
	m.dropCollinear = drop
	return m
}

// Log takes a Logger value that will be used to log progress of the fit.
func (m *OLS) Log(log *log.Logger) *OLS {
	m.log = log
	return m
}

// rDiag extracts the p diagonal elements of the R factor.
func rDiag(qr *mat.QR, p int) []float64 {

	var rm mat.Dense
	qr.RTo(&rm)

	d := make([]float64, p)
	for j := 0; j < p; j++ {
		d[j] = rm.At(j, j)
	}

	return d
}

// rFactor extracts the leading p x p block of the R factor.
func rFactor(qr *mat.QR, p int) *mat.Dense {

	var rm mat.Dense
	qr.RTo(&rm)

	r := mat.NewDense(p, p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			r.Set(i, j, rm.At(i, j))
		}
	}

	return r
}

// Fit estimates the model parameters and returns a results value.  It is
// a pure function of the design matrix; the receiver and the design are
// not modified.
func (m *OLS) Fit() (*OLSResults, error) {

	dm := m.dm
	n := dm.NumObs()
	p := dm.NumCols()

	if p == 0 {
		return nil, dimErrorf("design matrix has no columns")
	}
	if n < p {
		return nil, dimErrorf("design matrix has %d observations for %d columns", n, p)
	}

	kept := make([]int, p)
	for j := range kept {
		kept[j] = j
	}

	// Factor, and drop dependent columns until the diagonal of R is
	// clean.  With an unpivoted QR, a negligible R[j][j] identifies a
	// column lying in the span of the columns before it.
	var qr mat.QR
	var x *mat.Dense
	var dropped []int
	for {
		x = dm.matrix(kept)
		qr.Factorize(x)

		diag := rDiag(&qr, len(kept))
		dmax := 0.0
		for _, d := range diag {
			if math.Abs(d) > dmax {
				dmax = math.Abs(d)
			}
		}

		var good, bad []int
		for j, d := range diag {
			if math.Abs(d) <= rankTol*dmax || dmax == 0 {
				bad = append(bad, kept[j])
			} else {
				good = append(good, kept[j])
			}
		}

		if len(bad) == 0 {
			break
		}

		dropped = append(dropped, bad...)
		if !m.dropCollinear || len(good) == 0 {
			names := dm.Names()
			var depnames []string
			for _, j := range dropped {
				depnames = append(depnames, names[j])
			}
			return nil, &RankDeficiencyError{
				Rank:      p - len(dropped),
				Cols:      p,
				Dependent: depnames,
			}
		}

		kept = good
	}

	if m.log != nil && len(dropped) > 0 {
		m.log.Printf("lm: dropped %d collinear columns\n", len(dropped))
	}

	rank := len(kept)
	y := dm.Response()
	yv := mat.NewVecDense(n, y)

	var bv mat.VecDense
	if err := qr.SolveVecTo(&bv, false, yv); err != nil {
		names := dm.Names()
		var depnames []string
		for _, j := range kept {
			depnames = append(depnames, names[j])
		}
		return nil, &RankDeficiencyError{Rank: 0, Cols: p, Dependent: depnames}
	}

	var fv mat.VecDense
	fv.MulVec(x, &bv)

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

	df := n - rank
	sigma2 := math.NaN()
	if df > 0 {
		sigma2 = rss / float64(df)
	}

	// Unscaled covariance basis: (X'X)^{-1} = R^{-1} R^{-T}, computed
	// through the triangular factor rather than by forming X'X.
	r := rFactor(&qr, rank)
	eye := mat.NewDense(rank, rank, nil)
	for j := 0; j < rank; j++ {
		eye.Set(j, j, 1)
	}
	var rinv mat.Dense
	if err := rinv.Solve(r, eye); err != nil {
		names := dm.Names()
		return nil, &RankDeficiencyError{Rank: rank, Cols: p, Dependent: names}
	}
	var xtxinv mat.Dense
	xtxinv.Mul(&rinv, rinv.T())

	// The hat matrix diagonal: X R^{-1} reproduces the thin Q, so the
	// leverage of row i is the squared norm of row i of X R^{-1}.
	var qthin mat.Dense
	qthin.Mul(x, &rinv)
	leverage := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < rank; j++ {
			v := qthin.At(i, j)
			leverage[i] += v * v
		}
	}

	// Solve operator for refits: beta = R^{-1} Q' y, with Q' taken as
	// (X R^{-1})'.  Refit only multiplies by this matrix, so refits on
	// new responses never touch the factorization and can run
	// concurrently.
	var solve mat.Dense
	solve.Mul(&rinv, qthin.T())

	coeff := make([]float64, p)
	for j := range coeff {
		coeff[j] = math.NaN()
	}
	for jk, j := range kept {
		coeff[j] = bv.AtVec(jk)
	}

	r2 := math.NaN()
	adjr2 := math.NaN()
	if tss > 0 {
		r2 = 1 - rss/tss
		k := rank
		if dm.HasIntercept() {
			k--
		}
		if n-k-1 > 0 {
			adjr2 = 1 - (rss/float64(n-k-1))/(tss/float64(n-1))
		}
	}

	rslt := &OLSResults{
		dm:       dm,
		names:    dm.Names(),
		kept:     kept,
		coeff:    coeff,
		fitted:   fitted,
		resid:    resid,
		rank:     rank,
		df:       df,
		rss:      rss,
		tss:      tss,
		sigma2:   sigma2,
		r2:       r2,
		adjr2:    adjr2,
		cond:     mat.Cond(x, 2),
		leverage: leverage,
		r:        r,
		xtxinv:   &xtxinv,
		solve:    &solve,
		x:        x,
	}

	return rslt, nil
}

// FitNormalEquations solves the least squares problem by forming and
// inverting X'X.  Forming the cross-product squares the condition number
// of the problem; this routine exists only as a comparison point for the
// stable QR path and should not be used for fitting.
func FitNormalEquations(dm *DesignMatrix) ([]float64, error) {

	n := dm.NumObs()
	p := dm.NumCols()
	if n < p {
		return nil, dimErrorf("design matrix has %d observations for %d columns", n, p)
	}

	cols := make([]int, p)
	for j := range cols {
		cols[j] = j
	}
	x := dm.matrix(cols)
	yv := mat.NewVecDense(n, dm.Response())

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var xty mat.VecDense
	xty.MulVec(x.T(), yv)

	var xtxinv mat.Dense
	if err := xtxinv.Inverse(&xtx); err != nil {
		return nil, &RankDeficiencyError{Rank: 0, Cols: p, Dependent: dm.Names()}
	}

	var bv mat.VecDense
	bv.MulVec(&xtxinv, &xty)

	coeff := make([]float64, p)
	for j := range coeff {
		coeff[j] = bv.AtVec(j)
	}

	return coeff, nil
}
