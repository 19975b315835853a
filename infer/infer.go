/*
Package infer derives hypothesis tests, confidence intervals and joint
confidence regions from fitted least squares models.  All computations are
pure functions over already-fitted results; nothing here refits a model.
*/
package infer

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dr-neptune/lmselect/lm"
)

// FTestResult holds the outcome of a nested-model F test.
type FTestResult struct {

	// The F statistic.
	F float64

	// Numerator and denominator degrees of freedom.
	Df1 int
	Df2 int

	// Upper tail probability from the F(Df1, Df2) distribution.
	P float64

	RSSFull    float64
	RSSReduced float64
}

// FTest compares a full model to a reduced model nested within it:
//
//	F = ((RSS0 - RSS1) / (df0 - df1)) / (RSS1 / df1)
//
// where model 0 is the reduced model and model 1 the full model.  The
// reduced model's columns must be a subset of the full model's columns
// (else NotNestedError) and both models must have been fit on the same
// observations (else InconsistentSampleError).
func FTest(full, reduced *lm.OLSResults) (*FTestResult, error) {

	if full.NumObs() != reduced.NumObs() {
		return nil, &lm.InconsistentSampleError{NFull: full.NumObs(), NReduced: reduced.NumObs()}
	}

	fullset := make(map[string]bool)
	for _, na := range full.Names() {
		fullset[na] = true
	}
	var extra []string
	for _, na := range reduced.Names() {
		if !fullset[na] {
			extra = append(extra, na)
		}
	}
	if len(extra) > 0 {
		return nil, &lm.NotNestedError{Extra: extra}
	}

	df0 := reduced.ResidDF()
	df1 := full.ResidDF()
	if df0 <= df1 {
		return nil, &lm.NotNestedError{Extra: nil}
	}

	rss0 := reduced.RSS()
	rss1 := full.RSS()

	f := ((rss0 - rss1) / float64(df0-df1)) / (rss1 / float64(df1))

	p := 1.0
	if f > 0 {
		fd := distuv.F{D1: float64(df0 - df1), D2: float64(df1)}
		p = 1 - fd.CDF(f)
	}

	return &FTestResult{
		F:          f,
		Df1:        df0 - df1,
		Df2:        df1,
		P:          p,
		RSSFull:    rss1,
		RSSReduced: rss0,
	}, nil
}

// TTestResult holds the outcome of a single-coefficient t test.
type TTestResult struct {
	Term     string
	Estimate float64
	SE       float64

	// Hypothesized value of the coefficient.
	Null float64

	T  float64
	Df int

	// Two-sided p-value from the t(Df) distribution.
	P float64
}

// TTest tests the null hypothesis that the named coefficient equals the
// constant c, using t = (estimate - c) / se with n - rank degrees of
// freedom.  For c = 0, T squared equals the F statistic of the test that
// drops only this column from the model.
func TTest(rslt *lm.OLSResults, term string, c float64) (*TTestResult, error) {

	b, err := rslt.CoeffOf(term)
	if err != nil {
		return nil, err
	}
	se, err := rslt.StdErrOf(term)
	if err != nil {
		return nil, err
	}

	df := rslt.ResidDF()
	t := (b - c) / se

	st := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	p := 2 * st.CDF(-math.Abs(t))

	return &TTestResult{
		Term:     term,
		Estimate: b,
		SE:       se,
		Null:     c,
		T:        t,
		Df:       df,
		P:        p,
	}, nil
}

// ConfInt returns the 1-alpha confidence interval for the named term's
// coefficient.
func ConfInt(rslt *lm.OLSResults, term string, alpha float64) (float64, float64, error) {
	return rslt.ConfInt(term, alpha)
}

// Ellipse is a joint confidence region for a pair of coefficients:
// the set of points beta with (center - beta)' M (center - beta) <= Bound.
type Ellipse struct {

	// The names of the two terms, in order.
	Terms [2]string

	// The point estimates of the two coefficients.
	Center [2]float64

	// The 2 x 2 block of X'X for the two terms, rebuilt from the R
	// factor of the fit.
	M *mat.Dense

	// The right hand side 2 sigma^2 F_{2,df}(1-alpha).
	Bound float64
}

// Covers reports whether the point (a, b) lies inside the region.
func (e *Ellipse) Covers(a, b float64) bool {
	da := a - e.Center[0]
	db := b - e.Center[1]
	q := da*(e.M.At(0, 0)*da+e.M.At(0, 1)*db) + db*(e.M.At(1, 0)*da+e.M.At(1, 1)*db)
	return q <= e.Bound
}

// Boundary returns k points on the boundary of the region, ordered by
// angle, suitable for plotting by a downstream consumer.
func (e *Ellipse) Boundary(k int) [][2]float64 {

	sym := mat.NewSymDense(2, []float64{
		e.M.At(0, 0), e.M.At(0, 1),
		e.M.At(1, 0), e.M.At(1, 1),
	})

	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return nil
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	pts := make([][2]float64, k)
	for i := 0; i < k; i++ {
		th := 2 * math.Pi * float64(i) / float64(k)
		u := math.Cos(th) * math.Sqrt(e.Bound/vals[0])
		v := math.Sin(th) * math.Sqrt(e.Bound/vals[1])
		pts[i][0] = e.Center[0] + vecs.At(0, 0)*u + vecs.At(0, 1)*v
		pts[i][1] = e.Center[1] + vecs.At(1, 0)*u + vecs.At(1, 1)*v
	}

	return pts
}

// ConfRegion2 returns the 1-alpha joint confidence region for the two
// named coefficients, the ellipse
//
//	(betahat_S - beta_S)' M (betahat_S - beta_S) <= 2 sigma^2 F_{2,df}(1-alpha)
//
// where M is the 2 x 2 block of X'X for the two terms, reconstructed from
// the R factor of the fit.
func ConfRegion2(rslt *lm.OLSResults, termA, termB string, alpha float64) (*Ellipse, error) {

	pa, err := rslt.Position(termA)
	if err != nil {
		return nil, err
	}
	pb, err := rslt.Position(termB)
	if err != nil {
		return nil, err
	}

	ba, err := rslt.CoeffOf(termA)
	if err != nil {
		return nil, err
	}
	bb, err := rslt.CoeffOf(termB)
	if err != nil {
		return nil, err
	}

	df := rslt.ResidDF()
	m := rslt.XtXBlock([]int{pa, pb})
	bound := 2 * rslt.Sigma2() * FQuantile(1-alpha, 2, float64(df))

	return &Ellipse{
		Terms:  [2]string{termA, termB},
		Center: [2]float64{ba, bb},
		M:      m,
		Bound:  bound,
	}, nil
}

// FQuantile returns the p quantile of the F(d1, d2) distribution, using
// the beta representation: if X ~ Beta(d1/2, d2/2) then
// (d2/d1) X/(1-X) ~ F(d1, d2).
func FQuantile(p, d1, d2 float64) float64 {
	x := distuv.Beta{Alpha: d1 / 2, Beta: d2 / 2}.Quantile(p)
	return d2 * x / (d1 * (1 - x))
}
