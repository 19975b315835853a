/*
Package transform searches for an optimal transformation of the response
of a least squares regression by profile likelihood.  BoxCox scores the
power family (y^lambda - 1)/lambda on a grid of lambda values; LogShift
scores the shifted logarithm ln(y + alpha), which applies when the
response is not strictly positive.  In both cases the grid maximum is
refined by bracketed bisection and a likelihood-ratio confidence interval
is cut at half the chi-squared(1) quantile.
*/
package transform

import (
	"log"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dr-neptune/lmselect/lm"
)

// Candidate holds the maximizing parameter of a transformation search.
type Candidate struct {

	// The maximizing parameter (lambda for BoxCox, alpha for
	// LogShift).
	Param float64

	// The profile log-likelihood at Param.
	LogLike float64

	// The model refit on the transformed response at Param.
	Fit *lm.OLSResults

	// Likelihood-ratio confidence interval for the parameter.  An
	// endpoint coinciding with the grid edge means the interval was
	// truncated there.
	ConfLow  float64
	ConfHigh float64

	// The (parameter, log-likelihood) points visited during the
	// search, sorted by parameter.
	Profile [][2]float64
}

// Seq returns k evenly spaced values from lo to hi inclusive.
func Seq(lo, hi float64, k int) []float64 {
	if k < 2 {
		return []float64{lo}
	}
	g := make([]float64, k)
	d := (hi - lo) / float64(k-1)
	for i := range g {
		g[i] = lo + float64(i)*d
	}
	return g
}

// bisectmax sharpens a bracketed maximum of f.  x0 < x1 < x2 with
// f(x1) = y1 at least as large as f at both ends.
func bisectmax(f func(float64) float64, x0, x1, x2, y1 float64) (float64, float64, [][2]float64) {

	var hist [][2]float64

	for x2-x0 > 1e-5 {
		if x2-x1 > x1-x0 {
			x := (x1 + x2) / 2
			y := f(x)
			hist = append(hist, [2]float64{x, y})
			if y > y1 {
				x0 = x1
				y1 = y
				x1 = x
			} else {
				x2 = x
			}
		} else {
			x := (x0 + x1) / 2
			y := f(x)
			hist = append(hist, [2]float64{x, y})
			if y > y1 {
				x2 = x1
				y1 = y
				x1 = x
			} else {
				x0 = x
			}
		}
	}

	return x1, y1, hist
}

// bisectroot locates f(x) = yt inside the bracket [x0, x1], where y0 and
// y1 are f at the ends and yt lies between them.
func bisectroot(f func(float64) float64, x0, x1, y0, y1, yt float64) (float64, [][2]float64) {

	var hist [][2]float64

	for x1-x0 > 1e-5 {
		x := (x0 + x1) / 2
		y := f(x)
		hist = append(hist, [2]float64{x, y})
		if (y-yt)*(y0-yt) > 0 {
			x0 = x
			y0 = y
		} else {
			x1 = x
		}
	}

	return (x0 + x1) / 2, hist
}

// evalGrid evaluates f at every grid point, partitioned across workers.
func evalGrid(f func(float64) float64, grid []float64, workers int) []float64 {

	if workers < 1 {
		workers = 4
	}
	if workers > len(grid) {
		workers = len(grid)
	}

	ll := make([]float64, len(grid))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * len(grid) / workers
		hi := (w + 1) * len(grid) / workers
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				ll[i] = f(grid[i])
			}
		}(lo, hi)
	}
	wg.Wait()

	return ll
}

// profileSearch runs the shared grid-maximize-refine-cut structure on a
// profile log-likelihood.
func profileSearch(f func(float64) float64, grid []float64, level float64, workers int) *Candidate {

	ll := evalGrid(f, grid, workers)

	imax := 0
	for i := range ll {
		if ll[i] > ll[imax] {
			imax = i
		}
	}

	cand := &Candidate{
		Param:   grid[imax],
		LogLike: ll[imax],
	}
	for i := range grid {
		cand.Profile = append(cand.Profile, [2]float64{grid[i], ll[i]})
	}

	// Sharpen the maximum when it is bracketed inside the grid.
	if imax > 0 && imax < len(grid)-1 {
		x, y, hist := bisectmax(f, grid[imax-1], grid[imax], grid[imax+1], ll[imax])
		cand.Param = x
		cand.LogLike = y
		cand.Profile = append(cand.Profile, hist...)
	}

	// Likelihood ratio cut for the confidence interval.
	qp := distuv.ChiSquared{K: 1}.Quantile(level) / 2
	yt := cand.LogLike - qp

	// Left endpoint: the last grid point below the cut, refined.
	cand.ConfLow = grid[0]
	for i := imax; i >= 0; i-- {
		if ll[i] < yt {
			x, hist := bisectroot(f, grid[i], cand.Param, ll[i], cand.LogLike, yt)
			cand.ConfLow = x
			cand.Profile = append(cand.Profile, hist...)
			break
		}
	}

	// Right endpoint.
	cand.ConfHigh = grid[len(grid)-1]
	for i := imax; i < len(grid); i++ {
		if ll[i] < yt {
			x, hist := bisectroot(f, cand.Param, grid[i], cand.LogLike, ll[i], yt)
			cand.ConfHigh = x
			cand.Profile = append(cand.Profile, hist...)
			break
		}
	}

	sort.Slice(cand.Profile, func(i, j int) bool {
		return cand.Profile[i][0] < cand.Profile[j][0]
	})

	return cand
}

// BoxCox specifies a Box-Cox power transformation search.
type BoxCox struct {
	dm      *lm.DesignMatrix
	grid    []float64
	level   float64
	workers int
	log     *log.Logger
}

// NewBoxCox creates a Box-Cox search for the given design.  The response
// must be strictly positive.
func NewBoxCox(dm *lm.DesignMatrix) *BoxCox {
	return &BoxCox{
		dm:    dm,
		grid:  Seq(-2, 2, 41),
		level: 0.95,
	}
}

// Grid sets the lambda grid.  The default is 41 points on [-2, 2].
func (bc *BoxCox) Grid(grid []float64) *BoxCox {
	if len(grid) > 0 {
		g := make([]float64, len(grid))
		copy(g, grid)
		sort.Float64s(g)
		bc.grid = g
	}
	return bc
}

// Level sets the confidence level of the likelihood interval.  The
// default is 0.95.
func (bc *BoxCox) Level(level float64) *BoxCox {
	bc.level = level
	return bc
}

// Workers sets the number of concurrent workers used to score the grid.
func (bc *BoxCox) Workers(w int) *BoxCox {
	bc.workers = w
	return bc
}

// Log takes a Logger used to log progress.
func (bc *BoxCox) Log(log *log.Logger) *BoxCox {
	bc.log = log
	return bc
}

// boxcox applies the power transform (y^lambda - 1)/lambda, ln y at
// lambda = 0.
func boxcox(y []float64, lambda float64) []float64 {
	g := make([]float64, len(y))
	for i, v := range y {
		if lambda == 0 {
			g[i] = math.Log(v)
		} else {
			g[i] = (math.Pow(v, lambda) - 1) / lambda
		}
	}
	return g
}

// Search scores the grid by profile log-likelihood
//
//	l(lambda) = -(n/2) ln(RSS_lambda/n) + (lambda-1) sum(ln y_i)
//
// (the Jacobian term is the geometric-mean normalization that puts all
// lambda on a common likelihood scale), refines the maximum by bisection,
// and returns the maximizing candidate with its likelihood interval.
func (bc *BoxCox) Search() (*Candidate, error) {

	y := bc.dm.Response()
	for i, v := range y {
		if v <= 0 {
			return nil, &lm.NonPositiveResponseError{Index: i, Value: v}
		}
	}

	base, err := lm.NewOLS(bc.dm).Fit()
	if err != nil {
		return nil, err
	}

	n := float64(len(y))
	var sumlog float64
	for _, v := range y {
		sumlog += math.Log(v)
	}

	ll := func(lambda float64) float64 {
		refit, err := base.Refit(boxcox(y, lambda))
		if err != nil {
			return math.Inf(-1)
		}
		return -0.5*n*math.Log(refit.RSS()/n) + (lambda-1)*sumlog
	}

	cand := profileSearch(ll, bc.grid, bc.level, bc.workers)

	fit, err := base.Refit(boxcox(y, cand.Param))
	if err != nil {
		return nil, err
	}
	cand.Fit = fit

	if bc.log != nil {
		bc.log.Printf("transform: Box-Cox lambda = %.4f [%.4f, %.4f]\n",
			cand.Param, cand.ConfLow, cand.ConfHigh)
	}

	return cand, nil
}

// LogShift specifies a shifted-log transformation search, ln(y + alpha),
// for responses that are not strictly positive.
type LogShift struct {
	dm      *lm.DesignMatrix
	grid    []float64
	level   float64
	workers int
	log     *log.Logger
}

// NewLogShift creates a shifted-log search for the given design.
func NewLogShift(dm *lm.DesignMatrix, grid []float64) *LogShift {
	g := make([]float64, len(grid))
	copy(g, grid)
	sort.Float64s(g)
	return &LogShift{
		dm:    dm,
		grid:  g,
		level: 0.95,
	}
}

// Level sets the confidence level of the likelihood interval.  The
// default is 0.95.
func (ls *LogShift) Level(level float64) *LogShift {
	ls.level = level
	return ls
}

// Workers sets the number of concurrent workers used to score the grid.
func (ls *LogShift) Workers(w int) *LogShift {
	ls.workers = w
	return ls
}

// Log takes a Logger used to log progress.
func (ls *LogShift) Log(log *log.Logger) *LogShift {
	ls.log = log
	return ls
}

// Search scores the valid part of the alpha grid by the profile
// log-likelihood
//
//	l(alpha) = -(n/2) ln(RSS_alpha/n) - sum(ln(y_i + alpha))
//
// whose second term is the Jacobian of the shifted logarithm.  Grid
// values with any y_i + alpha <= 0 are excluded; if the whole grid is
// excluded the search fails with NonPositiveResponseError.
func (ls *LogShift) Search() (*Candidate, error) {

	y := ls.dm.Response()
	ymin := y[0]
	imin := 0
	for i, v := range y {
		if v < ymin {
			ymin = v
			imin = i
		}
	}

	var grid []float64
	for _, a := range ls.grid {
		if ymin+a > 0 {
			grid = append(grid, a)
		}
	}
	if len(grid) == 0 {
		return nil, &lm.NonPositiveResponseError{Index: imin, Value: ymin}
	}

	base, err := lm.NewOLS(ls.dm).Fit()
	if err != nil {
		return nil, err
	}

	n := float64(len(y))
	logshift := func(alpha float64) []float64 {
		g := make([]float64, len(y))
		for i, v := range y {
			g[i] = math.Log(v + alpha)
		}
		return g
	}

	ll := func(alpha float64) float64 {
		if ymin+alpha <= 0 {
			return math.Inf(-1)
		}
		refit, err := base.Refit(logshift(alpha))
		if err != nil {
			return math.Inf(-1)
		}
		var jac float64
		for _, v := range y {
			jac += math.Log(v + alpha)
		}
		return -0.5*n*math.Log(refit.RSS()/n) - jac
	}

	cand := profileSearch(ll, grid, ls.level, ls.workers)

	fit, err := base.Refit(logshift(cand.Param))
	if err != nil {
		return nil, err
	}
	cand.Fit = fit

	if ls.log != nil {
		ls.log.Printf("transform: log-shift alpha = %.4f [%.4f, %.4f]\n",
			cand.Param, cand.ConfLow, cand.ConfHigh)
	}

	return cand, nil
}
