/*
Package resample implements resampling-based inference for least squares
models: a residual bootstrap for confidence intervals that do not lean on
normality, and permutation tests for the global null of no relationship or
for one predictor's marginal contribution.

Every replicate is a pure function of (seed, replicate index), so results
are reproducible for any worker count; the replicate statistics are merged
in index order.
*/
package resample

import (
	"log"
	"math"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"github.com/dr-neptune/lmselect/lm"
)

// Statistic extracts a scalar statistic from a fitted model.
type Statistic func(*lm.OLSResults) float64

// Coef returns the statistic extracting the named term's coefficient.
func Coef(term string) Statistic {
	return func(rslt *lm.OLSResults) float64 {
		b, err := rslt.CoeffOf(term)
		if err != nil {
			return math.NaN()
		}
		return b
	}
}

// TStat returns the statistic extracting the named term's t statistic.
func TStat(term string) Statistic {
	return func(rslt *lm.OLSResults) float64 {
		b, err := rslt.CoeffOf(term)
		if err != nil {
			return math.NaN()
		}
		se, err := rslt.StdErrOf(term)
		if err != nil {
			return math.NaN()
		}
		return b / se
	}
}

// FStat returns the statistic extracting the global F statistic of the
// regression (all predictors against the intercept-only model).
func FStat() Statistic {
	return func(rslt *lm.OLSResults) float64 {
		k := rslt.Rank()
		if rslt.Design().HasIntercept() {
			k--
		}
		df := rslt.ResidDF()
		if k <= 0 || df <= 0 {
			return math.NaN()
		}
		num := (rslt.TSS() - rslt.RSS()) / float64(k)
		den := rslt.RSS() / float64(df)
		return num / den
	}
}

// Empirical is the empirical distribution of a set of replicate
// statistics.
type Empirical struct {

	// Replicate statistics in replicate order.
	stats []float64

	sorted []float64
}

func newEmpirical(stats []float64) *Empirical {
	s := make([]float64, len(stats))
	copy(s, stats)
	sort.Float64s(s)
	return &Empirical{stats: stats, sorted: s}
}

// Len returns the number of replicates.
func (e *Empirical) Len() int { return len(e.stats) }

// Values returns the replicate statistics in replicate order.
func (e *Empirical) Values() []float64 {
	v := make([]float64, len(e.stats))
	copy(v, e.stats)
	return v
}

// Quantile returns the empirical p quantile of the replicate statistics.
func (e *Empirical) Quantile(p float64) float64 {
	return stat.Quantile(p, stat.Empirical, e.sorted, nil)
}

// CI returns the two-sided percentile interval at level 1-alpha: the
// (alpha/2, 1-alpha/2) empirical quantiles.
func (e *Empirical) CI(alpha float64) (float64, float64) {
	return e.Quantile(alpha / 2), e.Quantile(1 - alpha/2)
}

// Mean returns the mean of the replicate statistics.
func (e *Empirical) Mean() float64 {
	return stat.Mean(e.stats, nil)
}

// StdDev returns the standard deviation of the replicate statistics,
// which estimates the statistic's standard error.
func (e *Empirical) StdDev() float64 {
	return stat.StdDev(e.stats, nil)
}

// replicateSource derives the independent random source for one
// replicate from the base seed and the replicate index (splitmix64), so
// the draw for replicate i does not depend on scheduling.
func replicateSource(seed uint64, i int) rand.Source {
	z := seed + 0x9E3779B97F4A7C15*uint64(i+1)
	z ^= z >> 30
	z *= 0xBF58476D1CE4E5B9
	z ^= z >> 27
	z *= 0x94D049BB133111EB
	z ^= z >> 31
	return rand.NewSource(z)
}

// parallelMap evaluates fn for each replicate index across workers.  The
// output slot for replicate i is stats[i] regardless of which worker ran
// it.
func parallelMap(b, workers int, seed uint64, fn func(i int, rng *rand.Rand) (float64, error)) ([]float64, error) {

	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > b {
		workers = b
	}

	stats := make([]float64, b)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * b / workers
		hi := (w + 1) * b / workers
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				rng := rand.New(replicateSource(seed, i))
				v, err := fn(i, rng)
				if err != nil {
					errs[w] = err
					return
				}
				stats[i] = v
			}
		}(w, lo, hi)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return stats, nil
}

// Bootstrap specifies a residual bootstrap of a fitted model.
type Bootstrap struct {
	rslt    *lm.OLSResults
	stat    Statistic
	b       int
	seed    uint64
	workers int
	log     *log.Logger
}

// NewBootstrap creates a residual bootstrap of the given fit.  Each
// replicate resamples the fitted residuals with replacement, adds them to
// the fitted values, refits on the cached factorization, and extracts the
// statistic.
func NewBootstrap(rslt *lm.OLSResults, stat Statistic) *Bootstrap {
	return &Bootstrap{rslt: rslt, stat: stat, b: 1000}
}

// Replicates sets the number of bootstrap replicates.  The default is
// 1000.
func (bs *Bootstrap) Replicates(b int) *Bootstrap {
	if b > 0 {
		bs.b = b
	}
	return bs
}

// Seed sets the random seed.  Replicate draws depend only on the seed
// and the replicate index.
func (bs *Bootstrap) Seed(seed uint64) *Bootstrap {
	bs.seed = seed
	return bs
}

// Workers sets the number of concurrent workers.  The default uses all
// CPUs.  The result does not depend on the worker count.
func (bs *Bootstrap) Workers(w int) *Bootstrap {
	bs.workers = w
	return bs
}

// Log takes a Logger used to log progress.
func (bs *Bootstrap) Log(log *log.Logger) *Bootstrap {
	bs.log = log
	return bs
}

// Run performs the bootstrap and returns the empirical distribution of
// the replicate statistics.
func (bs *Bootstrap) Run() (*Empirical, error) {

	fitted := bs.rslt.FittedValues()
	resid := bs.rslt.Residuals()
	n := len(resid)

	stats, err := parallelMap(bs.b, bs.workers, bs.seed, func(i int, rng *rand.Rand) (float64, error) {

		ystar := make([]float64, n)
		for j := 0; j < n; j++ {
			ystar[j] = fitted[j] + resid[rng.Intn(n)]
		}

		refit, err := bs.rslt.Refit(ystar)
		if err != nil {
			return 0, err
		}
		return bs.stat(refit), nil
	})
	if err != nil {
		return nil, err
	}

	if bs.log != nil {
		bs.log.Printf("resample: %d bootstrap replicates\n", bs.b)
	}

	return newEmpirical(stats), nil
}

// Permutation specifies a permutation test.  When target is the empty
// string the response is shuffled, testing the global null of no
// relationship; otherwise the named predictor column is shuffled, testing
// that predictor's marginal contribution with the other columns held at
// their observed values.
type Permutation struct {
	dm      *lm.DesignMatrix
	target  string
	stat    Statistic
	b       int
	seed    uint64
	workers int
	log     *log.Logger
}

// PermutationResult holds the outcome of a permutation test.
type PermutationResult struct {

	// The statistic on the observed data.
	Observed float64

	// The proportion of replicate statistics with absolute value at
	// or above the absolute observed statistic.
	P float64

	// The empirical null distribution of the statistic.
	Dist *Empirical
}

// NewPermutation creates a permutation test on the given design.
func NewPermutation(dm *lm.DesignMatrix, target string, stat Statistic) *Permutation {
	return &Permutation{dm: dm, target: target, stat: stat, b: 1000}
}

// Replicates sets the number of permutation replicates.  The default is
// 1000.
func (pm *Permutation) Replicates(b int) *Permutation {
	if b > 0 {
		pm.b = b
	}
	return pm
}

// Seed sets the random seed.
func (pm *Permutation) Seed(seed uint64) *Permutation {
	pm.seed = seed
	return pm
}

// Workers sets the number of concurrent workers.
func (pm *Permutation) Workers(w int) *Permutation {
	pm.workers = w
	return pm
}

// Log takes a Logger used to log progress.
func (pm *Permutation) Log(log *log.Logger) *Permutation {
	pm.log = log
	return pm
}

// Run performs the permutation test.
func (pm *Permutation) Run() (*PermutationResult, error) {

	obsFit, err := lm.NewOLS(pm.dm).Fit()
	if err != nil {
		return nil, err
	}
	obs := pm.stat(obsFit)

	n := pm.dm.NumObs()

	var stats []float64
	if pm.target == "" {
		y := pm.dm.Response()
		stats, err = parallelMap(pm.b, pm.workers, pm.seed, func(i int, rng *rand.Rand) (float64, error) {
			ystar := make([]float64, n)
			for j, k := range rng.Perm(n) {
				ystar[j] = y[k]
			}
			refit, err := obsFit.Refit(ystar)
			if err != nil {
				return 0, err
			}
			return pm.stat(refit), nil
		})
	} else {
		var c []float64
		c, err = pm.dm.Column(pm.target)
		if err != nil {
			return nil, err
		}
		stats, err = parallelMap(pm.b, pm.workers, pm.seed, func(i int, rng *rand.Rand) (float64, error) {
			cstar := make([]float64, n)
			for j, k := range rng.Perm(n) {
				cstar[j] = c[k]
			}
			pdm, err := pm.dm.WithColumn(pm.target, cstar)
			if err != nil {
				return 0, err
			}
			refit, err := lm.NewOLS(pdm).Fit()
			if err != nil {
				return 0, err
			}
			return pm.stat(refit), nil
		})
	}
	if err != nil {
		return nil, err
	}

	nge := 0
	for _, v := range stats {
		if math.Abs(v) >= math.Abs(obs) {
			nge++
		}
	}

	if pm.log != nil {
		pm.log.Printf("resample: %d permutation replicates\n", pm.b)
	}

	return &PermutationResult{
		Observed: obs,
		P:        float64(nge) / float64(len(stats)),
		Dist:     newEmpirical(stats),
	}, nil
}
