package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dr-neptune/lmselect/infer"
	"github.com/dr-neptune/lmselect/lm"
)

func simData(t *testing.T, n int, beta []float64, sigma float64, seed uint64) *lm.DesignMatrix {
	t.Helper()

	nd := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}

	q := len(beta)
	x := make([][]float64, q)
	names := make([]string, q)
	for j := 0; j < q; j++ {
		x[j] = make([]float64, n)
		for i := 0; i < n; i++ {
			x[j][i] = nd.Rand()
		}
		names[j] = "x" + string(rune('1'+j))
	}

	y := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < q; j++ {
			y[i] += beta[j] * x[j][i]
		}
		y[i] += sigma * nd.Rand()
	}

	dm, err := lm.NewDesignMatrix(x, names, y, true)
	require.NoError(t, err)

	return dm
}

// The replicate draws depend only on (seed, index), so the results must
// be identical for any worker count.
func TestBootstrapDeterminism(t *testing.T) {

	dm := simData(t, 40, []float64{2, -1}, 1, 30)
	rslt, err := lm.NewOLS(dm).Fit()
	require.NoError(t, err)

	run := func(workers int) []float64 {
		emp, err := NewBootstrap(rslt, Coef("x1")).Replicates(200).Seed(99).Workers(workers).Run()
		require.NoError(t, err)
		return emp.Values()
	}

	v1 := run(1)
	v4 := run(4)
	v7 := run(7)

	require.Equal(t, v1, v4)
	require.Equal(t, v1, v7)

	// A different seed gives a different sequence.
	emp2, err := NewBootstrap(rslt, Coef("x1")).Replicates(200).Seed(100).Run()
	require.NoError(t, err)
	require.NotEqual(t, v1, emp2.Values())
}

func TestBootstrapCI(t *testing.T) {

	dm := simData(t, 100, []float64{2}, 0.1, 31)
	rslt, err := lm.NewOLS(dm).Fit()
	require.NoError(t, err)

	b, err := rslt.CoeffOf("x1")
	require.NoError(t, err)

	emp, err := NewBootstrap(rslt, Coef("x1")).Replicates(2000).Seed(1).Run()
	require.NoError(t, err)
	require.Equal(t, 2000, emp.Len())

	lo, hi := emp.CI(0.05)

	// The percentile interval brackets the point estimate tightly.
	require.Less(t, lo, b)
	require.Greater(t, hi, b)
	require.Greater(t, lo, 1.8)
	require.Less(t, hi, 2.2)

	// The bootstrap standard error agrees with the analytic one.
	se, err := rslt.StdErrOf("x1")
	require.NoError(t, err)
	require.InDelta(t, se, emp.StdDev(), 0.5*se)

	require.InDelta(t, b, emp.Mean(), 3*se)
}

func TestEmpiricalQuantile(t *testing.T) {

	e := newEmpirical([]float64{5, 1, 3, 2, 4})
	require.Equal(t, 5, e.Len())
	require.Equal(t, []float64{5, 1, 3, 2, 4}, e.Values())
	require.InDelta(t, 1, e.Quantile(0.0), 1e-12)
	require.InDelta(t, 5, e.Quantile(1.0), 1e-12)
	require.InDelta(t, 3, e.Mean(), 1e-12)
}

// Under normal errors the permutation p-value must agree with the
// normal-theory t test.
func TestPermutationMatchesTTest(t *testing.T) {

	dm := simData(t, 60, []float64{0.35}, 1, 32)
	rslt, err := lm.NewOLS(dm).Fit()
	require.NoError(t, err)

	tt, err := infer.TTest(rslt, "x1", 0)
	require.NoError(t, err)

	pr, err := NewPermutation(dm, "", TStat("x1")).Replicates(4000).Seed(5).Run()
	require.NoError(t, err)

	require.InDelta(t, tt.T, pr.Observed, 1e-10)
	require.InDelta(t, tt.P, pr.P, 0.05)
	require.Equal(t, 4000, pr.Dist.Len())
}

func TestPermutationPredictorShuffle(t *testing.T) {

	dm := simData(t, 80, []float64{2, 0.5}, 1, 33)

	// Shuffling the strong predictor destroys its contribution.
	pr, err := NewPermutation(dm, "x1", TStat("x1")).Replicates(500).Seed(7).Run()
	require.NoError(t, err)
	require.Greater(t, math.Abs(pr.Observed), 5.0)
	require.Less(t, pr.P, 0.02)

	// The null distribution of the shuffled t statistic is centered
	// near zero.
	require.InDelta(t, 0, pr.Dist.Mean(), 0.2)
}

func TestPermutationDeterminism(t *testing.T) {

	dm := simData(t, 50, []float64{1}, 1, 34)

	run := func(workers int) float64 {
		pr, err := NewPermutation(dm, "", FStat()).Replicates(300).Seed(11).Workers(workers).Run()
		require.NoError(t, err)
		return pr.P
	}

	p1 := run(1)
	p3 := run(3)
	require.Equal(t, p1, p3)
}

// Reordering the observations (applying one permutation to every column
// and the response) leaves the permutation p-value unchanged up to Monte
// Carlo noise.
func TestPermutationRelabelInvariance(t *testing.T) {

	dm := simData(t, 60, []float64{0.4}, 1, 36)

	pr1, err := NewPermutation(dm, "", TStat("x1")).Replicates(4000).Seed(3).Run()
	require.NoError(t, err)

	n := dm.NumObs()
	perm := rand.New(rand.NewSource(77)).Perm(n)
	x1, err := dm.Column("x1")
	require.NoError(t, err)
	y := dm.Response()
	rx := make([]float64, n)
	ry := make([]float64, n)
	for i, k := range perm {
		rx[i] = x1[k]
		ry[i] = y[k]
	}
	rdm, err := lm.NewDesignMatrix([][]float64{rx}, []string{"x1"}, ry, true)
	require.NoError(t, err)

	pr2, err := NewPermutation(rdm, "", TStat("x1")).Replicates(4000).Seed(3).Run()
	require.NoError(t, err)

	require.InDelta(t, pr1.Observed, pr2.Observed, 1e-8)
	require.InDelta(t, pr1.P, pr2.P, 0.05)
}

// The global F statistic extracted from a fit equals the nested F test
// against the intercept-only model.
func TestFStat(t *testing.T) {

	dm := simData(t, 45, []float64{1, -1}, 1, 35)
	full, err := lm.NewOLS(dm).Fit()
	require.NoError(t, err)

	nulldm, err := dm.Select(nil)
	require.NoError(t, err)
	null, err := lm.NewOLS(nulldm).Fit()
	require.NoError(t, err)

	ft, err := infer.FTest(full, null)
	require.NoError(t, err)

	require.InDelta(t, ft.F, FStat()(full), 1e-8)
}
