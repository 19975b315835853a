package transform

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dr-neptune/lmselect/lm"
)

// expData builds a design whose response is g(eta) for a linear
// predictor eta = 1 + 0.5 x plus small noise.
func expData(t *testing.T, n int, g func(float64) float64, sigma float64, seed uint64) *lm.DesignMatrix {
	t.Helper()

	nd := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}

	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = 4 * float64(i) / float64(n-1) // [0, 4]
		eta := 1 + 0.5*x[i] + sigma*nd.Rand()
		y[i] = g(eta)
	}

	dm, err := lm.NewDesignMatrix([][]float64{x}, []string{"x"}, y, true)
	require.NoError(t, err)

	return dm
}

func TestSeq(t *testing.T) {
	g := Seq(-2, 2, 5)
	require.Equal(t, []float64{-2, -1, 0, 1, 2}, g)
	require.Equal(t, []float64{3}, Seq(3, 7, 1))
}

// At lambda = 1 the transform only shifts the response, so the profile
// log-likelihood reduces to a function of the untransformed RSS.
func TestProfileAtIdentity(t *testing.T) {

	dm := expData(t, 50, func(eta float64) float64 { return eta }, 0.1, 40)

	raw, err := lm.NewOLS(dm).Fit()
	require.NoError(t, err)

	cand, err := NewBoxCox(dm).Grid([]float64{0.25, 0.5, 0.75, 1, 1.25, 1.5}).Search()
	require.NoError(t, err)

	n := float64(dm.NumObs())
	want := -0.5 * n * math.Log(raw.RSS()/n)

	found := false
	for _, pt := range cand.Profile {
		if pt[0] == 1 {
			require.InDelta(t, want, pt[1], 1e-8)
			found = true
		}
	}
	require.True(t, found, "lambda = 1 not on the profile")
}

func TestBoxCoxRecoversLog(t *testing.T) {

	dm := expData(t, 100, math.Exp, 0.05, 41)

	cand, err := NewBoxCox(dm).Search()
	require.NoError(t, err)

	require.InDelta(t, 0, cand.Param, 0.2)
	require.Less(t, cand.ConfLow, cand.Param)
	require.Greater(t, cand.ConfHigh, cand.Param)
	require.NotNil(t, cand.Fit)

	// The transformed fit recovers the linear predictor.
	b, err := cand.Fit.CoeffOf("x")
	require.NoError(t, err)
	require.InDelta(t, 0.5, b, 0.1)
}

func TestBoxCoxRecoversSqrt(t *testing.T) {

	dm := expData(t, 100, func(eta float64) float64 { return eta * eta }, 0.05, 42)

	cand, err := NewBoxCox(dm).Search()
	require.NoError(t, err)

	require.InDelta(t, 0.5, cand.Param, 0.3)
	require.Less(t, cand.ConfLow, cand.Param)
	require.Greater(t, cand.ConfHigh, cand.Param)

	// The maximum dominates every profile point, and the profile is
	// sorted by parameter.
	for i, pt := range cand.Profile {
		require.LessOrEqual(t, pt[1], cand.LogLike+1e-10)
		if i > 0 {
			require.GreaterOrEqual(t, pt[0], cand.Profile[i-1][0])
		}
	}
}

// A narrower likelihood cut gives a narrower interval.
func TestLevelMonotone(t *testing.T) {

	dm := expData(t, 80, math.Exp, 0.1, 43)

	wide, err := NewBoxCox(dm).Level(0.99).Workers(2).Search()
	require.NoError(t, err)
	narrow, err := NewBoxCox(dm).Level(0.80).Workers(2).Search()
	require.NoError(t, err)

	require.LessOrEqual(t, wide.ConfLow, narrow.ConfLow)
	require.GreaterOrEqual(t, wide.ConfHigh, narrow.ConfHigh)
}

func TestBoxCoxNonPositive(t *testing.T) {

	x := []float64{1, 2, 3, 4, 5}
	y := []float64{1, 2, 0, 4, 5}

	dm, err := lm.NewDesignMatrix([][]float64{x}, []string{"x"}, y, true)
	require.NoError(t, err)

	_, err = NewBoxCox(dm).Search()
	require.True(t, errors.Is(err, lm.ErrNonPositiveResponse))
}

func TestLogShift(t *testing.T) {

	// The response is exp(eta) - 3; shifting by alpha = 3 makes the
	// logarithm exactly linear in eta.
	dm := expData(t, 100, func(eta float64) float64 { return math.Exp(eta) - 3 }, 0.02, 44)

	cand, err := NewLogShift(dm, Seq(0, 10, 41)).Search()
	require.NoError(t, err)

	require.InDelta(t, 3, cand.Param, 0.5)
	require.NotNil(t, cand.Fit)
	require.LessOrEqual(t, cand.ConfLow, cand.Param)
	require.GreaterOrEqual(t, cand.ConfHigh, cand.Param)

	// Infeasible grid values (those leaving a non-positive shifted
	// response) are excluded from the profile.
	ymin := math.Inf(1)
	for _, v := range dm.Response() {
		if v < ymin {
			ymin = v
		}
	}
	for _, pt := range cand.Profile {
		require.Greater(t, ymin+pt[0], 0.0)
	}
}

func TestLogShiftInfeasibleGrid(t *testing.T) {

	x := []float64{1, 2, 3, 4}
	y := []float64{-5, -1, 0, 2}

	dm, err := lm.NewDesignMatrix([][]float64{x}, []string{"x"}, y, true)
	require.NoError(t, err)

	_, err = NewLogShift(dm, []float64{1, 2, 3}).Search()
	require.True(t, errors.Is(err, lm.ErrNonPositiveResponse))
}
