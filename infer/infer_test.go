package infer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dr-neptune/lmselect/lm"
)

func simFit(t *testing.T, n int, beta []float64, sigma float64, seed uint64) (*lm.DesignMatrix, *lm.OLSResults) {
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
	rslt, err := lm.NewOLS(dm).Fit()
	require.NoError(t, err)

	return dm, rslt
}

// Dropping a single column from the full model gives an F statistic equal
// to the square of that column's t statistic.
func TestTSquaredIsDropOneF(t *testing.T) {

	dm, full := simFit(t, 50, []float64{1, -0.5, 0.25}, 1, 10)

	for j, na := range dm.PredictorNames() {

		tt, err := TTest(full, na, 0)
		require.NoError(t, err)

		var keep []int
		for k := range dm.PredictorNames() {
			if k != j {
				keep = append(keep, k)
			}
		}
		sub, err := dm.Select(keep)
		require.NoError(t, err)
		reduced, err := lm.NewOLS(sub).Fit()
		require.NoError(t, err)

		ft, err := FTest(full, reduced)
		require.NoError(t, err)

		require.Equal(t, 1, ft.Df1)
		require.Equal(t, full.ResidDF(), ft.Df2)
		require.InDelta(t, tt.T*tt.T, ft.F, 1e-8)
		require.InDelta(t, tt.P, ft.P, 1e-8)
	}
}

func TestFTestNested(t *testing.T) {

	dm, full := simFit(t, 80, []float64{2, 0, 0}, 1, 11)

	sub, err := dm.Select([]int{0})
	require.NoError(t, err)
	reduced, err := lm.NewOLS(sub).Fit()
	require.NoError(t, err)

	ft, err := FTest(full, reduced)
	require.NoError(t, err)

	require.Equal(t, 2, ft.Df1)
	require.Equal(t, 76, ft.Df2)
	require.Greater(t, ft.RSSReduced, ft.RSSFull)
	require.GreaterOrEqual(t, ft.F, 0.0)
	require.True(t, ft.P > 0 && ft.P <= 1)
}

func TestFTestErrors(t *testing.T) {

	dm, full := simFit(t, 40, []float64{1, 1}, 1, 12)

	// A model with a column the full model lacks is not nested.
	z := make([]float64, dm.NumObs())
	for i := range z {
		z[i] = float64(i)
	}
	x1, err := dm.Column("x1")
	require.NoError(t, err)
	dmz, err := lm.NewDesignMatrix([][]float64{x1, z}, []string{"x1", "z"}, dm.Response(), true)
	require.NoError(t, err)
	other, err := lm.NewOLS(dmz).Fit()
	require.NoError(t, err)

	_, err = FTest(full, other)
	require.True(t, errors.Is(err, lm.ErrNotNested))

	// Same column set in both roles: no extra degrees of freedom.
	_, err = FTest(full, full)
	require.True(t, errors.Is(err, lm.ErrNotNested))

	// Different observation counts.
	_, small := simFit(t, 30, []float64{1, 1}, 1, 12)
	_, err = FTest(full, small)
	require.True(t, errors.Is(err, lm.ErrInconsistentSample))
}

func TestTTestErrors(t *testing.T) {

	_, full := simFit(t, 40, []float64{1, 1}, 1, 13)

	_, err := TTest(full, "nope", 0)
	require.True(t, errors.Is(err, lm.ErrUnknownTerm))
}

func TestConfInt(t *testing.T) {

	_, full := simFit(t, 60, []float64{3, -1}, 1, 14)

	b, err := full.CoeffOf("x1")
	require.NoError(t, err)

	lo, hi, err := ConfInt(full, "x1", 0.05)
	require.NoError(t, err)
	require.Less(t, lo, b)
	require.Greater(t, hi, b)

	// A lower confidence level gives a narrower interval around the
	// same center.
	lo2, hi2, err := ConfInt(full, "x1", 0.20)
	require.NoError(t, err)
	require.Greater(t, lo2, lo)
	require.Less(t, hi2, hi)
	require.InDelta(t, b, (lo+hi)/2, 1e-10)
}

func TestConfRegion2(t *testing.T) {

	_, full := simFit(t, 60, []float64{1, 2, -1}, 1, 15)

	el, err := ConfRegion2(full, "x1", "x2", 0.05)
	require.NoError(t, err)

	b1, err := full.CoeffOf("x1")
	require.NoError(t, err)
	b2, err := full.CoeffOf("x2")
	require.NoError(t, err)

	// The region contains its center and excludes distant points.
	require.True(t, el.Covers(b1, b2))
	require.False(t, el.Covers(b1+100, b2+100))

	// Boundary points satisfy the defining quadratic form.
	for _, pt := range el.Boundary(16) {
		da := pt[0] - el.Center[0]
		db := pt[1] - el.Center[1]
		q := da*(el.M.At(0, 0)*da+el.M.At(0, 1)*db) + db*(el.M.At(1, 0)*da+el.M.At(1, 1)*db)
		require.InDelta(t, el.Bound, q, 1e-6*el.Bound)
	}

	_, err = ConfRegion2(full, "x1", "nope", 0.05)
	require.True(t, errors.Is(err, lm.ErrUnknownTerm))
}

func TestFQuantile(t *testing.T) {

	// CDF(Quantile(p)) = p for a spread of degrees of freedom.
	for _, c := range []struct {
		p, d1, d2 float64
	}{
		{0.5, 2, 10},
		{0.9, 1, 30},
		{0.95, 2, 57},
		{0.99, 5, 12},
	} {
		q := FQuantile(c.p, c.d1, c.d2)
		fd := distuv.F{D1: c.d1, D2: c.d2}
		require.InDelta(t, c.p, fd.CDF(q), 1e-8)
	}
}
