package lm

import "math"

// VIF returns the variance inflation factor of each predictor of the
// design (excluding the intercept): 1 / (1 - R²_j), where R²_j is the
// R-squared of the regression of predictor j on the other predictors.  A
// VIF well above 10 indicates that collinearity is inflating the variance
// of that predictor's coefficient.  This is a diagnostic, not an error;
// an exactly collinear predictor yields +Inf.
func VIF(dm *DesignMatrix) ([]float64, error) {

	q := dm.NumPredictors()
	if q < 2 {
		return nil, dimErrorf("VIF requires at least two predictors, have %d", q)
	}

	pnames := dm.PredictorNames()
	vif := make([]float64, q)

	for j := 0; j < q; j++ {

		others := make([]int, 0, q-1)
		for k := 0; k < q; k++ {
			if k != j {
				others = append(others, k)
			}
		}

		sub, err := dm.Select(others)
		if err != nil {
			return nil, err
		}
		yj, err := dm.Column(pnames[j])
		if err != nil {
			return nil, err
		}
		sub, err = sub.WithResponse(yj)
		if err != nil {
			return nil, err
		}

		rslt, err := NewOLS(sub).DropCollinear(true).Fit()
		if err != nil {
			return nil, err
		}

		r2 := rslt.RSquared()
		if r2 >= 1 {
			vif[j] = math.Inf(1)
		} else {
			vif[j] = 1 / (1 - r2)
		}
	}

	return vif, nil
}
