package analytic

import "gonum.org/v1/gonum/stat/distuv"

// NormCDF is the standard normal cumulative distribution function Φ.
func NormCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormPDF is the standard normal density φ.
func NormPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
