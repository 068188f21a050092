// Package spectrum inspects covariance eigen-spectra: explained variance,
// component selection by a variance threshold, and scree plots.
//
// Functions accept eigenvalues in any order; results are reported from the
// largest eigenvalue down.
package spectrum

import (
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Descending returns a copy of eigenvalues sorted from largest to smallest.
func Descending(eigenvalues []float64) []float64 {
	out := slices.Clone(eigenvalues)
	slices.Sort(out)
	slices.Reverse(out)
	return out
}

// TotalVariance returns the sum of the eigenvalues.
func TotalVariance(eigenvalues []float64) float64 {
	return floats.Sum(eigenvalues)
}

// ExplainedVariance returns the percentage of total variance carried by each
// component, largest first. A spectrum without positive total variance
// explains nothing and yields zeros.
func ExplainedVariance(eigenvalues []float64) []float64 {
	values := Descending(eigenvalues)
	total := TotalVariance(values)
	if !(total > 0) {
		return make([]float64, len(values))
	}
	floats.Scale(100/total, values)
	return values
}

// CumulativeExplainedVariance returns the running sum of ExplainedVariance.
func CumulativeExplainedVariance(eigenvalues []float64) []float64 {
	explained := ExplainedVariance(eigenvalues)
	return floats.CumSum(make([]float64, len(explained)), explained)
}

// NumComponents returns how many of the largest components are needed for
// the cumulative explained variance to exceed varExplained percent. At least
// one component is always selected. A spectrum without positive total
// variance keeps every component.
func NumComponents(eigenvalues []float64, varExplained float64) int {
	values := Descending(eigenvalues)
	total := TotalVariance(values)
	if !(total > 0) {
		return len(values)
	}

	var cumulative float64
	k := 0
	for _, v := range values {
		cumulative += v / total * 100
		k++
		if cumulative > varExplained {
			break
		}
	}
	return k
}
