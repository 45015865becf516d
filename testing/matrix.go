package testing

import "gonum.org/v1/gonum/mat"

// Matrix builds a rows x cols dense matrix from row-major values.
func Matrix(rows, cols int, values ...float64) *mat.Dense {
	data := make([]float64, rows*cols)
	copy(data, values)

	return mat.NewDense(rows, cols, data)
}
