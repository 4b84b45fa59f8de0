package dataset

import "math"

// Field is a 2D grid of readings stored in row-major order. Rows run along
// latitude and columns along longitude. Missing readings are NaN.
type Field struct {
	Rows int
	Cols int
	Data []float64

	// Lat and Lon are the coordinates of rows and columns. They are nil when
	// the source file has no usable coordinate variables.
	Lat []float64
	Lon []float64
}

// At returns the value at row r and column c.
func (f Field) At(r, c int) float64 {
	return f.Data[r*f.Cols+c]
}

// Geographic reports whether the field carries latitude and longitude
// coordinates that match its shape.
func (f Field) Geographic() bool {
	return len(f.Lat) == f.Rows && len(f.Lon) == f.Cols && f.Rows > 0 && f.Cols > 0
}

// SameShape reports whether f and g have the same number of rows and columns.
func (f Field) SameShape(g Field) bool {
	return f.Rows == g.Rows && f.Cols == g.Cols
}

// Range returns the minimum and maximum of the non-NaN values in the given
// fields. ok is false if there are no such values.
func Range(fields ...Field) (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, f := range fields {
		for _, v := range f.Data {
			if math.IsNaN(v) {
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			ok = true
		}
	}
	if !ok {
		return math.NaN(), math.NaN(), false
	}
	return min, max, true
}

// Reduce2D turns a slab of the given shape into a 2D field by repeatedly
// selecting index 0 of the leading axis until two axes remain. A leading axis
// of size 1 (a vertical level, for instance) is simply dropped this way. One
// dimensional slabs become a single row and scalars a 1x1 field. dropped
// reports how many leading axes longer than 1 were cut to their first index.
func Reduce2D(data []float64, shape []int) (f Field, dropped int) {
	for len(shape) > 2 {
		if shape[0] > 1 {
			dropped++
		}
		shape = shape[1:]
		data = data[:product(shape)]
	}
	switch len(shape) {
	case 0:
		return Field{Rows: 1, Cols: 1, Data: data[:1]}, dropped
	case 1:
		return Field{Rows: 1, Cols: shape[0], Data: data}, dropped
	}
	return Field{Rows: shape[0], Cols: shape[1], Data: data}, dropped
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
