package normalize

import (
	"reflect"
	"testing"
)

func TestMinMax(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   []float64
	}{
		{"empty", nil, []float64{}},
		{"single", []float64{3.2}, []float64{0.5}},
		{"all equal", []float64{2, 2, 2}, []float64{0.5, 0.5, 0.5}},
		{"all zero", []float64{0, 0}, []float64{0.5, 0.5}},
		{"spread", []float64{1, 3, 5}, []float64{0, 0.5, 1}},
		{"unsorted", []float64{10, 0, 5}, []float64{1, 0, 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinMax(tt.values)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MinMax(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestMinMaxDoesNotMutateInput(t *testing.T) {
	in := []float64{4, 8, 6}
	_ = MinMax(in)
	if !reflect.DeepEqual(in, []float64{4, 8, 6}) {
		t.Errorf("input mutated: %v", in)
	}
}

func TestMinMaxPreservesOrder(t *testing.T) {
	in := []float64{0.3, 7.1, 2.2, 4.0}
	out := MinMax(in)
	for i := range in {
		for j := range in {
			if in[i] < in[j] && !(out[i] < out[j]) {
				t.Errorf("order not preserved between %d and %d: %v", i, j, out)
			}
		}
	}
}

func TestClamp01(t *testing.T) {
	for in, want := range map[float64]float64{-1: 0, 0: 0, 0.4: 0.4, 1: 1, 7: 1} {
		if got := Clamp01(in); got != want {
			t.Errorf("Clamp01(%v) = %v, want %v", in, got, want)
		}
	}
}
