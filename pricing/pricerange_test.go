package pricing

import "testing"

func TestRangeFor(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   Range
	}{
		{
			name:   "single cheap price",
			prices: []float64{50},
			want:   Range{Min: 50, Max: 60},
		},
		{
			name:   "uniform cheap prices stay tight",
			prices: []float64{12, 13, 12.5},
			want:   Range{Min: 10, Max: 20},
		},
		{
			name:   "dispersed cheap prices widen one step",
			prices: []float64{10, 30},
			want:   Range{Min: 20, Max: 40},
		},
		{
			name:   "expensive menu uses 25 steps",
			prices: []float64{80},
			want:   Range{Min: 75, Max: 100},
		},
		{
			name:   "tightness floor pulls min above half of max",
			prices: []float64{5, 6},
			want:   Range{Min: 5, Max: 10},
		},
		{
			name:   "dispersed menu with snacks and entrees",
			prices: []float64{2, 20, 20},
			want:   Range{Min: 15, Max: 30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RangeFor(tt.prices)
			if !ok {
				t.Fatalf("RangeFor(%v) returned no estimate", tt.prices)
			}
			if got != tt.want {
				t.Errorf("RangeFor(%v) = %+v, want %+v", tt.prices, got, tt.want)
			}
		})
	}
}

func TestRangeFor_Empty(t *testing.T) {
	if r, ok := RangeFor(nil); ok {
		t.Errorf("RangeFor(nil) = %+v, want no estimate", r)
	}
	if r, ok := RangeFor([]float64{}); ok {
		t.Errorf("RangeFor([]) = %+v, want no estimate", r)
	}
}

func TestRangeOverlaps(t *testing.T) {
	r := Range{Min: 10, Max: 20}

	if !r.Overlaps(15, 25) {
		t.Error("expected overlap with [15,25]")
	}
	if !r.Overlaps(20, 30) {
		t.Error("expected overlap at shared boundary")
	}
	if r.Overlaps(21, 30) {
		t.Error("expected no overlap with [21,30]")
	}
	if r.Overlaps(0, 9) {
		t.Error("expected no overlap with [0,9]")
	}
}
