package domain

import "testing"

func TestNormalizeScore(t *testing.T) {
	cases := []struct {
		name  string
		raw   float64
		scale int
		want  float64
	}{
		{"ten scale passes through", 8.2, 10, 8.2},
		{"five scale doubles", 4.1, 5, 8.2},
		{"equivalent quality converges", 4.25, 5, 8.5},
		{"rounds to two decimals", 8.333, 10, 8.33},
		{"rounds half up", 4.163, 5, 8.33},
		{"zero stays zero", 0, 5, 0},
		{"perfect five", 5, 5, 10},
		{"perfect ten", 10, 10, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeScore(tc.raw, tc.scale)
			if got != tc.want {
				t.Errorf("NormalizeScore(%v, %d) = %v, want %v", tc.raw, tc.scale, got, tc.want)
			}
		})
	}
}

func TestRatingResultNormalized(t *testing.T) {
	a := RatingResult{Platform: PlatformBooking, RawScore: 8.2, Scale: 10}
	b := RatingResult{Platform: PlatformTripadvisor, RawScore: 4.1, Scale: 5}
	if a.Normalized() != b.Normalized() {
		t.Errorf("8.2@10 = %v, 4.1@5 = %v, want equal", a.Normalized(), b.Normalized())
	}
	if a.Normalized() != 8.2 {
		t.Errorf("normalized = %v, want 8.2", a.Normalized())
	}
}
