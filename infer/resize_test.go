package infer

import "testing"

func TestFitWithin(t *testing.T) {
	cases := []struct {
		name     string
		src      Dimensions
		maxW     int
		maxH     int
		expected Dimensions
	}{
		{"landscape scales exactly", Dimensions{2000, 1500}, 800, 600, Dimensions{800, 600}},
		{"already within bounds unchanged", Dimensions{640, 480}, 800, 600, Dimensions{640, 480}},
		{"never upscales", Dimensions{100, 100}, 800, 600, Dimensions{100, 100}},
		{"width-limited", Dimensions{1600, 600}, 800, 600, Dimensions{800, 300}},
		{"height-limited", Dimensions{800, 1200}, 800, 600, Dimensions{400, 600}},
		{"square into landscape bounds", Dimensions{1000, 1000}, 800, 600, Dimensions{600, 600}},
		{"extreme aspect keeps minimum of one pixel", Dimensions{10000, 2}, 800, 600, Dimensions{800, 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FitWithin(tc.src, tc.maxW, tc.maxH)
			if got != tc.expected {
				t.Errorf("FitWithin(%v, %d, %d): got %v, want %v", tc.src, tc.maxW, tc.maxH, got, tc.expected)
			}
			if got.Width > tc.maxW || got.Height > tc.maxH {
				t.Errorf("result %v exceeds bounds %dx%d", got, tc.maxW, tc.maxH)
			}
		})
	}
}

func TestDecodeDimensions_ReadsHeaderOnly(t *testing.T) {
	// GIVEN a real PNG payload
	payload := encodePNG(t, 123, 45)

	// WHEN the dimensions are decoded
	got, err := decodeDimensions(payload)
	if err != nil {
		t.Fatalf("decodeDimensions: %v", err)
	}

	// THEN they match the encoded image
	if got.Width != 123 || got.Height != 45 {
		t.Errorf("got %dx%d, want 123x45", got.Width, got.Height)
	}
}

func TestLabels_ReturnsCopy(t *testing.T) {
	// GIVEN the label set
	a := Labels()

	// WHEN a caller mutates its copy
	a[0].Name = "mutated"

	// THEN the package set is unaffected
	if Labels()[0].Name == "mutated" {
		t.Error("Labels() exposed the internal slice")
	}
}
