package geo

import "testing"

func TestDistance(t *testing.T) {
	t.Run("same point is zero", func(t *testing.T) {
		p := Point{Latitude: 52.0, Longitude: 5.0}
		if d := Distance(p, p); d != 0 {
			t.Errorf("expected 0, got %f", d)
		}
	})

	t.Run("one degree of latitude is about 111km", func(t *testing.T) {
		a := Point{Latitude: 52.0, Longitude: 5.0}
		b := Point{Latitude: 53.0, Longitude: 5.0}
		d := Distance(a, b)
		if d < 110000 || d > 112000 {
			t.Errorf("expected ~111km, got %f m", d)
		}
	})
}

func TestHeading(t *testing.T) {
	cases := []struct {
		name     string
		a, b     Point
		expected float64
		delta    float64
	}{
		{"due north", Point{0, 0}, Point{1, 0}, 0, 0.5},
		{"due east", Point{0, 0}, Point{0, 1}, 90, 0.5},
		{"due south", Point{1, 0}, Point{0, 0}, 180, 0.5},
		{"due west", Point{0, 1}, Point{0, 0}, 270, 0.5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := Heading(c.a, c.b)
			if diff := HeadingError(h, c.expected); diff > c.delta {
				t.Errorf("expected heading ~%f, got %f", c.expected, h)
			}
		})
	}
}

func TestHeadingError(t *testing.T) {
	cases := []struct {
		ref, sample, expected float64
	}{
		{0, 0, 0},
		{0, 180, 180},
		{350, 10, 20},
		{10, 350, 20},
		{90, 270, 180},
	}
	for _, c := range cases {
		if got := HeadingError(c.ref, c.sample); got != c.expected {
			t.Errorf("HeadingError(%f, %f) = %f, want %f", c.ref, c.sample, got, c.expected)
		}
	}
}

func TestMeanHeading(t *testing.T) {
	t.Run("straddling the wrap", func(t *testing.T) {
		mean := MeanHeading([]float64{350, 10})
		if HeadingError(mean, 0) > 0.01 {
			t.Errorf("expected mean ~0, got %f", mean)
		}
	})

	t.Run("clustered", func(t *testing.T) {
		mean := MeanHeading([]float64{85, 90, 95})
		if HeadingError(mean, 90) > 0.01 {
			t.Errorf("expected mean ~90, got %f", mean)
		}
	})
}

func TestRoundHeading(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{0, 360},
		{0.4, 360},
		{90.4, 90},
		{359.6, 360},
		{90, 90},
	}
	for _, c := range cases {
		if got := RoundHeading(c.in); got != c.want {
			t.Errorf("RoundHeading(%f) = %d, want %d", c.in, got, c.want)
		}
	}
}
