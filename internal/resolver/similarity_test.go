package resolver

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b    string
		min     float64
		max     float64
		comment string
	}{
		{"standing desk", "standing-desk", 100, 100, "hyphen is a token separator"},
		{"desk standing", "standing desk", 100, 100, "order invariant"},
		{"apple airpods pro 2", "apple airpods pro", 100, 100, "token subset"},
		{"airpods pro 2nd gen", "apple airpods pro", 0, 79.99, "extra and missing tokens"},
		{"ergonomic office chair", "apple airpods pro", 0, 40, "unrelated"},
		{"", "apple airpods pro", 0, 0, "empty key"},
	}
	for _, c := range cases {
		got := Similarity(c.a, c.b)
		if got < c.min || got > c.max {
			t.Fatalf("%s: Similarity(%q,%q)=%.2f want in [%v,%v]", c.comment, c.a, c.b, got, c.min, c.max)
		}
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"led strip lights", "led light strip"},
		{"mini projector 4k", "portable mini projector"},
		{"ice roller", "face ice roller"},
	}
	for _, p := range pairs {
		ab, ba := Similarity(p[0], p[1]), Similarity(p[1], p[0])
		if math.Abs(ab-ba) > 1e-9 {
			t.Fatalf("Similarity not symmetric for %v: %v vs %v", p, ab, ba)
		}
	}
}

func TestRatio(t *testing.T) {
	if got := ratio("kitten", "sitting"); math.Abs(got-100*(1-3.0/7.0)) > 1e-9 {
		t.Fatalf("ratio=%v", got)
	}
	if got := ratio("abc", "abcd"); got != 75 {
		t.Fatalf("ratio(abc,abcd)=%v want=75", got)
	}
	if got := ratio("same", "same"); got != 100 {
		t.Fatalf("ratio(same)=%v want=100", got)
	}
}
