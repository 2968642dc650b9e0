package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		{"", 10, 10},
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		{"x", 5, 5},
		{" 42", 7, 7}, // no trim
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestClampPage(t *testing.T) {
	cases := []struct {
		page, size, max    int
		wantPage, wantSize int
	}{
		{0, 0, 100, 1, DefaultPageSize},
		{-3, 5, 100, 1, 5},
		{2, 500, 100, 2, 100},
		{4, 10, 0, 4, 10}, // no cap
	}
	for _, tc := range cases {
		p, s := ClampPage(tc.page, tc.size, tc.max)
		if p != tc.wantPage || s != tc.wantSize {
			t.Fatalf("ClampPage(%d,%d,%d) = %d,%d; want %d,%d", tc.page, tc.size, tc.max, p, s, tc.wantPage, tc.wantSize)
		}
	}
	if got := Offset(3, 20); got != 40 {
		t.Fatalf("Offset(3,20) = %d", got)
	}
}

func TestTotalPages(t *testing.T) {
	cases := map[[2]int64]int{
		{0, 20}:  0,
		{1, 20}:  1,
		{20, 20}: 1,
		{21, 20}: 2,
		{5, 0}:   0,
	}
	for in, want := range cases {
		if got := TotalPages(in[0], int(in[1])); got != want {
			t.Fatalf("TotalPages(%d,%d) = %d; want %d", in[0], in[1], got, want)
		}
	}
}
