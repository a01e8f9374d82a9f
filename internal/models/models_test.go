package models

import (
	"math"
	"testing"
)

func TestNormalizePage(t *testing.T) {
	cases := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{0, 0, 1, DefaultLimit},
		{-3, 5, 1, 5},
		{2, 500, 2, MaxLimit},
		{4, 100, 4, 100},
		{math.MaxInt, 100, MaxPage, 100},
	}
	for _, tc := range cases {
		page, limit := NormalizePage(tc.page, tc.limit)
		if page != tc.wantPage || limit != tc.wantLimit {
			t.Fatalf("NormalizePage(%d, %d) = %d, %d", tc.page, tc.limit, page, limit)
		}
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage[int](nil, 1, 20, 41)
	if p.TotalPages != 3 {
		t.Fatalf("expected 3 pages got %d", p.TotalPages)
	}
	if p.Items == nil {
		t.Fatal("expected empty slice rather than nil")
	}

	empty := NewPage([]int{}, 1, 0, 10)
	if empty.TotalPages != 0 {
		t.Fatalf("expected zero pages for zero limit got %d", empty.TotalPages)
	}
}
