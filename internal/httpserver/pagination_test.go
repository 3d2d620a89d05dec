package httpserver

import (
	"net/http/httptest"
	"testing"
)

func TestParseOffsetParamsDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/ct/item", nil)
	p, err := ParseOffsetParams(r)
	if err != nil {
		t.Fatalf("ParseOffsetParams: %v", err)
	}
	if p.Page != 1 || p.PageSize != DefaultPageSize || p.Offset != 0 {
		t.Errorf("defaults = %+v", p)
	}
}

func TestParseOffsetParamsClampsPageSize(t *testing.T) {
	r := httptest.NewRequest("GET", "/ct/item?page=3&page_size=999", nil)
	p, err := ParseOffsetParams(r)
	if err != nil {
		t.Fatalf("ParseOffsetParams: %v", err)
	}
	if p.PageSize != MaxPageSize {
		t.Errorf("PageSize = %d, want clamped to %d", p.PageSize, MaxPageSize)
	}
	if p.Offset != 2*MaxPageSize {
		t.Errorf("Offset = %d, want %d", p.Offset, 2*MaxPageSize)
	}
}

func TestParseOffsetParamsRejectsBadInput(t *testing.T) {
	for _, q := range []string{"page=0", "page=abc", "page_size=-1"} {
		r := httptest.NewRequest("GET", "/ct/item?"+q, nil)
		if _, err := ParseOffsetParams(r); err == nil {
			t.Errorf("expected error for query %q", q)
		}
	}
}

func TestNewOffsetPageTotals(t *testing.T) {
	page := NewOffsetPage([]int{1, 2, 3}, OffsetParams{Page: 2, PageSize: 3, Offset: 3}, 7)
	if page.TotalItems != 7 || page.TotalPages != 3 {
		t.Errorf("page = %+v, want 7 items over 3 pages", page)
	}
}
