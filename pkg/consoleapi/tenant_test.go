package consoleapi

import (
	"testing"

	"github.com/grayforge/keyward/internal/httpserver"
	"github.com/grayforge/keyward/pkg/rbum"
)

func TestPaginateItemsSlicesWithinBounds(t *testing.T) {
	items := make([]rbum.Item, 0, 5)
	for i := 0; i < 5; i++ {
		items = append(items, rbum.Item{Envelope: rbum.Envelope{ID: string(rune('a' + i))}})
	}

	page := paginateItems(items, httpserver.OffsetParams{Page: 1, PageSize: 2, Offset: 0})
	if len(page.Items) != 2 || page.TotalItems != 5 || page.TotalPages != 3 {
		t.Fatalf("unexpected first page: %+v", page)
	}

	page = paginateItems(items, httpserver.OffsetParams{Page: 3, PageSize: 2, Offset: 4})
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 item on the last page, got %d", len(page.Items))
	}
}

func TestPaginateItemsOffsetBeyondLengthReturnsEmpty(t *testing.T) {
	items := []rbum.Item{{Envelope: rbum.Envelope{ID: "a"}}}

	page := paginateItems(items, httpserver.OffsetParams{Page: 10, PageSize: 5, Offset: 50})
	if len(page.Items) != 0 {
		t.Fatalf("expected no items past the end of the slice, got %d", len(page.Items))
	}
}
