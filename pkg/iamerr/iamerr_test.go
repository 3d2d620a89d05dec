package iamerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindBadRequest, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := c.kind.HTTPStatus(); got != c.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestCodeFormat(t *testing.T) {
	e := Unauthorized("iam-cert", "code-not-exist", "no such code")
	if got := e.Code(); got != "401-iam-cert-code-not-exist" {
		t.Errorf("Code() = %q, want 401-iam-cert-code-not-exist", got)
	}
	if got := e.Error(); got != "401-iam-cert-code-not-exist: no such code" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrapPreservesChain(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	e := Wrap(KindInternal, "cache", "get", "reading key", cause)
	if !errors.Is(e, cause) {
		t.Error("expected errors.Is to reach the wrapped cause")
	}
	got, ok := As(fmt.Errorf("outer: %w", e))
	if !ok {
		t.Fatal("expected As to find the typed error through wrapping")
	}
	if got.Kind != KindInternal {
		t.Errorf("Kind = %s, want Internal", got.Kind)
	}
}
