package gateway

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func TestAuthShortCircuitsOptions(t *testing.T) {
	p := &Pipeline{headers: DefaultHeaderConfig()}
	for _, method := range []string{"OPTIONS", "options"} {
		resp, err := p.Auth(context.Background(), AuthReq{Method: method, Path: "/console/system"})
		if err != nil {
			t.Fatalf("Auth(%s): %v", method, err)
		}
		if !resp.Allow {
			t.Errorf("expected an %s preflight to be accepted trivially, got %q", method, resp.Reason)
		}
	}
}

func TestPreflightRejectsMissingMethodOrPath(t *testing.T) {
	p := &Pipeline{headers: DefaultHeaderConfig()}
	if err := p.preflight(AuthReq{Path: "/x"}); err == nil {
		t.Error("expected an error for a missing method")
	}
	if err := p.preflight(AuthReq{Method: "GET"}); err == nil {
		t.Error("expected an error for a missing path")
	}
}

func TestPreflightAllowsUnsignedRequests(t *testing.T) {
	p := &Pipeline{headers: DefaultHeaderConfig()}
	req := AuthReq{Method: "GET", Path: "/console/system"}
	if err := p.preflight(req); err != nil {
		t.Errorf("expected an unsigned request to pass preflight, got %v", err)
	}
}

func TestPreflightRejectsStaleDate(t *testing.T) {
	p := &Pipeline{headers: DefaultHeaderConfig()}
	stale := strconv.FormatInt(time.Now().Add(-2*time.Hour).UnixMilli(), 10)
	req := AuthReq{
		Method: "GET",
		Path:   "/console/system",
		Headers: map[string]string{
			"Bios-Authorization": "ak:signature",
			"Bios-Date":          stale,
		},
	}
	if err := p.preflight(req); err == nil {
		t.Error("expected a stale date header to fail preflight")
	}
}

func TestPreflightAcceptsFreshSignedRequest(t *testing.T) {
	p := &Pipeline{headers: DefaultHeaderConfig()}
	fresh := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req := AuthReq{
		Method: "GET",
		Path:   "/console/system",
		Headers: map[string]string{
			"Bios-Authorization": "ak:signature",
			"Bios-Date":          fresh,
		},
	}
	if err := p.preflight(req); err != nil {
		t.Errorf("expected a fresh signed request to pass preflight, got %v", err)
	}
}
