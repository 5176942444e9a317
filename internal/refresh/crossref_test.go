// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refresh

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func withCrossRefServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	orig := crossrefAPIBase
	crossrefAPIBase = server.URL + "/"
	t.Cleanup(func() {
		crossrefAPIBase = orig
		server.Close()
	})
	return server
}

func TestCheckRetractionViaUpdateTo(t *testing.T) {
	server := withCrossRefServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("User-Agent"), "mailto:ops@example.org") {
			t.Errorf("User-Agent = %q, want polite mailto form", r.Header.Get("User-Agent"))
		}
		fmt.Fprint(w, `{"status": "ok", "message": {
			"title": ["A flawed study"],
			"type": "journal-article",
			"update-to": [{"type": "Retraction"}]
		}}`)
	})

	c := &CrossRefClient{Client: server.Client(), Email: "ops@example.org"}
	rec, err := c.CheckRetraction(context.Background(), "10.1234/flawed")
	if err != nil {
		t.Fatalf("CheckRetraction: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a retraction record")
	}
	if rec.DOI != "10.1234/flawed" || rec.Title != "A flawed study" || rec.Source != "crossref" {
		t.Errorf("record = %+v", rec)
	}
	if !strings.Contains(rec.Reason, "Retraction") {
		t.Errorf("Reason = %q", rec.Reason)
	}
}

func TestCheckRetractionByWorkType(t *testing.T) {
	server := withCrossRefServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "ok", "message": {"title": ["Notice"], "type": "retraction"}}`)
	})

	c := &CrossRefClient{Client: server.Client()}
	rec, err := c.CheckRetraction(context.Background(), "10.1234/notice")
	if err != nil {
		t.Fatalf("CheckRetraction: %v", err)
	}
	if rec == nil {
		t.Fatal("retraction-typed work should produce a record")
	}
}

func TestCheckRetractionCleanWork(t *testing.T) {
	server := withCrossRefServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "ok", "message": {"title": ["Fine"], "type": "journal-article"}}`)
	})

	c := &CrossRefClient{Client: server.Client()}
	rec, err := c.CheckRetraction(context.Background(), "10.1234/fine")
	if err != nil {
		t.Fatalf("CheckRetraction: %v", err)
	}
	if rec != nil {
		t.Errorf("clean work should return nil, got %+v", rec)
	}
}

func TestCheckRetractionUnknownDOI(t *testing.T) {
	server := withCrossRefServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	c := &CrossRefClient{Client: server.Client()}
	rec, err := c.CheckRetraction(context.Background(), "10.1234/unknown")
	if err != nil {
		t.Fatalf("404 should not be an error: %v", err)
	}
	if rec != nil {
		t.Errorf("unknown DOI should return nil, got %+v", rec)
	}
}

func TestCheckRetractionInvalidDOI(t *testing.T) {
	c := &CrossRefClient{}
	if _, err := c.CheckRetraction(context.Background(), "not a doi"); err == nil {
		t.Fatal("invalid DOI should be an error")
	}
}
