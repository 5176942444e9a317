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

func withPubMedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	orig := pubmedAPIBase
	pubmedAPIBase = server.URL
	t.Cleanup(func() {
		pubmedAPIBase = orig
		server.Close()
	})
	return server
}

const pubmedRetractionXML = `<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>12345</PMID>
      <Article>
        <ArticleTitle>Retraction: A flawed study</ArticleTitle>
        <PublicationTypeList>
          <PublicationType>Retraction of Publication</PublicationType>
        </PublicationTypeList>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func TestPubMedCheckRetraction(t *testing.T) {
	server := withPubMedServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/esearch.fcgi":
			term := r.URL.Query().Get("term")
			if !strings.Contains(term, "retracted publication[pt]") || !strings.Contains(term, "10.1234/flawed") {
				t.Errorf("term = %q, want retraction-scoped DOI search", term)
			}
			if r.URL.Query().Get("email") != "ops@example.org" {
				t.Errorf("email = %q", r.URL.Query().Get("email"))
			}
			fmt.Fprint(w, `{"esearchresult": {"idlist": ["12345"]}}`)
		case "/efetch.fcgi":
			fmt.Fprint(w, pubmedRetractionXML)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	c := &PubMedClient{Client: server.Client(), Email: "ops@example.org"}
	rec, err := c.CheckRetraction(context.Background(), "doi:10.1234/Flawed")
	if err != nil {
		t.Fatalf("CheckRetraction: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a retraction record")
	}
	if rec.DOI != "10.1234/flawed" || rec.Source != "pubmed" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Title != "Retraction: A flawed study" {
		t.Errorf("Title = %q", rec.Title)
	}
	if !strings.Contains(rec.Reason, "PMID 12345") {
		t.Errorf("Reason = %q, want the notice PMID", rec.Reason)
	}
}

func TestPubMedCheckRetractionNoHits(t *testing.T) {
	fetches := 0
	server := withPubMedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/efetch.fcgi" {
			fetches++
		}
		fmt.Fprint(w, `{"esearchresult": {"idlist": []}}`)
	})

	c := &PubMedClient{Client: server.Client()}
	rec, err := c.CheckRetraction(context.Background(), "10.1234/fine")
	if err != nil {
		t.Fatalf("CheckRetraction: %v", err)
	}
	if rec != nil {
		t.Errorf("no search hits should return nil, got %+v", rec)
	}
	if fetches != 0 {
		t.Errorf("efetch called %d times, want 0 without hits", fetches)
	}
}

func TestPubMedCheckRetractionNonRetractionHit(t *testing.T) {
	server := withPubMedServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/esearch.fcgi":
			fmt.Fprint(w, `{"esearchresult": {"idlist": ["999"]}}`)
		case "/efetch.fcgi":
			fmt.Fprint(w, `<PubmedArticleSet><PubmedArticle>
				<MedlineCitation><PMID>999</PMID><Article>
					<ArticleTitle>A comment</ArticleTitle>
					<PublicationTypeList><PublicationType>Comment</PublicationType></PublicationTypeList>
				</Article></MedlineCitation>
			</PubmedArticle></PubmedArticleSet>`)
		}
	})

	c := &PubMedClient{Client: server.Client()}
	rec, err := c.CheckRetraction(context.Background(), "10.1234/comment")
	if err != nil {
		t.Fatalf("CheckRetraction: %v", err)
	}
	if rec != nil {
		t.Errorf("non-retraction publication type should return nil, got %+v", rec)
	}
}

func TestPubMedCheckRetractionInvalidDOI(t *testing.T) {
	c := &PubMedClient{}
	if _, err := c.CheckRetraction(context.Background(), "not a doi"); err == nil {
		t.Fatal("invalid DOI should be an error")
	}
}

func TestPubMedCheckRetractionHTTPError(t *testing.T) {
	server := withPubMedServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	})

	c := &PubMedClient{Client: server.Client()}
	if _, err := c.CheckRetraction(context.Background(), "10.1234/any"); err == nil {
		t.Fatal("server error should surface")
	}
}
