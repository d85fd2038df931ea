package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestApifySource_FetchLatest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method=%s", r.Method)
		}
		if r.URL.Path != "/v2/acts/apify~instagram-scraper/run-sync-get-dataset-items" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization=%q", got)
		}
		var input struct {
			DirectURLs   []string `json:"directUrls"`
			ResultsType  string   `json:"resultsType"`
			ResultsLimit int      `json:"resultsLimit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			t.Errorf("decode input: %v", err)
		}
		if len(input.DirectURLs) != 1 || input.DirectURLs[0] != "https://www.instagram.com/hashtagutd/" ||
			input.ResultsType != "posts" || input.ResultsLimit != 1 {
			t.Errorf("input=%+v", input)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{
			"shortCode": "abc123",
			"caption": "hello",
			"timestamp": "2025-02-28T09:00:00.000Z",
			"displayUrl": "https://cdn.example.com/a.jpg",
			"url": "https://www.instagram.com/p/abc123/"
		}]`))
	}))
	defer srv.Close()

	src := newApifySource(Credentials{ApifyToken: "secret"}, testOptions(srv))
	src.baseURL = srv.URL

	post, err := src.FetchLatest(context.Background(), "@hashtagutd")
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	if post.ID != "abc123" || post.Caption != "hello" || post.AuthorHandle != "hashtagutd" {
		t.Fatalf("post=%+v", post)
	}
	if len(post.Media) != 1 || post.Media[0].URL != "https://cdn.example.com/a.jpg" {
		t.Fatalf("media=%+v", post.Media)
	}
}

func TestApifySource_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		status   int
		body     string
		wantAuth bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"type":"user-or-token-not-found"}}`, wantAuth: true},
		{name: "empty dataset", status: http.StatusOK, body: `[]`},
		{name: "error placeholder", status: http.StatusOK, body: `[{"error":"not_found","errorDescription":"Page not found"}]`},
		{name: "server error", status: http.StatusBadGateway, body: `oops`},
		{name: "malformed", status: http.StatusOK, body: `<html>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			src := newApifySource(Credentials{ApifyToken: "secret"}, testOptions(srv))
			src.baseURL = srv.URL
			_, err := src.FetchLatest(context.Background(), "hashtagutd")

			var authErr *AuthError
			var upErr *UpstreamError
			switch {
			case tc.wantAuth && !errors.As(err, &authErr):
				t.Fatalf("expected AuthError, got %v", err)
			case !tc.wantAuth && !errors.As(err, &upErr):
				t.Fatalf("expected UpstreamError, got %v", err)
			}
			if upErr != nil && upErr.Provider != ProviderApify {
				t.Fatalf("provider=%q", upErr.Provider)
			}
		})
	}
}
