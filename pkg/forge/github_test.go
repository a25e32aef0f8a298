package forge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-github/v66/github"
)

func TestGitHub_CreatePullRequest(t *testing.T) {
	var got github.NewPullRequest
	var auth, path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number": 12, "html_url": "https://github.com/acme/manifests/pull/12"}`))
	}))
	defer srv.Close()

	gh := NewGitHub(context.Background(), srv.URL+"/", "tok")
	url, err := gh.CreatePullRequest(context.Background(), PullRequest{
		Repository: "acme/manifests",
		Title:      "Update image tag to dev-foo-20240601120000",
		Body:       "body",
		Head:       "release/dev-foo-20240601120000",
		Base:       "main",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if url != "https://github.com/acme/manifests/pull/12" {
		t.Errorf("unexpected url %q", url)
	}
	if auth != "Bearer tok" {
		t.Errorf("unexpected Authorization header %q", auth)
	}
	if path != "/repos/acme/manifests/pulls" {
		t.Errorf("unexpected path %q", path)
	}
	want := github.NewPullRequest{
		Title: github.String("Update image tag to dev-foo-20240601120000"),
		Body:  github.String("body"),
		Head:  github.String("release/dev-foo-20240601120000"),
		Base:  github.String("main"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected payload (-want +got):\n%s", diff)
	}
}

func TestGitHub_CreatePullRequestRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message": "Validation Failed", "errors": [{"message": "A pull request already exists"}]}`))
	}))
	defer srv.Close()

	gh := NewGitHub(context.Background(), srv.URL, "tok")
	_, err := gh.CreatePullRequest(context.Background(), PullRequest{Repository: "acme/manifests"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 422") || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGitHub_CreatePullRequestInvalidRepository(t *testing.T) {
	gh := NewGitHub(context.Background(), "https://api.github.com", "tok")
	if _, err := gh.CreatePullRequest(context.Background(), PullRequest{Repository: "manifests"}); err == nil {
		t.Fatal("expected error for repository without owner")
	}
}

func TestRepositoryFromURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://github.com/acme/manifests.git", "acme/manifests", false},
		{"https://github.com/acme/manifests", "acme/manifests", false},
		{"git@github.com:acme/manifests.git", "acme/manifests", false},
		{"https://ghe.example.com/platform/acme/manifests.git", "acme/manifests", false},
		{"https://github.com/", "", true},
	}
	for _, tt := range tests {
		got, err := RepositoryFromURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("RepositoryFromURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("RepositoryFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
