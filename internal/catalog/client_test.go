package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListArtifactsFollowsPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/models", r.URL.Path)
		assert.Equal(t, "acme", r.URL.Query().Get("author"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		if r.URL.Query().Get("cursor") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/api/models?author=acme&cursor=p2>; rel="next"`, srv.URL))
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": "acme/old", "createdAt": "2023-01-01T00:00:00.000Z", "downloads": 5, "tags": []string{"a"}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "acme/new", "lastModified": "2024-05-01T00:00:00.000Z"},
			{"modelId": "acme/legacy"},
		})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithToken("secret"), WithTimeout(5*time.Second), WithRateLimit(0))
	recs, err := c.ListArtifacts(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "acme/new", recs[0].ID, "most recently modified first")
	assert.Equal(t, "acme/old", recs[1].ID)
	assert.Equal(t, "acme/legacy", recs[2].ID)
	assert.Equal(t, "acme", recs[1].Owner)
	assert.Equal(t, int64(5), recs[1].Downloads)
	assert.Nil(t, recs[0].ContentHash)
	assert.Equal(t, []string{}, recs[0].Tags)
}

func TestListArtifactsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).ListArtifacts(context.Background(), "acme")
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Status)
}

func TestGetArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/models/acme/model-a":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":           "acme/model-a",
				"author":       "acme",
				"sha":          "abc123",
				"lastModified": "2024-02-01T00:00:00.000Z",
				"createdAt":    "2024-01-01T00:00:00.000Z",
				"tags":         []string{"t1", "t2"},
				"downloads":    42,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL + "/"))
	r, err := c.GetArtifact(context.Background(), "acme/model-a")
	require.NoError(t, err)
	assert.Equal(t, "abc123", r.Hash())
	assert.Equal(t, "acme", r.Owner)
	assert.Equal(t, int64(42), r.Downloads)
	require.NotNil(t, r.LastModified)
	assert.True(t, r.LastModified.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))

	_, err = c.GetArtifact(context.Background(), "acme/missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNextLink(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{`<https://x/a?cursor=1>; rel="next"`, "https://x/a?cursor=1"},
		{`<https://x/prev>; rel="prev", <https://x/next>; rel="next"`, "https://x/next"},
		{`<https://x/a>; rel=next`, "https://x/a"},
		{`https://x/a; rel="next"`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextLink(tt.header), tt.header)
	}
}
