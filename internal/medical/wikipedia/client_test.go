package wikipedia_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriplan/nutriplan/internal/medical"
	"github.com/nutriplan/nutriplan/internal/medical/wikipedia"
)

func newTestServer(t *testing.T, searchBody, extractBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("list") {
		case "search":
			_, _ = w.Write([]byte(searchBody))
		default:
			_, _ = w.Write([]byte(extractBody))
		}
	}))
}

func TestClient_LookupCondition(t *testing.T) {
	server := newTestServer(t,
		`{"query":{"search":[{"pageid":1234,"title":"Coeliac disease"}]}}`,
		`{"query":{"pages":{"1234":{
			"title":"Coeliac disease",
			"extract":"Coeliac disease is a long-term autoimmune disorder.",
			"categories":[{"title":"Category:Autoimmune diseases"}]
		}}}}`,
	)
	defer server.Close()

	client := wikipedia.NewClient(wikipedia.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})

	info, err := client.LookupCondition(context.Background(), "celiac")
	require.NoError(t, err)
	assert.Equal(t, "celiac", info.Condition)
	assert.Equal(t, "Coeliac disease", info.Title)
	assert.Contains(t, info.Summary, "autoimmune disorder")
	assert.Equal(t, []string{"Autoimmune diseases"}, info.Categories)
	assert.Equal(t, wikipedia.ProviderName, info.Source)
	assert.False(t, info.RetrievedAt.IsZero())
}

func TestClient_LookupConditionNoResults(t *testing.T) {
	server := newTestServer(t, `{"query":{"search":[]}}`, `{}`)
	defer server.Close()

	client := wikipedia.NewClient(wikipedia.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})

	_, err := client.LookupCondition(context.Background(), "notacondition")
	require.Error(t, err)
	assert.ErrorIs(t, err, medical.ErrConditionNotFound)
}

func TestClient_LookupConditionStripsMarkup(t *testing.T) {
	server := newTestServer(t,
		`{"query":{"search":[{"pageid":7,"title":"Gout"}]}}`,
		`{"query":{"pages":{"7":{
			"title":"Gout",
			"extract":"Gout is a form of <b>inflammatory arthritis</b>.<script>alert(1)</script>"
		}}}}`,
	)
	defer server.Close()

	client := wikipedia.NewClient(wikipedia.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})

	info, err := client.LookupCondition(context.Background(), "gout")
	require.NoError(t, err)
	assert.NotContains(t, info.Summary, "<b>")
	assert.NotContains(t, info.Summary, "script")
	assert.Contains(t, info.Summary, "inflammatory arthritis")
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := wikipedia.NewClient(wikipedia.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})

	_, err := client.LookupCondition(context.Background(), "gout")
	require.Error(t, err)
}
