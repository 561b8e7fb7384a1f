package loaders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Memora/backend/go/internal/rag/schema"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const parisPage = `<!DOCTYPE html>
<html><head><title> Paris Trip </title><style>body{color:red}</style></head>
<body><script>alert("x")</script><h1>Day one</h1><p>We walked along the Seine.</p></body></html>`

func serve(t *testing.T, status int, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebLoader_FetchHTML(t *testing.T) {
	srv := serve(t, http.StatusOK, "text/html; charset=utf-8", parisPage)
	l := NewWebLoader(5*time.Second, 1<<20)

	page, err := l.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Paris Trip", page.Title)
	assert.Equal(t, "text/html", page.MIMEType)
	assert.Contains(t, page.Content, "We walked along the Seine.")
	assert.Contains(t, page.Content, "Day one")
	assert.NotContains(t, page.Content, "alert")
	assert.NotContains(t, page.Content, "color:red")
}

func TestWebLoader_FetchPlainText(t *testing.T) {
	srv := serve(t, http.StatusOK, "text/plain", "just some notes about Go")
	page, err := NewWebLoader(5*time.Second, 1<<20).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", page.MIMEType)
	assert.Equal(t, "just some notes about Go", page.Content)
	assert.Empty(t, page.Title)
}

func TestWebLoader_TruncatesAtMaxBytes(t *testing.T) {
	srv := serve(t, http.StatusOK, "text/plain", strings.Repeat("a", 100))
	page, err := NewWebLoader(5*time.Second, 10).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, page.Content, 10)
}

func TestWebLoader_Non2xx(t *testing.T) {
	srv := serve(t, http.StatusNotFound, "text/html", "<html><body>missing</body></html>")
	_, err := NewWebLoader(5*time.Second, 1<<20).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrFetchStatus)
}

func TestWebLoader_EmptyBody(t *testing.T) {
	srv := serve(t, http.StatusOK, "text/plain", "   ")
	_, err := NewWebLoader(5*time.Second, 1<<20).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestWebLoader_Load(t *testing.T) {
	srv := serve(t, http.StatusOK, "text/html", parisPage)
	docs, err := NewWebLoader(5*time.Second, 1<<20).Load(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotEmpty(t, docs[0].ID)
	assert.Equal(t, srv.URL, docs[0].Metadata[schema.MetadataKeySourceURL])
	assert.Equal(t, "Paris Trip", docs[0].Metadata[schema.MetadataKeyTitle])
}

func TestTitleFallbacks(t *testing.T) {
	cases := map[string]string{
		`<html><head><meta property="og:title" content="OG"></head><body></body></html>`:     "OG",
		`<html><body><h1>Heading</h1></body></html>`:                                         "Heading",
		`<html><head><meta name="twitter:title" content="Tweet"></head><body></body></html>`: "Tweet",
		`<html><body><p>nothing</p></body></html>`:                                           "",
	}
	for html, want := range cases {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		require.NoError(t, err)
		assert.Equal(t, want, Title(doc))
	}
}
