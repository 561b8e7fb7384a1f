package loaders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"Memora/backend/go/internal/rag/interfaces"
	"Memora/backend/go/internal/rag/schema"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

var (
	// ErrFetchStatus is returned when the remote server answers with a non-2xx status.
	ErrFetchStatus = errors.New("unexpected fetch status")
	// ErrUnsupportedContent is returned for bodies that are neither HTML, PDF nor text.
	ErrUnsupportedContent = errors.New("unsupported content type")
	// ErrEmptyContent is returned when no readable text could be extracted.
	ErrEmptyContent = errors.New("no readable content")
)

const userAgent = "Memora/1.0 (+collection fetcher)"

// Page is the readable form of a fetched URL.
type Page struct {
	URL      string
	Title    string
	Content  string
	MIMEType string
}

// WebLoader fetches a URL and turns the body into readable text. HTML is
// converted to markdown, PDFs to plain text, and text bodies pass through.
type WebLoader struct {
	client   *http.Client
	maxBytes int64
}

// NewWebLoader creates a WebLoader with the given request timeout and body size cap.
func NewWebLoader(timeout time.Duration, maxBytes int64) *WebLoader {
	return &WebLoader{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Load fetches url and returns it as a single Document.
func (l *WebLoader) Load(ctx context.Context, url string) ([]*schema.Document, error) {
	page, err := l.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	doc := &schema.Document{
		ID:   uuid.New().String(),
		Text: page.Content,
		Metadata: map[string]interface{}{
			schema.MetadataKeySourceURL: page.URL,
			schema.MetadataKeyTitle:     page.Title,
			schema.MetadataKeyMIMEType:  page.MIMEType,
		},
	}
	return []*schema.Document{doc}, nil
}

// Fetch downloads url and extracts its readable content and title.
func (l *WebLoader) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,text/plain;q=0.9,*/*;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrFetchStatus, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}

	page := &Page{URL: url}
	declared, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	detected := mimetype.Detect(body)

	switch {
	case detected.Is("application/pdf"):
		page.MIMEType = "application/pdf"
		page.Content, err = pdfText(body)
	case detected.Is("text/html") || declared == "text/html" || declared == "application/xhtml+xml":
		page.MIMEType = "text/html"
		page.Title, page.Content, err = htmlText(string(body))
	case strings.HasPrefix(detected.String(), "text/") || strings.HasPrefix(declared, "text/"):
		page.MIMEType = "text/plain"
		page.Content = string(body)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, detected.String())
	}
	if err != nil {
		return nil, err
	}

	page.Content = strings.TrimSpace(page.Content)
	if page.Content == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, url)
	}
	return page, nil
}

func htmlText(html string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	title := Title(doc)

	doc.Find("script, style, noscript, nav, footer, aside").Remove()
	cleaned, err := doc.Html()
	if err != nil {
		return "", "", fmt.Errorf("failed to render HTML: %w", err)
	}
	markdown, err := htmltomarkdown.ConvertString(cleaned)
	if err != nil {
		return "", "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return title, markdown, nil
}

// Title returns the best available page title: <title>, then og:title, then
// the first <h1>, then twitter:title. It returns "" when none is present.
func Title(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if tw, ok := doc.Find("meta[name='twitter:title']").Attr("content"); ok {
		return strings.TrimSpace(tw)
	}
	return ""
}

func pdfText(body []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	text, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return buf.String(), nil
}

var _ interfaces.Loader = (*WebLoader)(nil)
