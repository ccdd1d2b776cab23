package toolbuiltin

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/spoonos-ai/spoonbot/pkg/tool"
)

const (
	webFetchUserAgent = "SpoonBot/1.0 (Web Fetcher; +https://github.com/spoonos-ai/spoonbot)"
	webFetchAccept    = "text/html,application/json,text/plain,*/*"

	// Response bodies are read up to this many bytes.
	webFetchMaxBytes = 10 * 1024 * 1024
	// The textual result is truncated at this many characters.
	webFetchMaxOutput = 50000

	webFetchRateLimit rate.Limit = 3
	webFetchRateBurst            = 5
)

var webFetchSchema = &tool.JSONSchema{
	Type: "object",
	Properties: map[string]any{
		"url": map[string]any{
			"type":        "string",
			"description": "URL to fetch",
		},
		"extract_text": map[string]any{
			"type":        "boolean",
			"description": "For HTML, extract readable text only (default: true)",
		},
	},
	Required: []string{"url"},
}

// WebFetchTool fetches a URL and returns its content, extracting readable
// text from HTML pages.
type WebFetchTool struct {
	client       *http.Client
	maxBytes     int64
	limiter      *rate.Limiter
	allowPrivate bool
}

// NewWebFetchTool builds a web fetch tool. A nil client falls back to a
// default one.
func NewWebFetchTool(client *http.Client) *WebFetchTool {
	if client == nil {
		client = &http.Client{}
	}
	return &WebFetchTool{
		client:   client,
		maxBytes: webFetchMaxBytes,
		limiter:  rate.NewLimiter(webFetchRateLimit, webFetchRateBurst),
	}
}

// AllowPrivateHosts disables the loopback/private-address screen, for
// deployments that intentionally talk to local services.
func (t *WebFetchTool) AllowPrivateHosts(allow bool) {
	t.allowPrivate = allow
}

func (t *WebFetchTool) Name() string { return "web_fetch" }

func (t *WebFetchTool) Description() string {
	return "Fetch content from a URL. Supports HTML pages (with text extraction), " +
		"JSON APIs, and plain text. Returns parsed content suitable for analysis."
}

func (t *WebFetchTool) Schema() *tool.JSONSchema { return webFetchSchema }

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	rawURL, err := stringArg(args, "url")
	if err != nil {
		return "", err
	}
	extractText, err := optionalBool(args, "extract_text", true)
	if err != nil {
		return "", err
	}

	if msg := validateFetchURL(rawURL, t.allowPrivate); msg != "" {
		return "Error: " + msg, nil
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Sprintf("Error: Invalid URL: %v", err), nil
	}
	req.Header.Set("User-Agent", webFetchUserAgent)
	req.Header.Set("Accept", webFetchAccept)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Sprintf("Error: HTTP %d", resp.StatusCode), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes))
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), nil
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")
	if extractText && strings.Contains(contentType, "text/html") {
		content = htmlToText(content)
	}

	if len(content) > webFetchMaxOutput {
		over := len(content) - webFetchMaxOutput
		content = content[:webFetchMaxOutput] +
			fmt.Sprintf("\n... (truncated, %d more chars)", over)
	}
	return content, nil
}

// validateFetchURL screens the URL before any request is made. The returned
// string is empty when the URL is acceptable.
func validateFetchURL(rawURL string, allowPrivate bool) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Sprintf("Invalid URL: %v", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Sprintf("Invalid URL scheme: %s. Only http and https are allowed.", parsed.Scheme)
	}
	if allowPrivate {
		return ""
	}

	hostname := strings.ToLower(parsed.Hostname())
	switch hostname {
	case "localhost", "127.0.0.1", "0.0.0.0", "::1":
		return "Fetching from localhost is not allowed for security reasons."
	}
	if ip := net.ParseIP(hostname); ip != nil {
		if ip.IsLoopback() || ip.IsUnspecified() {
			return "Fetching from localhost is not allowed for security reasons."
		}
		if ip.IsPrivate() || ip.IsLinkLocalUnicast() {
			return "Fetching from private IP addresses is not allowed."
		}
	}
	return ""
}

// htmlToText strips markup and returns the page title followed by the
// readable text. Malformed HTML falls back to the raw input.
func htmlToText(input string) string {
	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return input
	}

	var title string
	var words []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			words = append(words, strings.Fields(n.Data)...)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	text := strings.Join(words, " ")
	if title != "" {
		return "Title: " + title + "\n\n" + text
	}
	return text
}
