package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/go-shiori/go-readability"

	"github.com/flipagent/flipagent/internal/shared/llmutils"
)

const (
	webUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36"
	maxRedirects = 5
)

// validateURL checks that url is http(s) with a valid domain.
func validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing domain in URL")
	}
	return u, nil
}

// PageFetcher downloads product pages and extracts their readable text.
type PageFetcher struct {
	client   *resty.Client
	maxChars int
}

// NewPageFetcher creates a PageFetcher. maxChars defaults to 20000.
func NewPageFetcher(maxChars int) *PageFetcher {
	if maxChars <= 0 {
		maxChars = 20000
	}
	client := resty.New()
	client.SetTimeout(20 * time.Second)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))
	client.SetHeader("User-Agent", webUserAgent)
	return &PageFetcher{client: client, maxChars: maxChars}
}

type fetchArgs struct {
	URL      string `json:"url"`
	MaxChars int    `json:"max_chars"`
}

// PageContent is the extracted page.
type PageContent struct {
	URL       string   `json:"url"`
	FinalURL  string   `json:"finalUrl"`
	Status    int      `json:"status"`
	Title     string   `json:"title,omitempty"`
	Extractor string   `json:"extractor"`
	Prices    []string `json:"prices,omitempty"`
	Truncated bool     `json:"truncated"`
	Text      string   `json:"text"`
}

func (f *PageFetcher) fetch(ctx context.Context, args fetchArgs) (any, error) {
	parsedURL, err := validateURL(args.URL)
	if err != nil {
		return nil, fmt.Errorf("URL validation failed: %w", err)
	}
	maxChars := f.maxChars
	if args.MaxChars > 0 {
		maxChars = args.MaxChars
	}

	resp, err := f.client.R().SetContext(ctx).Get(args.URL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", args.URL, resp.StatusCode())
	}

	body := resp.Body()
	page := PageContent{
		URL:      args.URL,
		FinalURL: resp.RawResponse.Request.URL.String(),
		Status:   resp.StatusCode(),
	}

	ctype := resp.Header().Get("Content-Type")
	switch {
	case strings.Contains(ctype, "application/json"):
		var data any
		if err := json.Unmarshal(body, &data); err == nil {
			formatted, _ := json.MarshalIndent(data, "", "  ")
			page.Text = string(formatted)
		} else {
			page.Text = string(body)
		}
		page.Extractor = "json"

	case strings.Contains(ctype, "text/html") || isHTMLPrefix(body):
		article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
		if err == nil {
			page.Title = article.Title
			page.Text = htmlToMarkdown(article.Content)
		} else {
			page.Text = stripHTMLTags(string(body))
		}
		page.Extractor = "readability"

	default:
		page.Text = string(body)
		page.Extractor = "raw"
	}

	page.Prices = findPrices(page.Text)
	if len(page.Text) > maxChars {
		page.Text = llmutils.Truncate(page.Text, maxChars)
		page.Truncated = true
	}
	return page, nil
}

// isHTMLPrefix returns true if the body starts with an HTML declaration.
func isHTMLPrefix(b []byte) bool {
	prefix := strings.ToLower(strings.TrimSpace(string(b[:min(256, len(b))])))
	return strings.HasPrefix(prefix, "<!doctype") || strings.HasPrefix(prefix, "<html")
}

var rePrice = regexp.MustCompile(`(?:US\s?)?\$\s?\d{1,3}(?:,\d{3})*(?:\.\d{2})?`)

// findPrices returns up to ten distinct price mentions in order of appearance.
func findPrices(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range rePrice.FindAllString(text, -1) {
		m = strings.TrimSpace(m)
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
		if len(out) == 10 {
			break
		}
	}
	return out
}

var (
	reScript    = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	reStyle     = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	reTags      = regexp.MustCompile(`<[^>]+>`)
	reSpaces    = regexp.MustCompile(`[ \t]+`)
	reNewlines  = regexp.MustCompile(`\n{3,}`)
	reLinks     = regexp.MustCompile(`(?is)<a\s+[^>]*href=["']([^"']+)["'][^>]*>([\s\S]*?)</a>`)
	reHeadings  = regexp.MustCompile(`(?is)<h([1-6])[^>]*>([\s\S]*?)</h[1-6]>`)
	reListItems = regexp.MustCompile(`(?is)<li[^>]*>([\s\S]*?)</li>`)
	reBlockEnd  = regexp.MustCompile(`(?is)</(p|div|section|article)>`)
	reLineBreak = regexp.MustCompile(`(?is)<(br|hr)\s*/?>`)
)

// stripHTMLTags removes all HTML tags and normalizes whitespace.
func stripHTMLTags(text string) string {
	text = reScript.ReplaceAllString(text, "")
	text = reStyle.ReplaceAllString(text, "")
	text = reTags.ReplaceAllString(text, "")
	return normalizeWhitespace(text)
}

// htmlToMarkdown converts HTML to a simple markdown representation.
func htmlToMarkdown(htmlText string) string {
	text := reLinks.ReplaceAllStringFunc(htmlText, func(m string) string {
		parts := reLinks.FindStringSubmatch(m)
		if len(parts) < 3 {
			return m
		}
		return fmt.Sprintf("[%s](%s)", stripHTMLTags(parts[2]), parts[1])
	})
	text = reHeadings.ReplaceAllStringFunc(text, func(m string) string {
		parts := reHeadings.FindStringSubmatch(m)
		if len(parts) < 3 {
			return m
		}
		level := int(parts[1][0] - '0')
		return fmt.Sprintf("\n%s %s\n", strings.Repeat("#", level), stripHTMLTags(parts[2]))
	})
	text = reListItems.ReplaceAllStringFunc(text, func(m string) string {
		parts := reListItems.FindStringSubmatch(m)
		if len(parts) < 2 {
			return m
		}
		return "\n- " + stripHTMLTags(parts[1])
	})
	text = reBlockEnd.ReplaceAllString(text, "\n\n")
	text = reLineBreak.ReplaceAllString(text, "\n")
	return stripHTMLTags(text)
}

func normalizeWhitespace(text string) string {
	text = reSpaces.ReplaceAllString(text, " ")
	text = reNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
