package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/quickpage/internal/client/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxPageBytes caps how much of a page is read.
const maxPageBytes = 4 << 20

// HTTPExtractor fetches a page over HTTP and returns its visible text. It
// stands in for the content script when no browser is connected.
type HTTPExtractor struct {
	client *http.Client
}

func NewHTTPExtractor(client *http.Client) *HTTPExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExtractor{client: client}
}

func (e *HTTPExtractor) Extract(ctx context.Context, tab models.Tab) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tab.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html,text/plain;q=0.9")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("fetch %s: status %d", tab.URL, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxPageBytes)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		b, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return VisibleText(body)
}

// VisibleText returns the text of an HTML document without script, style and
// other non-rendered elements, one line per block of text.
func VisibleText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head, atom.Svg:
				return
			}
		}
		if n.Type == html.TextNode {
			if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
				lines = append(lines, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(lines, "\n"), nil
}
