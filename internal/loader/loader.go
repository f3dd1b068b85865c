// Package loader fetches and parses artifact sources: structured-data
// blocks embedded in HTML documents, standalone JSON-LD documents, and
// object-storage catalogs.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"perceptkit/internal/artifact"
)

var (
	selScripts = cascadia.MustCompile(`script[type="application/ld+json"]`)
	selLinks   = cascadia.MustCompile(`link[rel="alternate"][type="application/ld+json"]`)
)

type Loader struct {
	client *http.Client
}

// New returns a Loader using client for all fetches. A nil client gets a
// default with a request timeout; none of the load operations impose their
// own deadline beyond that.
func New(client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{client: client}
}

// FromJSON decodes an already-parsed JSON-LD tree. No I/O.
func (l *Loader) FromJSON(node any) []*artifact.Artifact {
	return artifact.Decode(node)
}

// FromJSONURL fetches url and decodes it as a JSON-LD document. A non-2xx
// response is an error carrying the response status text.
func (l *Loader) FromJSONURL(ctx context.Context, rawURL string) ([]*artifact.Artifact, error) {
	body, err := l.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	var node any
	if err := json.Unmarshal(body, &node); err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return artifact.Decode(node), nil
}

// FromHTMLURL fetches url, parses it as HTML and loads every structured-
// data source the document declares, with the final request URL as the
// base for relative references.
func (l *Loader) FromHTMLURL(ctx context.Context, rawURL string) ([]*artifact.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: %s", rawURL, resp.Status)
	}
	root, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return l.FromElement(ctx, root, resp.Request.URL)
}

// FromURL fetches url and branches on the response content type: JSON
// documents decode directly, anything else is parsed as HTML and handed
// to FromElement.
func (l *Loader) FromURL(ctx context.Context, rawURL string) ([]*artifact.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: %s", rawURL, resp.Status)
	}
	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "json") {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		var node any
		if err := json.Unmarshal(body, &node); err != nil {
			return nil, fmt.Errorf("parse %s: %w", rawURL, err)
		}
		return artifact.Decode(node), nil
	}
	root, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return l.FromElement(ctx, root, resp.Request.URL)
}

// source is one structured-data declaration found in a document: either an
// inline payload or a reference to fetch.
type source struct {
	inline []byte
	url    string
}

// FromElement collects artifact JSON from three places in a parsed
// document: inline ld+json script blocks, ld+json script blocks with a src
// reference, and alternate links pointing at ld+json documents. Referenced
// sources are fetched concurrently; results concatenate in source-list
// order once all complete. One failing source fails the whole call;
// callers wanting per-source resilience isolate at their own level, the
// way the gateway bootstrap does.
func (l *Loader) FromElement(ctx context.Context, root *html.Node, base *url.URL) ([]*artifact.Artifact, error) {
	var sources []source
	for _, n := range selScripts.MatchAll(root) {
		if src := attr(n, "src"); src != "" {
			resolved, err := resolveRef(base, src)
			if err != nil {
				return nil, err
			}
			sources = append(sources, source{url: resolved})
			continue
		}
		sources = append(sources, source{inline: []byte(textContent(n))})
	}
	for _, n := range selLinks.MatchAll(root) {
		href := attr(n, "href")
		if href == "" {
			continue
		}
		resolved, err := resolveRef(base, href)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source{url: resolved})
	}

	results := make([][]*artifact.Artifact, len(sources))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src source) {
			defer wg.Done()
			arts, err := l.loadSource(ctx, src)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			results[i] = arts
		}(i, src)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	var out []*artifact.Artifact
	for _, arts := range results {
		out = append(out, arts...)
	}
	return out, nil
}

func (l *Loader) loadSource(ctx context.Context, src source) ([]*artifact.Artifact, error) {
	if src.url != "" {
		return l.FromJSONURL(ctx, src.url)
	}
	var node any
	if err := json.Unmarshal(src.inline, &node); err != nil {
		return nil, fmt.Errorf("parse inline structured data: %w", err)
	}
	return artifact.Decode(node), nil
}

func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: %s", rawURL, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func resolveRef(base *url.URL, ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", ref, err)
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	return parsed.String(), nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var out string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			out += c.Data
		}
	}
	return out
}
