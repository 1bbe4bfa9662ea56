package ingest

import (
	"bytes"
	"net/url"

	"golang.org/x/net/html"
)

// ExtractHTMLLinks scans anchor targets in an HTML index page for supported
// audio extensions. Relative hrefs are resolved against the page URL.
// Pure function: unparseable documents yield no candidates, never an error.
// Candidates follow document order; non-audio links are skipped silently.
func ExtractHTMLLinks(body []byte, pageURL string) []Candidate {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var out []Candidate
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := anchorHref(n); href != "" {
				if c, ok := audioCandidate(href, base); ok {
					out = append(out, c)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func anchorHref(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "href" {
			return a.Val
		}
	}
	return ""
}

// audioCandidate resolves href against base and keeps it only when the path
// ends in a supported audio extension (case-insensitive).
func audioCandidate(href string, base *url.URL) (Candidate, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return Candidate{}, false
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if AudioExtension(ref.Path) == "" {
		return Candidate{}, false
	}
	resolved := ref.String()
	return Candidate{URL: resolved, Name: fileNameFromURL(resolved)}, true
}
