// Package extract turns raw HTML into the (title, visible text, links)
// triple the indexing pipeline works with. It is a single pass over the
// parsed tree; no scripting, styling or layout is evaluated.
package extract

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Page is the extracted view of one HTML document.
type Page struct {
	Title string
	Text  string
	Links []string
}

// skipElements are subtrees that never contribute visible text.
var skipElements = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "svg": {}, "path": {},
	"iframe": {}, "nav": {}, "footer": {}, "header": {},
}

// blockElements force a word break after their content so that adjacent
// blocks do not glue into a single token.
var blockElements = map[string]struct{}{
	"p": {}, "div": {}, "br": {}, "li": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"tr": {}, "blockquote": {}, "section": {}, "article": {},
}

var whitespaceRun = regexp.MustCompile(`\s{2,}`)

// Extract parses the document and returns its title, visible body text and
// outbound http(s) links. Relative hrefs are resolved against baseURL.
func Extract(baseURL string, r io.Reader) (*Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	page := &Page{}
	var text strings.Builder
	var firstH1 string

	body := findElement(root, "body")
	textRoot := root
	if body != nil {
		textRoot = body
	}

	var walk func(n *html.Node, inTextRoot bool)
	walk = func(n *html.Node, inTextRoot bool) {
		switch n.Type {
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			if _, skip := skipElements[tag]; skip {
				return
			}
			switch tag {
			case "title":
				if page.Title == "" {
					page.Title = strings.TrimSpace(textContent(n))
				}
			case "h1":
				if firstH1 == "" {
					firstH1 = strings.TrimSpace(textContent(n))
				}
			case "a":
				if href := attr(n, "href"); href != "" {
					if link, ok := resolveLink(base, href); ok {
						page.Links = append(page.Links, link)
					}
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c, inTextRoot || n == textRoot)
			}
			if inTextRoot || n == textRoot {
				if _, block := blockElements[tag]; block {
					text.WriteByte(' ')
				}
			}
		case html.TextNode:
			if inTextRoot {
				text.WriteString(n.Data)
				text.WriteByte(' ')
			}
		default:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c, inTextRoot || n == textRoot)
			}
		}
	}
	walk(root, root == textRoot)

	if page.Title == "" {
		page.Title = firstH1
	}
	page.Text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text.String(), " "))

	return page, nil
}

// resolveLink resolves href against base and normalizes it for crawling:
// anchors, javascript: and mailto: schemes are rejected, only http and https
// destinations survive, and fragments are dropped.
func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}

// findElement returns the first element with the given tag, depth-first.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// textContent concatenates all text nodes beneath n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}
