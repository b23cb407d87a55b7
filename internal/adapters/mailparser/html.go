package mailparser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HTMLParser renders HTML bodies to text and pulls links out of them
type HTMLParser struct {
	whitespaceRegex *regexp.Regexp
	newlineRegex    *regexp.Regexp
	invisibleRegex  *regexp.Regexp
}

// NewHTMLParser creates a new HTML parser
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{
		whitespaceRegex: regexp.MustCompile(`[^\S\n]+`),
		newlineRegex:    regexp.MustCompile(`\n{3,}`),
		// zero-width and other invisible characters used to break up keywords
		invisibleRegex: regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{034F}\x{061C}\x{180E}\x{2060}-\x{2064}]+`),
	}
}

// Parse converts HTML to clean plain text
func (p *HTMLParser) Parse(body string) (string, error) {
	if body == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, meta, link").Remove()

	// Add newlines before block elements
	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	text := doc.Text()
	text = p.invisibleRegex.ReplaceAllString(text, "")
	text = p.whitespaceRegex.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	cleanLines := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanLines = append(cleanLines, line)
		}
	}
	text = strings.Join(cleanLines, "\n")
	text = p.newlineRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text), nil
}

var linkAttributes = map[string]bool{"href": true, "src": true, "action": true}

// URLs returns every absolute http(s) URL of the document in document order:
// link attributes first for each element, then URLs written as visible text.
// Anchor text that repeats its own href is not counted again. The HTML
// tokenizer has already decoded entities in both.
func (p *HTMLParser) URLs(body string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var urls []string
	var walk func(n *html.Node, href string)
	walk = func(n *html.Node, href string) {
		switch n.Type {
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
			for _, attr := range n.Attr {
				if !linkAttributes[attr.Key] {
					continue
				}
				u := strings.TrimSpace(attr.Val)
				if !isAbsoluteHTTP(u) {
					continue
				}
				urls = append(urls, u)
				if n.Data == "a" && attr.Key == "href" {
					href = u
				}
			}
		case html.TextNode:
			for _, u := range findURLs(n.Data) {
				if u != href {
					urls = append(urls, u)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, href)
		}
	}
	for _, n := range doc.Nodes {
		walk(n, "")
	}
	return urls
}
