package extractor

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"storewatch/internal/domain"
)

var (
	oosMarkerRe = regexp.MustCompile(`(?i)(sold out|unavailable|out of stock)`)
	hasLetterRe = regexp.MustCompile(`[a-zA-Z]`)
)

// nameBlocklist rejects navigation chrome, section headers and commerce
// buttons that sit near sold-out markers but are not item names.
var nameBlocklist = []string{
	"delivery", "app-only", "deals", "popular",
	"sold out", "unavailable", "add to", "order", "menu",
	"category", "view", "select", "choose",
}

const (
	maxAncestorDepth  = 8
	maxPrecedingLines = 3
)

// heuristicItems finds sold-out markers in the rendered page and walks up
// the node tree looking for the closest container that also holds a
// plausible item name in the lines just before the marker.
func heuristicItems(body []byte) ([]domain.Item, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, noscript").Remove()

	root := doc.Get(0)
	if root == nil {
		return nil, nil
	}

	var markers []*html.Node
	collectMarkerNodes(root, &markers)

	var out []domain.Item
	for _, textNode := range markers {
		parent := textNode.Parent
		for depth := 0; parent != nil && depth < maxAncestorDepth; depth++ {
			if name, ok := nameNearMarker(textLines(parent)); ok {
				out = append(out, domain.Item{Name: name, Confidence: domain.ConfidenceHeuristic})
				break
			}
			parent = parent.Parent
		}
	}
	return out, nil
}

func collectMarkerNodes(n *html.Node, out *[]*html.Node) {
	if n.Type == html.TextNode && oosMarkerRe.MatchString(n.Data) {
		*out = append(*out, n)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectMarkerNodes(c, out)
	}
}

// textLines returns the trimmed, nonempty text nodes under n in document
// order. Each text node is one line, mirroring how the rendered page reads.
func textLines(n *html.Node) []string {
	var lines []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if line := strings.TrimSpace(node.Data); line != "" {
				lines = append(lines, line)
			}
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return lines
}

// nameNearMarker scans lines for the sold-out marker and returns the first
// plausible item name within the few lines preceding it.
func nameNearMarker(lines []string) (string, bool) {
	for i, line := range lines {
		if !oosMarkerRe.MatchString(line) {
			continue
		}
		start := i - maxPrecedingLines
		if start < 0 {
			start = 0
		}
		for j := start; j < i; j++ {
			if looksLikeItemName(lines[j]) {
				return lines[j], true
			}
		}
		return "", false
	}
	return "", false
}

func looksLikeItemName(text string) bool {
	if len(text) < 5 || len(text) > 80 {
		return false
	}
	lower := strings.ToLower(text)
	for _, bad := range nameBlocklist {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	return hasLetterRe.MatchString(text)
}
