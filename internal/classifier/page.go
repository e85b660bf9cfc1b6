package classifier

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// VisibleText strips script, style and noscript nodes and returns the page's
// visible text lowercased with whitespace collapsed to single spaces.
func VisibleText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	return strings.ToLower(strings.Join(strings.Fields(doc.Text()), " ")), nil
}
