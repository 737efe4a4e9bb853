package extraction

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// htmlToMarkdown strips page chrome, then converts the main content area.
// The returned title comes from <title>, og:title or the first <h1>.
func htmlToMarkdown(html string) (markdown string, title string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	title = extractTitle(doc)

	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	selection := doc.Find("main, article, [role='main']").First()
	if selection.Length() == 0 {
		selection = doc.Find("body")
	}
	if selection.Length() == 0 {
		selection = doc.Selection
	}

	content, err := goquery.OuterHtml(selection)
	if err != nil {
		return "", "", fmt.Errorf("failed to render content HTML: %w", err)
	}

	converter := md.NewConverter("", true, nil)
	markdown, err = converter.ConvertString(content)
	if err != nil {
		return "", "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}

	return strings.TrimSpace(markdown), title, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists && strings.TrimSpace(ogTitle) != "" {
		return strings.TrimSpace(ogTitle)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}
