package crawler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	minContentBlockLen = 20
	linkContextLen     = 200
)

// ExtractHTML parses a rendered document into structured content.
func ExtractHTML(pageURL string, html []byte) (RenderedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return RenderedPage{}, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	page := RenderedPage{
		URL:             pageURL,
		Title:           normalizeSpace(doc.Find("title").First().Text()),
		Headings:        extractHeadings(doc),
		ContentBlocks:   extractContentBlocks(doc),
		Tables:          extractTables(doc),
		Lists:           extractLists(doc),
		RawLinks:        extractLinks(doc),
		MetaDescription: metaContent(doc, "description"),
		MetaKeywords:    metaContent(doc, "keywords"),
	}
	if page.Title == "" && len(page.Headings) > 0 {
		page.Title = page.Headings[0].Text
	}
	return page, nil
}

func extractHeadings(doc *goquery.Document) []Heading {
	var out []Heading
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		text := normalizeSpace(sel.Text())
		if text == "" {
			return
		}
		name := goquery.NodeName(sel)
		out = append(out, Heading{Level: int(name[1] - '0'), Text: text})
	})
	return out
}

func extractContentBlocks(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var out []string
	doc.Find("p, blockquote, pre, dd").Each(func(_ int, sel *goquery.Selection) {
		text := normalizeSpace(sel.Text())
		if len([]rune(text)) < minContentBlockLen {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		out = append(out, text)
	})
	if len(out) == 0 {
		if body := normalizeSpace(doc.Find("body").Text()); body != "" {
			out = append(out, body)
		}
	}
	return out
}

func extractTables(doc *goquery.Document) [][][]string {
	var tables [][][]string
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var rows [][]string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			nonEmpty := false
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				text := normalizeSpace(cell.Text())
				if text != "" {
					nonEmpty = true
				}
				cells = append(cells, text)
			})
			if nonEmpty {
				rows = append(rows, cells)
			}
		})
		if len(rows) > 0 {
			tables = append(tables, rows)
		}
	})
	return tables
}

func extractLists(doc *goquery.Document) [][]string {
	var lists [][]string
	doc.Find("ul, ol").Each(func(_ int, list *goquery.Selection) {
		var items []string
		list.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
			if text := normalizeSpace(li.Text()); text != "" {
				items = append(items, text)
			}
		})
		if len(items) > 0 {
			lists = append(lists, items)
		}
	})
	return lists
}

func extractLinks(doc *goquery.Document) []RawLink {
	var links []RawLink
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		title, _ := a.Attr("title")
		links = append(links, RawLink{
			Href:    href,
			Text:    normalizeSpace(a.Text()),
			Title:   normalizeSpace(title),
			Context: TruncateRunes(normalizeSpace(a.Parent().Text()), linkContextLen),
		})
	})
	return links
}

func metaContent(doc *goquery.Document, name string) string {
	var out string
	doc.Find("meta[name]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		n, _ := sel.Attr("name")
		if !strings.EqualFold(n, name) {
			return true
		}
		content, _ := sel.Attr("content")
		out = normalizeSpace(content)
		return false
	})
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
