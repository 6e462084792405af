package fetch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const noiseSelector = "nav, footer, header, script, style, noscript, iframe, svg, form, " +
	".ad, .ads, .advertisement, .sidebar, .cookie-banner, .popup"

// contentSelectors are tried in order; the body is the fallback.
var contentSelectors = []string{
	".job-description",
	"#job-description",
	".jobsearch-JobComponent-description",
	".job-details",
	".posting-content",
	"[data-testid='job-description']",
	"[itemprop='description']",
	"main",
	"article",
	".content",
	"#content",
}

// ExtractMainText returns the readable text of the main content block of html.
func ExtractMainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return mainText(doc), nil
}

func parse(base *url.URL, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	// links first: company sites usually sit in the header or the footer
	links, mailto := extractLinks(doc, base)
	text := mainText(doc)
	return &Page{URL: base.String(), Text: text, Links: links, Emails: Emails(text, mailto...)}, nil
}

func mainText(doc *goquery.Document) string {
	doc.Find(noiseSelector).Remove()

	for _, selector := range contentSelectors {
		if text := collapse(doc.Find(selector).First()); text != "" {
			return text
		}
	}
	return collapse(doc.Find("body"))
}

// collapse joins the text nodes of s with single spaces.
func collapse(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}

	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, child *goquery.Selection) {
			if goquery.NodeName(child) != "#text" {
				walk(child)
				return
			}
			for _, word := range strings.Fields(child.Text()) {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(word)
			}
		})
	}
	walk(s)

	return b.String()
}

// extractLinks returns the absolute http(s) links and the mailto addresses of doc.
func extractLinks(doc *goquery.Document, base *url.URL) ([]string, []string) {
	seen := make(map[string]struct{})
	var links, mailto []string

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if strings.EqualFold(ref.Scheme, "mailto") {
			mailto = append(mailto, ref.Opaque)
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment, abs.RawFragment = "", ""
		link := abs.String()
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	return links, mailto
}
