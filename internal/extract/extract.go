// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract finds supplementary-material references in full-text
// article XML. One streaming pass over the document evaluates an ordered
// list of rules; each rule names an element, an optional enclosing element,
// the link attribute to read, an optional extension allow-list and whether
// relative references are rebased onto the source's asset URL.
//
// Within an article, links are emitted in rule order and then document
// order. Duplicates are suppressed by resolved URL, first occurrence wins.
package extract

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// XLinkNamespace is the namespace carrying href attributes in JATS XML.
const XLinkNamespace = "http://www.w3.org/1999/xlink"

// XLinkHref is the xlink:href attribute name.
var XLinkHref = xml.Name{Space: XLinkNamespace, Local: "href"}

// conventionalPrefix maps namespaces to the prefix documents use for them,
// so attributes still match when a document omits the xmlns declaration.
var conventionalPrefix = map[string]string{
	XLinkNamespace: "xlink",
}

// Rule selects link-bearing elements.
type Rule struct {
	// Element is the local name of the element carrying the link.
	Element string

	// Within, when set, requires an enclosing element with this local name.
	Within string

	// Attr is the attribute holding the link.
	Attr xml.Name

	// Extensions, when non-empty, keeps only links whose path ends in one of
	// these lowercase extensions (".pdf").
	Extensions []string

	// Rewrite passes the link through the extractor's Resolver.
	Rewrite bool
}

// Resolver turns an article-relative reference into an absolute URL.
type Resolver func(articleID, href string) string

// ArticleLinks holds the links found for one article element.
type ArticleLinks struct {
	ID    string
	Links []string
}

// Extractor applies Rules to article XML documents.
type Extractor struct {
	Rules   []Rule
	Resolve Resolver
}

// articleElement delimits one article in a result set.
const articleElement = "article"

// ErrNoRules is returned when Extract is called without rules.
var ErrNoRules = errors.New("extract: no rules configured")

type candidate struct {
	rule int
	href string
}

type articleState struct {
	id         string
	idRank     int
	candidates []candidate
}

// Extract parses one XML document holding any number of article elements
// and returns their links in document order. Articles without a
// recognizable ID are dropped. A malformed document yields an error and no
// results.
func (e *Extractor) Extract(r io.Reader) ([]ArticleLinks, error) {
	if len(e.Rules) == 0 {
		return nil, ErrNoRules
	}
	dec := xml.NewDecoder(r)
	dec.Entity = xml.HTMLEntity

	var (
		results  []ArticleLinks
		stack    []string
		articles []*articleState
		idText   *strings.Builder
		idType   string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if name == articleElement {
				articles = append(articles, &articleState{idRank: len(idTypeRank)})
			}
			if len(articles) > 0 {
				cur := articles[len(articles)-1]
				if name == "article-id" {
					idText = &strings.Builder{}
					idType = attrValue(t.Attr, xml.Name{Local: "pub-id-type"})
				}
				for i, rule := range e.Rules {
					if rule.Element != name {
						continue
					}
					if rule.Within != "" && !contains(stack, rule.Within) {
						continue
					}
					if href := strings.TrimSpace(attrValue(t.Attr, rule.Attr)); href != "" {
						cur.candidates = append(cur.candidates, candidate{rule: i, href: href})
					}
				}
			}
			stack = append(stack, name)

		case xml.CharData:
			if idText != nil {
				idText.Write(t)
			}

		case xml.EndElement:
			name := t.Name.Local
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			if name == "article-id" && idText != nil && len(articles) > 0 {
				cur := articles[len(articles)-1]
				if rank, ok := idTypeRank[idType]; ok && rank < cur.idRank {
					if id := NormalizeID(idText.String()); id != "" {
						cur.id = id
						cur.idRank = rank
					}
				}
				idText = nil
			}
			if name == articleElement && len(articles) > 0 {
				cur := articles[len(articles)-1]
				articles = articles[:len(articles)-1]
				if cur.id != "" {
					results = append(results, ArticleLinks{ID: cur.id, Links: e.finish(cur)})
				}
			}
		}
	}
	return results, nil
}

// finish orders, filters, resolves and deduplicates an article's candidates.
func (e *Extractor) finish(a *articleState) []string {
	var links []string
	seen := make(map[string]bool)
	for i, rule := range e.Rules {
		for _, c := range a.candidates {
			if c.rule != i {
				continue
			}
			if len(rule.Extensions) > 0 && !hasExtension(c.href, rule.Extensions) {
				continue
			}
			link := c.href
			if rule.Rewrite && e.Resolve != nil {
				link = e.Resolve(a.id, link)
			}
			if seen[link] {
				continue
			}
			seen[link] = true
			links = append(links, link)
		}
	}
	return links
}

// idTypeRank orders article-id pub-id-type values by preference.
var idTypeRank = map[string]int{
	"pmc-uid": 0,
	"pmcid":   1,
	"pmc":     2,
}

// NormalizeID strips whitespace and a case-insensitive "PMC" prefix.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= 3 && strings.EqualFold(id[:3], "PMC") {
		id = id[3:]
	}
	return id
}

func attrValue(attrs []xml.Attr, want xml.Name) string {
	for _, a := range attrs {
		if a.Name.Local != want.Local {
			continue
		}
		if a.Name.Space == want.Space {
			return a.Value
		}
		if p, ok := conventionalPrefix[want.Space]; ok && a.Name.Space == p {
			return a.Value
		}
	}
	return ""
}

func hasExtension(href string, allowed []string) bool {
	p := href
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

func contains(stack []string, name string) bool {
	for _, s := range stack {
		if s == name {
			return true
		}
	}
	return false
}
