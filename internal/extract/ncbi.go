// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"strings"
)

// PMCAssetBase is where PMC serves an article's supplementary files:
// <base>PMC<id>/bin/<file>.
const PMCAssetBase = "https://www.ncbi.nlm.nih.gov/pmc/articles/"

// TrustedExtensions is the allow-list applied to generic external links.
var TrustedExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".csv", ".tsv", ".txt",
	".zip", ".gz", ".tar", ".ppt", ".pptx", ".xml", ".json",
	".mp4", ".avi", ".mov", ".jpg", ".png", ".tif", ".tiff",
}

// PMCRules returns the rule set for PMC JATS documents, in priority order:
// supplementary-material hrefs, media nested in supplementary-material, then
// ext-link hrefs that point at a trusted file type.
func PMCRules() []Rule {
	return []Rule{
		{Element: "supplementary-material", Attr: XLinkHref, Rewrite: true},
		{Element: "media", Within: "supplementary-material", Attr: XLinkHref, Rewrite: true},
		{Element: "ext-link", Attr: XLinkHref, Extensions: TrustedExtensions},
	}
}

// PMCResolver rebases bare filenames onto base (PMCAssetBase when empty).
// Absolute http(s) and ftp references are returned unchanged.
func PMCResolver(base string) Resolver {
	if base == "" {
		base = PMCAssetBase
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return func(articleID, href string) string {
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "ftp://"):
			return href
		case strings.HasPrefix(href, "//"):
			return "https:" + href
		}
		return base + "PMC" + articleID + "/bin/" + strings.TrimLeft(href, "/")
	}
}

// NewPMC returns an extractor configured for PMC full-text XML.
func NewPMC(assetBase string) *Extractor {
	return &Extractor{
		Rules:   PMCRules(),
		Resolve: PMCResolver(assetBase),
	}
}
