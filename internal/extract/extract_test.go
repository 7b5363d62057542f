package extract

import (
	"net/url"
	"strings"
	"testing"
)

func TestFindPDFLinks_PriorityOrder(t *testing.T) {
	page := `
	<html>
	<head>
		<meta name="citation_title" content="APOE and Alzheimer's">
		<meta name="citation_pdf_url" content="/content/10.1101/2024.01.01v1.full.pdf">
	</head>
	<body>
		<a href="/downloads/supplement.pdf">Supplement</a>
		<a href="https://example.org/about">About</a>
		<iframe src="//cdn.example.org/viewer/paper.pdf"></iframe>
		<a href="#ref1">1</a>
		<a href="javascript:void(0)">js</a>
		<a href="/downloads/supplement.pdf">Duplicate</a>
	</body>
	</html>`

	links, err := FindPDFLinks(page, "https://www.biorxiv.org/content/10.1101/2024.01.01v1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(links) != 3 {
		t.Fatalf("Expected 3 PDF links, got %d: %+v", len(links), links)
	}

	if links[0].Kind != LinkKindCitationMeta || links[0].URL != "https://www.biorxiv.org/content/10.1101/2024.01.01v1.full.pdf" {
		t.Errorf("Expected citation meta first, got %+v", links[0])
	}
	if links[1].Kind != LinkKindEmbedded || links[1].URL != "https://cdn.example.org/viewer/paper.pdf" {
		t.Errorf("Expected embedded viewer second, got %+v", links[1])
	}
	if links[2].Kind != LinkKindAnchor || links[2].Text != "Supplement" {
		t.Errorf("Expected anchor last, got %+v", links[2])
	}
}

func TestCitationPDFURL(t *testing.T) {
	page := `<html><head><meta name="CITATION_PDF_URL" content="https://journal.example/paper.pdf"></head></html>`
	if got := CitationPDFURL(page, "https://journal.example/article/1"); got != "https://journal.example/paper.pdf" {
		t.Errorf("Unexpected citation URL: %q", got)
	}
	if got := CitationPDFURL("<html><body>no meta</body></html>", "https://journal.example/"); got != "" {
		t.Errorf("Expected empty citation URL, got %q", got)
	}
}

func TestLooksLikePDF(t *testing.T) {
	tests := map[string]bool{
		"https://arxiv.org/pdf/2301.01234":                  true,
		"https://x.org/files/paper.PDF":                     true,
		"https://europepmc.org/articles/PMC1/pdf/render":    true,
		"https://x.org/download?format=pdf":                 true,
		"https://x.org/article/123":                         false,
		"https://www.ncbi.nlm.nih.gov/pmc/articles/PMC123/": false,
	}
	for in, want := range tests {
		if got := looksLikePDF(in); got != want {
			t.Errorf("looksLikePDF(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestResolveURL(t *testing.T) {
	base, _ := url.Parse("https://mirror.example/paper/123")

	tests := map[string]string{
		"/files/a.pdf":          "https://mirror.example/files/a.pdf",
		"b.pdf":                 "https://mirror.example/paper/b.pdf",
		"//cdn.example/c.pdf":   "https://cdn.example/c.pdf",
		"ftp://files.example/d": "",
		"mailto:editor@example": "",
		"#section":              "",
		"":                      "",
	}
	for in, want := range tests {
		if got := resolveURL(base, in); got != want {
			t.Errorf("resolveURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestVisibleText_SkipsScripts(t *testing.T) {
	text, err := VisibleText(`<html><head><style>p{}</style><script>var x=1;</script></head>
		<body><p>APOE e4 increases risk.</p><noscript>enable js</noscript></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if text != "APOE e4 increases risk." {
		t.Errorf("Unexpected text: %q", text)
	}
}

func TestArticleText_PrefersArticleElement(t *testing.T) {
	page := `<html><body>
		<nav>Home | Journals</nav>
		<div>Cookie banner</div>
		<article>
			<h1>APOE and amyloid</h1>
			<p>First   paragraph
			of the study.</p>
			<p>Second paragraph with <i>inline</i> markup.</p>
		</article>
		<footer>Copyright</footer>
	</body></html>`

	text, err := ArticleText(page)
	if err != nil {
		t.Fatal(err)
	}
	want := "APOE and amyloid\n\nFirst paragraph of the study.\n\nSecond paragraph with inline markup."
	if text != want {
		t.Errorf("Unexpected article text:\n%q\nwant\n%q", text, want)
	}
	if strings.Contains(text, "Cookie") {
		t.Error("Text outside the article should be ignored")
	}
}
