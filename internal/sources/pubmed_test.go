package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
)

func TestParsePubMedXML(t *testing.T) {
	body, err := os.ReadFile("testdata/efetch.xml")
	if err != nil {
		t.Fatal(err)
	}

	papers, err := ParsePubMedXML(body)
	if err != nil {
		t.Fatalf("ParsePubMedXML: %v", err)
	}
	if len(papers) != 3 {
		t.Fatalf("Expected 3 papers, got %d", len(papers))
	}

	p := papers[0]
	if p.Title != "APOE e4 and amyloid deposition in cognitively normal adults." {
		t.Errorf("Unexpected title: %q", p.Title)
	}
	if p.Abstract != "Carriers of rs429358 show earlier amyloid deposition. The effect was dose dependent." {
		t.Errorf("Unexpected abstract: %q", p.Abstract)
	}
	if p.Authors != "Smith, Jones, Lee et al." {
		t.Errorf("Unexpected authors: %q", p.Authors)
	}
	if p.Year != "2019" || p.Journal != "Neurobiology of aging" {
		t.Errorf("Unexpected year/journal: %q / %q", p.Year, p.Journal)
	}
	if p.PMID != "31000001" || p.PMCID != "PMC6500001" || p.DOI != "10.1016/j.neurobiolaging.2019.01.001" {
		t.Errorf("Unexpected identifiers: %s %s %s", p.PMID, p.PMCID, p.DOI)
	}
	if p.IsGWAS {
		t.Error("First paper should not be tagged GWAS")
	}

	g := papers[1]
	if !g.IsGWAS {
		t.Error("Genome-wide paper should be tagged GWAS")
	}
	if g.Year != "2018" {
		t.Errorf("Expected MedlineDate year 2018, got %q", g.Year)
	}
	if g.Authors != "Jansen, ADGC Consortium" {
		t.Errorf("Unexpected authors: %q", g.Authors)
	}

	empty := papers[2]
	if empty.Title != "Unknown title" || empty.Year != "Unknown" || empty.Journal != "Unknown" || empty.Authors != "Unknown" {
		t.Errorf("Expected placeholders, got %+v", empty)
	}
}

func TestPubMedSearch_MergesIDsAndSortsGWASFirst(t *testing.T) {
	efetch, err := os.ReadFile("testdata/efetch.xml")
	if err != nil {
		t.Fatal(err)
	}

	var fetchedIDs atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("term") != "rs429358 Alzheimer" {
			t.Errorf("Unexpected term: %s", r.URL.Query().Get("term"))
		}
		_, _ = fmt.Fprint(w, `{"esearchresult":{"idlist":["31000001","0","99999999999"]}}`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"resultList":{"result":[{"pmid":"29000002"},{"pmid":"31000001"},{"id":"PPR1"}]}}`)
	})
	mux.HandleFunc("/efetch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		fetchedIDs.Store(r.URL.Query().Get("id"))
		_, _ = w.Write(efetch)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.Client())
	a := NewPubMedAdapter(client, server.URL, NewEuropePMC(client, server.URL, ""), "", "snpscope", "")
	papers := a.SearchPapers(context.Background(), "rs429358", "Alzheimer", 20)

	if got := fetchedIDs.Load(); got != "31000001,29000002" {
		t.Errorf("Expected deduplicated, filtered ID union, got %v", got)
	}
	if len(papers) != 3 {
		t.Fatalf("Expected 3 papers, got %d", len(papers))
	}
	if !papers[0].IsGWAS {
		t.Errorf("Expected GWAS paper first, got %q", papers[0].Title)
	}
	for _, p := range papers {
		if p.Source != SourcePubMed {
			t.Errorf("Expected source pubmed, got %s", p.Source)
		}
	}
}

func TestPubMedSearch_FailureYieldsEmptySlice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.Client())
	a := NewPubMedAdapter(client, server.URL, NewEuropePMC(client, server.URL, ""), "", "", "")
	papers := a.SearchPapers(context.Background(), "rs1", "", 20)
	if papers == nil || len(papers) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", papers)
	}
}

func TestFilterPMIDs(t *testing.T) {
	ids := []string{"5", "abc", "-1", "0", "50000000", "49999999", "5", " 7 ", "8"}
	got := filterPMIDs(ids, 3)
	if strings.Join(got, ",") != "5,49999999,7" {
		t.Errorf("Unexpected filtered IDs: %v", got)
	}
}

func TestFormatAuthors(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, "Unknown"},
		{[]string{"A"}, "A"},
		{[]string{"A", "B", "C"}, "A, B, C"},
		{[]string{"A", "B", "C", "D"}, "A, B, C et al."},
	}
	for _, tt := range tests {
		if got := formatAuthors(tt.in); got != tt.want {
			t.Errorf("formatAuthors(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
