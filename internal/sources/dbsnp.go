package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/snpscope/internal/model"
)

var docsumAllelesPattern = regexp.MustCompile(`alleles='([^']+)'`)

// DBSNPAdapter queries NCBI dbSNP through E-utilities esummary
type DBSNPAdapter struct {
	client  *Client
	baseURL string
	apiKey  string
}

// NewDBSNPAdapter creates a dbSNP adapter
func NewDBSNPAdapter(client *Client, eutilsURL, apiKey string) *DBSNPAdapter {
	return &DBSNPAdapter{client: client, baseURL: strings.TrimRight(eutilsURL, "/"), apiKey: apiKey}
}

// Name returns the source name
func (a *DBSNPAdapter) Name() string { return SourceDBSNP }

type dbsnpSummary struct {
	Chr                  string `json:"chr"`
	ChrPos               string `json:"chrpos"`
	Docsum               string `json:"docsum"`
	ClinicalSignificance string `json:"clinical_significance"`
	FxnClass             string `json:"fxn_class"`
	Genes                []struct {
		Name string `json:"name"`
	} `json:"genes"`
	GlobalMAFs []struct {
		Freq string `json:"freq"`
	} `json:"global_mafs"`
}

// LookupVariant returns the dbSNP record for an rsID, or nil
func (a *DBSNPAdapter) LookupVariant(ctx context.Context, identifier string) *model.VariantRecord {
	snpID, ok := rsNumber(identifier)
	if !ok {
		return nil
	}

	q := url.Values{}
	q.Set("db", "snp")
	q.Set("id", snpID)
	q.Set("retmode", "json")
	if a.apiKey != "" {
		q.Set("api_key", a.apiKey)
	}

	// NCBI answers rate-limited requests with an HTML page and status 200
	body, err := a.client.Do(ctx, Request{
		Source:     SourceDBSNP,
		URL:        a.baseURL + "/esummary.fcgi?" + q.Encode(),
		Accept:     func(b []byte) bool { return !looksLikeHTML(b) },
		RetryDelay: time.Second,
	})
	if err != nil {
		a.client.degrade(SourceDBSNP, identifier, err)
		return nil
	}

	rec, err := parseDBSNP(body, identifier, snpID)
	if err != nil {
		a.client.degrade(SourceDBSNP, identifier, err)
		return nil
	}
	return rec
}

func parseDBSNP(body []byte, identifier, snpID string) (*model.VariantRecord, error) {
	var envelope struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode esummary: %w", err)
	}
	raw, ok := envelope.Result[snpID]
	if !ok {
		return nil, fmt.Errorf("no docsum for %s", identifier)
	}

	var s dbsnpSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode docsum: %w", err)
	}

	genes := make([]string, 0, len(s.Genes))
	for _, g := range s.Genes {
		if g.Name != "" {
			genes = append(genes, g.Name)
		}
	}

	alleles := ""
	if m := docsumAllelesPattern.FindStringSubmatch(s.Docsum); m != nil {
		alleles = m[1]
	}

	maf := ""
	if len(s.GlobalMAFs) > 0 {
		maf = s.GlobalMAFs[0].Freq
	}

	return &model.VariantRecord{
		Source:               SourceDBSNP,
		Identifier:           identifier,
		Chromosome:           model.OrPlaceholder(s.Chr, model.PlaceholderUnknown),
		Position:             model.OrPlaceholder(s.ChrPos, model.PlaceholderUnknown),
		Gene:                 model.OrPlaceholder(strings.Join(genes, ", "), model.PlaceholderUnknown),
		Alleles:              model.OrPlaceholder(alleles, model.PlaceholderUnknown),
		MAF:                  model.OrPlaceholder(maf, model.PlaceholderUnknown),
		ClinicalSignificance: model.OrPlaceholder(s.ClinicalSignificance, model.PlaceholderNotReported),
		FunctionClass:        model.OrPlaceholder(s.FxnClass, model.PlaceholderUnknown),
	}, nil
}

// rsNumber strips the rs prefix; identifiers that are not rsIDs report false
func rsNumber(identifier string) (string, bool) {
	id := strings.TrimSpace(identifier)
	if len(id) < 3 || !strings.EqualFold(id[:2], "rs") {
		return "", false
	}
	num := id[2:]
	for _, r := range num {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return num, true
}

// IsRSID reports whether identifier looks like a dbSNP reference ID
func IsRSID(identifier string) bool {
	_, ok := rsNumber(identifier)
	return ok
}
