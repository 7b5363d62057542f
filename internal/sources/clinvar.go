package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/snpscope/internal/model"
)

const clinvarMaxRecords = 20

// ClinVarAdapter lists clinical-significance records from NCBI ClinVar
type ClinVarAdapter struct {
	client  *Client
	baseURL string
	apiKey  string
}

// NewClinVarAdapter creates a ClinVar adapter
func NewClinVarAdapter(client *Client, eutilsURL, apiKey string) *ClinVarAdapter {
	return &ClinVarAdapter{client: client, baseURL: strings.TrimRight(eutilsURL, "/"), apiKey: apiKey}
}

// Name returns the source name
func (a *ClinVarAdapter) Name() string { return SourceClinVar }

type clinvarSummary struct {
	UID                  string `json:"uid"`
	Title                string `json:"title"`
	Accession            string `json:"accession"`
	ClinicalSignificance struct {
		Description  string `json:"description"`
		ReviewStatus string `json:"review_status"`
	} `json:"clinical_significance"`
	GermlineClassification struct {
		Description  string `json:"description"`
		ReviewStatus string `json:"review_status"`
	} `json:"germline_classification"`
	TraitSet []struct {
		TraitName string `json:"trait_name"`
	} `json:"trait_set"`
	Genes []struct {
		Symbol string `json:"symbol"`
	} `json:"genes"`
}

// ClinicalRecords returns ClinVar entries for an identifier
func (a *ClinVarAdapter) ClinicalRecords(ctx context.Context, identifier string) []model.ClinicalRecord {
	ids, err := a.search(ctx, identifier)
	if err != nil {
		a.client.degrade(SourceClinVar, identifier, err)
		return []model.ClinicalRecord{}
	}
	if len(ids) == 0 {
		return []model.ClinicalRecord{}
	}

	q := a.params(url.Values{"db": {"clinvar"}, "id": {strings.Join(ids, ",")}, "retmode": {"json"}})
	body, err := a.client.Do(ctx, Request{
		Source:     SourceClinVar,
		URL:        a.baseURL + "/esummary.fcgi?" + q.Encode(),
		Accept:     func(b []byte) bool { return !looksLikeHTML(b) },
		RetryDelay: time.Second,
	})
	if err != nil {
		a.client.degrade(SourceClinVar, identifier, err)
		return []model.ClinicalRecord{}
	}

	records, err := parseClinVarSummary(body)
	if err != nil {
		a.client.degrade(SourceClinVar, identifier, err)
		return []model.ClinicalRecord{}
	}
	return records
}

func (a *ClinVarAdapter) search(ctx context.Context, identifier string) ([]string, error) {
	q := a.params(url.Values{
		"db":      {"clinvar"},
		"term":    {identifier + "[All Fields]"},
		"retmax":  {fmt.Sprint(clinvarMaxRecords)},
		"retmode": {"json"},
	})
	body, err := a.client.Do(ctx, Request{
		Source:     SourceClinVar,
		URL:        a.baseURL + "/esearch.fcgi?" + q.Encode(),
		Accept:     func(b []byte) bool { return !looksLikeHTML(b) },
		RetryDelay: time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}

	var resp struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode esearch: %w", err)
	}
	return resp.ESearchResult.IDList, nil
}

func (a *ClinVarAdapter) params(q url.Values) url.Values {
	if a.apiKey != "" {
		q.Set("api_key", a.apiKey)
	}
	return q
}

func parseClinVarSummary(body []byte) ([]model.ClinicalRecord, error) {
	var envelope struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode esummary: %w", err)
	}

	var uids []string
	if raw, ok := envelope.Result["uids"]; ok {
		if err := json.Unmarshal(raw, &uids); err != nil {
			return nil, fmt.Errorf("decode uids: %w", err)
		}
	}

	records := make([]model.ClinicalRecord, 0, len(uids))
	for _, uid := range uids {
		raw, ok := envelope.Result[uid]
		if !ok {
			continue
		}
		var s clinvarSummary
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}

		// Newer summaries move the classification under germline_classification
		significance := s.ClinicalSignificance.Description
		review := s.ClinicalSignificance.ReviewStatus
		if significance == "" {
			significance = s.GermlineClassification.Description
		}
		if review == "" {
			review = s.GermlineClassification.ReviewStatus
		}

		traits := make([]string, 0, len(s.TraitSet))
		for _, t := range s.TraitSet {
			if t.TraitName != "" {
				traits = append(traits, t.TraitName)
			}
		}
		genes := make([]string, 0, len(s.Genes))
		for _, g := range s.Genes {
			if g.Symbol != "" {
				genes = append(genes, g.Symbol)
			}
		}

		records = append(records, model.ClinicalRecord{
			UID:                  uid,
			Title:                model.OrPlaceholder(s.Title, model.PlaceholderUnknownCap),
			ClinicalSignificance: model.OrPlaceholder(significance, model.PlaceholderUnknownCap),
			Condition:            model.OrPlaceholder(strings.Join(traits, "; "), model.PlaceholderUnknownCap),
			Gene:                 model.OrPlaceholder(strings.Join(genes, ", "), model.PlaceholderUnknownCap),
			ReviewStatus:         model.OrPlaceholder(review, model.PlaceholderUnknownCap),
			Accession:            s.Accession,
		})
	}
	return records, nil
}
