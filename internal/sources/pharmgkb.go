package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
)

// PharmGKBAdapter returns pharmacogenomic annotation counts for a variant
type PharmGKBAdapter struct {
	client  *Client
	baseURL string
}

// NewPharmGKBAdapter creates a PharmGKB adapter
func NewPharmGKBAdapter(client *Client, baseURL string) *PharmGKBAdapter {
	return &PharmGKBAdapter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name returns the source name
func (a *PharmGKBAdapter) Name() string { return SourcePharmGKB }

type pharmgkbVariant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Chromosome struct {
		Name string `json:"name"`
	} `json:"chromosome"`
	Gene struct {
		Symbol string `json:"symbol"`
	} `json:"gene"`
	Genes []struct {
		Symbol string `json:"symbol"`
	} `json:"genes"`
	ClinicalAnnotations []json.RawMessage `json:"clinicalAnnotations"`
	DrugLabels          []json.RawMessage `json:"drugLabels"`
	Guidelines          []json.RawMessage `json:"guidelines"`
}

// LookupPharmGKB returns the PharmGKB record, or nil
func (a *PharmGKBAdapter) LookupPharmGKB(ctx context.Context, identifier string) *model.PharmGKBRecord {
	body, err := a.client.Get(ctx, SourcePharmGKB, a.baseURL+"/data/variant?symbol="+url.QueryEscape(identifier))
	if err != nil {
		a.client.degrade(SourcePharmGKB, identifier, err)
		return nil
	}
	rec, err := parsePharmGKB(body)
	if err != nil {
		a.client.degrade(SourcePharmGKB, identifier, err)
		return nil
	}
	return rec
}

func parsePharmGKB(body []byte) (*model.PharmGKBRecord, error) {
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Status == "error" {
		return nil, errors.New("pharmgkb: error status")
	}

	// data is an array for symbol searches and an object for ID lookups
	var v pharmgkbVariant
	var list []pharmgkbVariant
	if err := json.Unmarshal(envelope.Data, &list); err == nil {
		if len(list) == 0 {
			return nil, errors.New("pharmgkb: no variant")
		}
		v = list[0]
	} else if err := json.Unmarshal(envelope.Data, &v); err != nil {
		return nil, err
	}

	gene := v.Gene.Symbol
	if gene == "" && len(v.Genes) > 0 {
		gene = v.Genes[0].Symbol
	}

	return &model.PharmGKBRecord{
		ID:                  v.ID,
		Name:                model.OrPlaceholder(v.Name, model.PlaceholderUnknownCap),
		Gene:                model.OrPlaceholder(gene, model.PlaceholderUnknownCap),
		Chromosome:          model.OrPlaceholder(v.Chromosome.Name, model.PlaceholderUnknownCap),
		ClinicalAnnotations: len(v.ClinicalAnnotations),
		DrugLabels:          len(v.DrugLabels),
		Guidelines:          len(v.Guidelines),
	}, nil
}
