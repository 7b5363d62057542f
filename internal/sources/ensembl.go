package sources

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
)

// EnsemblAdapter returns variant annotation from the Ensembl REST API
type EnsemblAdapter struct {
	client  *Client
	baseURL string
}

// NewEnsemblAdapter creates an Ensembl adapter
func NewEnsemblAdapter(client *Client, baseURL string) *EnsemblAdapter {
	return &EnsemblAdapter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name returns the source name
func (a *EnsemblAdapter) Name() string { return SourceEnsembl }

type ensemblVariation struct {
	Error    string `json:"error"`
	Name     string `json:"name"`
	Mappings []struct {
		SeqRegionName string `json:"seq_region_name"`
		Start         int64  `json:"start"`
		End           int64  `json:"end"`
		Strand        int    `json:"strand"`
		AlleleString  string `json:"allele_string"`
	} `json:"mappings"`
	AncestralAllele       string     `json:"ancestral_allele"`
	MinorAllele           string     `json:"minor_allele"`
	MAF                   flexString `json:"MAF"`
	MostSevereConsequence string     `json:"most_severe_consequence"`
	Synonyms              []string   `json:"synonyms"`
}

// LookupEnsembl returns the Ensembl record, or nil
func (a *EnsemblAdapter) LookupEnsembl(ctx context.Context, identifier string) *model.EnsemblRecord {
	var v ensemblVariation
	u := a.baseURL + "/variation/human/" + url.PathEscape(identifier) + "?content-type=application/json"
	if err := a.client.GetJSON(ctx, SourceEnsembl, u, &v); err != nil {
		a.client.degrade(SourceEnsembl, identifier, err)
		return nil
	}
	if v.Error != "" {
		a.client.degrade(SourceEnsembl, identifier, ensemblError(v.Error))
		return nil
	}

	rec := &model.EnsemblRecord{
		Identifier:  identifier,
		Name:        model.OrPlaceholder(v.Name, identifier),
		Ancestral:   model.OrPlaceholder(v.AncestralAllele, model.PlaceholderUnknown),
		Minor:       model.OrPlaceholder(v.MinorAllele, model.PlaceholderUnknown),
		MAF:         model.OrPlaceholder(string(v.MAF), model.PlaceholderUnknown),
		Consequence: model.OrPlaceholder(v.MostSevereConsequence, model.PlaceholderUnknown),
		Synonyms:    v.Synonyms,
	}
	for _, m := range v.Mappings {
		rec.Mappings = append(rec.Mappings, model.EnsemblMapping{
			Chromosome:   m.SeqRegionName,
			Start:        m.Start,
			End:          m.End,
			Strand:       m.Strand,
			AlleleString: m.AlleleString,
		})
	}
	return rec
}

// Location formats the first mapping as chr:start for display
func Location(rec *model.EnsemblRecord) string {
	if rec == nil || len(rec.Mappings) == 0 {
		return model.PlaceholderUnknown
	}
	m := rec.Mappings[0]
	return m.Chromosome + ":" + strconv.FormatInt(m.Start, 10)
}

type ensemblError string

func (e ensemblError) Error() string { return "ensembl: " + string(e) }
