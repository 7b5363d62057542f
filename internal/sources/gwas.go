package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
)

const defaultAssociationCap = 5

// GWASAdapter lists trait associations from the GWAS Catalog
type GWASAdapter struct {
	client  *Client
	baseURL string
	cap     int
}

// NewGWASAdapter creates a GWAS Catalog adapter returning at most cap associations
func NewGWASAdapter(client *Client, baseURL string, cap int) *GWASAdapter {
	if cap <= 0 {
		cap = defaultAssociationCap
	}
	return &GWASAdapter{client: client, baseURL: strings.TrimRight(baseURL, "/"), cap: cap}
}

// Name returns the source name
func (a *GWASAdapter) Name() string { return SourceGWAS }

// flexString accepts JSON strings and numbers
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type gwasAssociation struct {
	PValue       flexString `json:"pvalue"`
	PValueAlt    flexString `json:"pValue"`
	OrPerCopyNum flexString `json:"orPerCopyNum"`
	BetaNum      flexString `json:"betaNum"`
	EFOTraits    []struct {
		Trait string `json:"trait"`
	} `json:"efoTraits"`
	DiseaseTrait struct {
		Trait string `json:"trait"`
	} `json:"diseaseTrait"`
	Loci []struct {
		StrongestRiskAlleles []struct {
			RiskAlleleName string `json:"riskAlleleName"`
		} `json:"strongestRiskAlleles"`
	} `json:"loci"`
	StrongestSnpRiskAlleles []struct {
		RiskAlleleName string `json:"riskAlleleName"`
	} `json:"strongestSnpRiskAlleles"`
	Study struct {
		PublicationInfo struct {
			PubmedID        flexString `json:"pubmedId"`
			PublicationDate string     `json:"publicationDate"`
		} `json:"publicationInfo"`
	} `json:"study"`
}

type gwasResponse struct {
	Embedded struct {
		Associations []gwasAssociation `json:"associations"`
	} `json:"_embedded"`
	Associations []gwasAssociation `json:"associations"`
}

// Associations returns up to the configured cap of catalog associations
func (a *GWASAdapter) Associations(ctx context.Context, identifier string) []model.AssociationRecord {
	primary := fmt.Sprintf("%s/singleNucleotidePolymorphisms/%s/associations?projection=associationBySnp",
		a.baseURL, url.PathEscape(identifier))

	var resp gwasResponse
	err := a.client.GetJSON(ctx, SourceGWAS, primary, &resp)
	if err != nil {
		fallback := a.baseURL + "/singleNucleotidePolymorphisms/search/findByRsId?rsId=" + url.QueryEscape(identifier)
		resp = gwasResponse{}
		if ferr := a.client.GetJSON(ctx, SourceGWAS, fallback, &resp); ferr != nil {
			a.client.degrade(SourceGWAS, identifier, fmt.Errorf("%w; fallback: %v", err, ferr))
			return []model.AssociationRecord{}
		}
	}

	list := resp.Embedded.Associations
	if len(list) == 0 {
		list = resp.Associations
	}
	return convertAssociations(list, a.cap)
}

func convertAssociations(list []gwasAssociation, limit int) []model.AssociationRecord {
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]model.AssociationRecord, 0, len(list))
	for _, as := range list {
		out = append(out, model.AssociationRecord{
			Trait:         associationTrait(as),
			PValue:        model.OrPlaceholder(string(firstNonEmpty(as.PValue, as.PValueAlt)), model.PlaceholderUnknownCap),
			OddsRatioBeta: model.OrPlaceholder(string(firstNonEmpty(as.OrPerCopyNum, as.BetaNum)), model.PlaceholderUnknownCap),
			RiskAllele:    model.OrPlaceholder(riskAlleles(as), model.PlaceholderUnknownCap),
			PubMedID:      model.OrPlaceholder(string(as.Study.PublicationInfo.PubmedID), model.PlaceholderUnknownCap),
			Year:          model.OrPlaceholder(strings.SplitN(as.Study.PublicationInfo.PublicationDate, "-", 2)[0], model.PlaceholderUnknownCap),
		})
	}
	return out
}

func associationTrait(as gwasAssociation) string {
	traits := make([]string, 0, len(as.EFOTraits))
	for _, t := range as.EFOTraits {
		if t.Trait != "" {
			traits = append(traits, t.Trait)
		}
	}
	if len(traits) > 0 {
		return strings.Join(traits, ", ")
	}
	return model.OrPlaceholder(as.DiseaseTrait.Trait, model.PlaceholderUnknownCap)
}

func riskAlleles(as gwasAssociation) string {
	names := make([]string, 0, len(as.StrongestSnpRiskAlleles))
	for _, r := range as.StrongestSnpRiskAlleles {
		if r.RiskAlleleName != "" {
			names = append(names, r.RiskAlleleName)
		}
	}
	for _, l := range as.Loci {
		for _, r := range l.StrongestRiskAlleles {
			if r.RiskAlleleName != "" {
				names = append(names, r.RiskAlleleName)
			}
		}
	}
	return strings.Join(names, ", ")
}

func firstNonEmpty(vals ...flexString) flexString {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
