package sources

import (
	"context"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
)

const huggingFaceJournal = "HuggingFace Daily Papers"

// HuggingFaceAdapter filters the HuggingFace daily papers feed by the search term
type HuggingFaceAdapter struct {
	client  *Client
	baseURL string
}

// NewHuggingFaceAdapter creates a HuggingFace adapter
func NewHuggingFaceAdapter(client *Client, baseURL string) *HuggingFaceAdapter {
	return &HuggingFaceAdapter{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name returns the source name
func (a *HuggingFaceAdapter) Name() string { return SourceHuggingFace }

type dailyPaper struct {
	PublishedAt string `json:"publishedAt"`
	Title       string `json:"title"`
	Paper       struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Summary     string `json:"summary"`
		PublishedAt string `json:"publishedAt"`
		Upvotes     int    `json:"upvotes"`
		Authors     []struct {
			Name string `json:"name"`
		} `json:"authors"`
	} `json:"paper"`
}

// SearchPapers returns daily papers whose title or summary contains the search term
func (a *HuggingFaceAdapter) SearchPapers(ctx context.Context, identifier, topic string, max int) []model.PaperRecord {
	var feed []dailyPaper
	if err := a.client.GetJSON(ctx, SourceHuggingFace, a.baseURL+"/daily_papers", &feed); err != nil {
		a.client.degrade(SourceHuggingFace, identifier, err)
		return []model.PaperRecord{}
	}
	return filterDailyPapers(feed, strings.ToLower(SearchTerm(identifier, topic)), max)
}

func filterDailyPapers(feed []dailyPaper, term string, max int) []model.PaperRecord {
	papers := make([]model.PaperRecord, 0)
	for _, dp := range feed {
		if len(papers) >= max {
			break
		}
		title := strings.TrimSpace(dp.Paper.Title)
		if title == "" {
			title = strings.TrimSpace(dp.Title)
		}
		summary := strings.TrimSpace(dp.Paper.Summary)
		if !strings.Contains(strings.ToLower(title), term) && !strings.Contains(strings.ToLower(summary), term) {
			continue
		}

		names := make([]string, 0, len(dp.Paper.Authors))
		for _, au := range dp.Paper.Authors {
			names = append(names, au.Name)
		}
		published := dp.Paper.PublishedAt
		if published == "" {
			published = dp.PublishedAt
		}
		year := model.PlaceholderUnknownCap
		if len(published) >= 4 {
			year = published[:4]
		}

		p := model.PaperRecord{
			Title:    title,
			Authors:  formatAuthors(names),
			Year:     year,
			Journal:  huggingFaceJournal,
			Source:   SourceHuggingFace,
			Abstract: summary,
			ArxivID:  dp.Paper.ID,
			Upvotes:  dp.Paper.Upvotes,
		}
		if p.ArxivID != "" {
			p.PDFURL = ArXivPDFURL(p.ArxivID)
			p.URL = "https://huggingface.co/papers/" + p.ArxivID
		}
		papers = append(papers, p)
	}
	return papers
}
