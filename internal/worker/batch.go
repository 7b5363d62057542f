package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
)

// Analyzer analyses one identifier against a topic
type Analyzer interface {
	AnalyzeIdentifier(ctx context.Context, identifier, topic string) (*model.Report, error)
}

// AnalyzeJob represents one identifier analysis
type AnalyzeJob struct {
	Index      int
	Identifier string
	Topic      string
	Analyzer   Analyzer
}

// Execute executes the analysis job
func (j *AnalyzeJob) Execute(ctx context.Context) Result {
	report, err := j.Analyzer.AnalyzeIdentifier(ctx, j.Identifier, j.Topic)
	return &AnalyzeResult{
		Index:      j.Index,
		Identifier: j.Identifier,
		Report:     report,
		Error:      err,
	}
}

// AnalyzeResult represents the result of an analysis job
type AnalyzeResult struct {
	Index      int
	Identifier string
	Report     *model.Report
	Error      error
}

// GetError returns the error from the analysis result
func (r *AnalyzeResult) GetError() error {
	return r.Error
}

// BatchProcessor analyses many identifiers with bounded concurrency
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessIdentifiers analyses identifiers concurrently; results keep input order.
// Once ctx is cancelled the pool is shut down and every identifier that never
// reported gets a result carrying the context error.
func (b *BatchProcessor) ProcessIdentifiers(ctx context.Context, identifiers []string, topic string) []*AnalyzeResult {
	if len(identifiers) == 0 {
		return []*AnalyzeResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	cancelled := false
	for i, id := range identifiers {
		if !pool.Submit(&AnalyzeJob{
			Index:      i,
			Identifier: id,
			Topic:      topic,
			Analyzer:   b.analyzer,
		}) {
			cancelled = true
			break
		}
	}

	var results []Result
	if cancelled {
		results = pool.Shutdown()
	} else {
		results = pool.Wait()
	}

	out := make([]*AnalyzeResult, len(identifiers))
	for _, r := range results {
		res := r.(*AnalyzeResult)
		out[res.Index] = res
	}
	for i, res := range out {
		if res == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &AnalyzeResult{Index: i, Identifier: identifiers[i], Error: err}
		}
	}

	return out
}

// ProcessFile reads identifiers from a file and analyses them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath, topic string) ([]*AnalyzeResult, error) {
	ids, err := ReadIdentifiersFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read identifiers: %w", err)
	}

	return b.ProcessIdentifiers(ctx, ids, topic), nil
}

// ReadIdentifiersFromFile reads identifiers from a file (one per line).
// Blank lines and # comments are skipped; duplicates keep their first position.
func ReadIdentifiersFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Allow trailing comments: "rs429358  # APOE e4"
		if idx := strings.Index(line, "#"); idx > 0 {
			line = strings.TrimSpace(line[:idx])
		}

		key := strings.ToLower(line)
		if !seen[key] {
			seen[key] = true
			ids = append(ids, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return ids, nil
}
