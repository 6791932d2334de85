package analyzer

import (
	"context"
	"sync"
)

// Document is one input of a batch.
type Document struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Options Options `json:"options"`
}

// BatchResult pairs a document id with its result or error.
type BatchResult struct {
	ID     string
	Result *AnalysisResult
	Err    error
}

// AnalyzeBatch analyzes docs with at most concurrency analyses in flight.
// Results are returned in input order. Documents not started before ctx is
// done carry ctx.Err().
func (a *Analyzer) AnalyzeBatch(ctx context.Context, docs []Document, concurrency int) []BatchResult {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]BatchResult, len(docs))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, doc := range docs {
		results[i].ID = doc.ID
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		select {
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, doc Document) {
			defer func() {
				<-sem
				wg.Done()
			}()
			results[i].Result, results[i].Err = a.Analyze(doc.Content, doc.Options)
		}(i, doc)
	}

	wg.Wait()
	return results
}
