// Package metrics aggregates run-level counters from concurrent workers.
// Completion counters and document counters are guarded by separate mutexes
// and every update is commutative, so the final snapshot does not depend on
// completion order.
package metrics

import (
	"sync"
	"time"

	"github.com/joseph-ayodele/tracklist-extractor/constants"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
)

// Usage accumulates completion calls for one model or provider.
type Usage struct {
	Requests int     `json:"requests"`
	Tokens   int     `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// FileUsage accumulates successfully processed documents for one model or provider.
type FileUsage struct {
	Count  int     `json:"count"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// CompletionStats counts every executed AI call, including fallback attempts.
type CompletionStats struct {
	TotalRequests      int              `json:"total_requests"`
	SuccessfulRequests int              `json:"successful_requests"`
	FailedRequests     int              `json:"failed_requests"`
	TotalTokens        int              `json:"total_tokens"`
	TotalCost          float64          `json:"total_cost"`
	ProviderUsage      map[string]Usage `json:"provider_usage"`
	ModelUsage         map[string]Usage `json:"model_usage"`
}

// ProcessingStats counts documents.
type ProcessingStats struct {
	TotalFiles          int                  `json:"total_files"`
	ProcessedFiles      int                  `json:"processed_files"`
	FailedFiles         int                  `json:"failed_files"`
	SkippedFiles        int                  `json:"skipped_files"`
	CancelledFiles      int                  `json:"cancelled_files"`
	TotalProcessingTime float64              `json:"total_processing_time"`
	TotalTokensUsed     int                  `json:"total_tokens_used"`
	TotalResponseTokens int                  `json:"total_response_tokens"`
	SuccessfulParses    int                  `json:"successful_parses"`
	FailedParses        int                  `json:"failed_parses"`
	StartTime           *time.Time           `json:"start_time"`
	EndTime             *time.Time           `json:"end_time"`
	ModelUsage          map[string]FileUsage `json:"model_usage"`
	ProviderUsage       map[string]FileUsage `json:"provider_usage"`
}

// AverageTimePerFile is the mean processing time of successful documents.
func (s ProcessingStats) AverageTimePerFile() float64 {
	n := s.ProcessedFiles
	if n < 1 {
		n = 1
	}
	return s.TotalProcessingTime / float64(n)
}

// WallTime is the span between Reset and Finish.
func (s ProcessingStats) WallTime() time.Duration {
	if s.StartTime == nil || s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(*s.StartTime)
}

// Snapshot is a consistent copy of both groups.
type Snapshot struct {
	Processing  ProcessingStats `json:"processing_metrics"`
	Completions CompletionStats `json:"model_manager_metrics"`
}

// DocumentOutcome describes one finished unit. Completion is nil when no AI
// call was made.
type DocumentOutcome struct {
	Status     constants.UnitStatus
	Elapsed    time.Duration
	Completion *llm.CompletionResult
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	compMu sync.Mutex
	comp   CompletionStats

	docMu sync.Mutex
	doc   ProcessingStats
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	a := &Aggregator{}
	a.comp = emptyCompletionStats()
	a.doc = emptyProcessingStats()
	return a
}

func emptyCompletionStats() CompletionStats {
	return CompletionStats{
		ProviderUsage: map[string]Usage{},
		ModelUsage:    map[string]Usage{},
	}
}

func emptyProcessingStats() ProcessingStats {
	return ProcessingStats{
		ModelUsage:    map[string]FileUsage{},
		ProviderUsage: map[string]FileUsage{},
	}
}

// Reset clears both counter groups and stamps the run start. The groups are
// locked one at a time, never together.
func (a *Aggregator) Reset(start time.Time) {
	a.compMu.Lock()
	a.comp = emptyCompletionStats()
	a.compMu.Unlock()

	a.docMu.Lock()
	a.doc = emptyProcessingStats()
	a.doc.StartTime = &start
	a.docMu.Unlock()
}

// SetTotal records how many documents the run will handle.
func (a *Aggregator) SetTotal(n int) {
	a.docMu.Lock()
	defer a.docMu.Unlock()
	a.doc.TotalFiles = n
}

// AddTotal grows the document total as the collector discovers sources.
func (a *Aggregator) AddTotal(n int) {
	a.docMu.Lock()
	defer a.docMu.Unlock()
	a.doc.TotalFiles += n
}

// RecordCompletion counts one executed call.
func (a *Aggregator) RecordCompletion(model, provider string, res llm.CompletionResult) {
	a.compMu.Lock()
	defer a.compMu.Unlock()

	a.comp.TotalRequests++
	pu := a.comp.ProviderUsage[provider]
	mu := a.comp.ModelUsage[model]
	pu.Requests++
	mu.Requests++
	if res.Success {
		a.comp.SuccessfulRequests++
		a.comp.TotalTokens += res.TotalTokens
		a.comp.TotalCost += res.CostEstimate
		pu.Tokens += res.TotalTokens
		pu.Cost += res.CostEstimate
		mu.Tokens += res.TotalTokens
		mu.Cost += res.CostEstimate
	} else {
		a.comp.FailedRequests++
	}
	a.comp.ProviderUsage[provider] = pu
	a.comp.ModelUsage[model] = mu
}

// RecordParse counts one decode of a model answer.
func (a *Aggregator) RecordParse(ok bool) {
	a.docMu.Lock()
	defer a.docMu.Unlock()
	if ok {
		a.doc.SuccessfulParses++
	} else {
		a.doc.FailedParses++
	}
}

// RecordDocument counts one finished unit.
func (a *Aggregator) RecordDocument(o DocumentOutcome) {
	a.docMu.Lock()
	defer a.docMu.Unlock()

	switch o.Status {
	case constants.UnitStatusSuccess:
		a.doc.ProcessedFiles++
		a.doc.TotalProcessingTime += o.Elapsed.Seconds()
	case constants.UnitStatusFailed:
		a.doc.FailedFiles++
		a.doc.TotalProcessingTime += o.Elapsed.Seconds()
	case constants.UnitStatusSkipped:
		a.doc.SkippedFiles++
	case constants.UnitStatusCancelled:
		a.doc.CancelledFiles++
	}

	if o.Completion == nil || !o.Completion.Success {
		return
	}
	c := o.Completion
	a.doc.TotalTokensUsed += c.PromptTokens
	a.doc.TotalResponseTokens += c.CompletionTokens
	if o.Status != constants.UnitStatusSuccess {
		return
	}
	tokens := c.PromptTokens + c.CompletionTokens
	mu := a.doc.ModelUsage[c.ModelUsed]
	mu.Count++
	mu.Tokens += tokens
	mu.Cost += c.CostEstimate
	a.doc.ModelUsage[c.ModelUsed] = mu
	pu := a.doc.ProviderUsage[c.ProviderUsed]
	pu.Count++
	pu.Tokens += tokens
	pu.Cost += c.CostEstimate
	a.doc.ProviderUsage[c.ProviderUsed] = pu
}

// Finish stamps the run end.
func (a *Aggregator) Finish(end time.Time) {
	a.docMu.Lock()
	defer a.docMu.Unlock()
	a.doc.EndTime = &end
}

// Snapshot returns deep copies of both groups. Locks are taken one at a time.
func (a *Aggregator) Snapshot() Snapshot {
	return Snapshot{Processing: a.processing(), Completions: a.completions()}
}

// Completions returns a copy of the completion counters.
func (a *Aggregator) Completions() CompletionStats {
	return a.completions()
}

func (a *Aggregator) completions() CompletionStats {
	a.compMu.Lock()
	defer a.compMu.Unlock()
	out := a.comp
	out.ProviderUsage = make(map[string]Usage, len(a.comp.ProviderUsage))
	for k, v := range a.comp.ProviderUsage {
		out.ProviderUsage[k] = v
	}
	out.ModelUsage = make(map[string]Usage, len(a.comp.ModelUsage))
	for k, v := range a.comp.ModelUsage {
		out.ModelUsage[k] = v
	}
	return out
}

func (a *Aggregator) processing() ProcessingStats {
	a.docMu.Lock()
	defer a.docMu.Unlock()
	out := a.doc
	if a.doc.StartTime != nil {
		t := *a.doc.StartTime
		out.StartTime = &t
	}
	if a.doc.EndTime != nil {
		t := *a.doc.EndTime
		out.EndTime = &t
	}
	out.ModelUsage = make(map[string]FileUsage, len(a.doc.ModelUsage))
	for k, v := range a.doc.ModelUsage {
		out.ModelUsage[k] = v
	}
	out.ProviderUsage = make(map[string]FileUsage, len(a.doc.ProviderUsage))
	for k, v := range a.doc.ProviderUsage {
		out.ProviderUsage[k] = v
	}
	return out
}
