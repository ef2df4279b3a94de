package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tracklist-extractor/constants"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
)

func TestRecordCompletion(t *testing.T) {
	a := NewAggregator()

	a.RecordCompletion("m1", "A", llm.CompletionResult{Success: true, TotalTokens: 100, CostEstimate: 0.1})
	a.RecordCompletion("m1", "A", llm.Failed("m1", "A", "boom"))
	a.RecordCompletion("m2", "B", llm.CompletionResult{Success: true, TotalTokens: 50, CostEstimate: 0.05})

	s := a.Completions()
	assert.Equal(t, 3, s.TotalRequests)
	assert.Equal(t, 2, s.SuccessfulRequests)
	assert.Equal(t, 1, s.FailedRequests)
	assert.Equal(t, 150, s.TotalTokens)
	assert.InDelta(t, 0.15, s.TotalCost, 1e-9)
	assert.Equal(t, Usage{Requests: 2, Tokens: 100, Cost: 0.1}, s.ProviderUsage["A"])
	assert.Equal(t, Usage{Requests: 1, Tokens: 50, Cost: 0.05}, s.ModelUsage["m2"])
}

func TestRecordDocument(t *testing.T) {
	a := NewAggregator()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a.Reset(start)
	a.SetTotal(4)

	ok := llm.CompletionResult{ModelUsed: "m1", ProviderUsed: "A", PromptTokens: 80, CompletionTokens: 20, TotalTokens: 100, CostEstimate: 0.1, Success: true}
	a.RecordDocument(DocumentOutcome{Status: constants.UnitStatusSuccess, Elapsed: 2 * time.Second, Completion: &ok})
	a.RecordDocument(DocumentOutcome{Status: constants.UnitStatusFailed, Elapsed: time.Second, Completion: &ok})
	a.RecordDocument(DocumentOutcome{Status: constants.UnitStatusSkipped})
	a.RecordDocument(DocumentOutcome{Status: constants.UnitStatusCancelled})
	a.RecordParse(true)
	a.RecordParse(false)
	a.Finish(start.Add(time.Minute))

	p := a.Snapshot().Processing
	assert.Equal(t, 4, p.TotalFiles)
	assert.Equal(t, 1, p.ProcessedFiles)
	assert.Equal(t, 1, p.FailedFiles)
	assert.Equal(t, 1, p.SkippedFiles)
	assert.Equal(t, 1, p.CancelledFiles)
	assert.InDelta(t, 3.0, p.TotalProcessingTime, 1e-9)
	assert.Equal(t, 160, p.TotalTokensUsed)
	assert.Equal(t, 40, p.TotalResponseTokens)
	assert.Equal(t, 1, p.SuccessfulParses)
	assert.Equal(t, 1, p.FailedParses)
	assert.Equal(t, FileUsage{Count: 1, Tokens: 100, Cost: 0.1}, p.ModelUsage["m1"])
	assert.Equal(t, FileUsage{Count: 1, Tokens: 100, Cost: 0.1}, p.ProviderUsage["A"])
	assert.Equal(t, time.Minute, p.WallTime())
	assert.InDelta(t, 3.0, p.AverageTimePerFile(), 1e-9)
}

func TestResetClearsBothGroups(t *testing.T) {
	a := NewAggregator()
	a.RecordCompletion("m", "p", llm.CompletionResult{Success: true, TotalTokens: 1})
	a.RecordDocument(DocumentOutcome{Status: constants.UnitStatusSuccess})

	a.Reset(time.Now())

	s := a.Snapshot()
	assert.Zero(t, s.Processing.ProcessedFiles)
	assert.NotNil(t, s.Processing.StartTime)
	assert.Nil(t, s.Processing.EndTime)
	assert.Zero(t, s.Completions.TotalRequests)
	assert.Zero(t, s.Completions.TotalTokens)
	assert.Empty(t, s.Completions.ModelUsage)
	assert.Empty(t, s.Completions.ProviderUsage)

	a.RecordCompletion("m", "p", llm.CompletionResult{Success: true, TotalTokens: 1})
	assert.Equal(t, 1, a.Snapshot().Completions.ModelUsage["m"].Requests)
}

func TestSnapshotIsACopy(t *testing.T) {
	a := NewAggregator()
	a.RecordCompletion("m", "p", llm.CompletionResult{Success: true, TotalTokens: 1})

	s := a.Snapshot()
	s.Completions.ModelUsage["m"] = Usage{Requests: 99}

	assert.Equal(t, 1, a.Snapshot().Completions.ModelUsage["m"].Requests)
}

func TestConcurrentUpdatesAreCommutative(t *testing.T) {
	a := NewAggregator()
	res := llm.CompletionResult{ModelUsed: "m", ProviderUsed: "p", PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3, CostEstimate: 0.5, Success: true}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.RecordCompletion("m", "p", res)
			a.RecordDocument(DocumentOutcome{Status: constants.UnitStatusSuccess, Elapsed: time.Millisecond, Completion: &res})
			a.RecordParse(true)
		}()
	}
	wg.Wait()

	s := a.Snapshot()
	require.Equal(t, 50, s.Completions.TotalRequests)
	assert.Equal(t, 150, s.Completions.TotalTokens)
	assert.InDelta(t, 25.0, s.Completions.TotalCost, 1e-9)
	assert.Equal(t, 50, s.Processing.ProcessedFiles)
	assert.Equal(t, 50, s.Processing.SuccessfulParses)
	assert.Equal(t, FileUsage{Count: 50, Tokens: 150, Cost: 25}, s.Processing.ModelUsage["m"])
}
