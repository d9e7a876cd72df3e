package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/legis-analyzer/internal/cost"
	"github.com/sells-group/legis-analyzer/internal/model"
	"github.com/sells-group/legis-analyzer/internal/resilience"
	"github.com/sells-group/legis-analyzer/internal/scorer"
	"github.com/sells-group/legis-analyzer/internal/store"
	"github.com/sells-group/legis-analyzer/pkg/anthropic"
)

// Config tunes the analysis pipeline.
type Config struct {
	Model            string
	MaxContextTokens int
	SafetyBuffer     int
	CacheTTL         time.Duration
	// HardTokenLimit rejects bills outright instead of chunking them when
	// their input exceeds it. Zero disables the gate.
	HardTokenLimit int
	// Pricing, when set, overrides the SDK wrapper's built-in rate table
	// for cost estimates.
	Pricing *cost.Calculator
}

func (c Config) budget() int {
	b := c.MaxContextTokens - c.SafetyBuffer
	if b <= 0 {
		b = 1
	}
	return b
}

// Analyzer drives the full pipeline for one bill: sizing, chunking,
// sequential model calls with context carry-forward, merging, and
// version-chained persistence.
type Analyzer struct {
	store   store.Store
	client  *StructuredClient
	chunker *Chunker
	counter *TokenCounter
	cache   *gocache.Cache
	cfg     Config
	logger  *zap.Logger
}

func New(st store.Store, client *StructuredClient, cfg Config) *Analyzer {
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = 180000
	}
	if cfg.SafetyBuffer <= 0 {
		cfg.SafetyBuffer = 20000
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	counter := &TokenCounter{}
	return &Analyzer{
		store:   st,
		client:  client,
		chunker: NewChunker(counter),
		counter: counter,
		cache:   gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		cfg:     cfg,
		logger:  zap.L(),
	}
}

// Analyze runs the pipeline for billID and persists the result as a new
// analysis version. Repeated calls within the cache TTL return the cached
// record without invoking the model.
func (a *Analyzer) Analyze(ctx context.Context, billID string) (*model.AnalysisRecord, error) {
	if cached, ok := a.cache.Get(billID); ok {
		a.logger.Debug("analysis cache hit", zap.String("bill_id", billID))
		return cached.(*model.AnalysisRecord), nil
	}

	bill, err := a.store.GetBill(ctx, billID)
	if err != nil {
		return nil, &AnalysisError{BillID: billID, Stage: "load", Err: err}
	}
	if bill == nil {
		return nil, &AnalysisError{BillID: billID, Stage: "load", Err: fmt.Errorf("bill not found")}
	}

	result, raw, validated, usage, err := a.run(ctx, bill)
	if err != nil {
		return nil, err
	}
	usage.LogCost(a.cfg.Model, "analyze")

	rec, err := a.store.CreateAnalysis(ctx, &model.AnalysisRecord{
		BillID:       bill.ID,
		ModelVersion: a.cfg.Model,
		Analysis:     result,
		Raw:          raw,
		Validated:    validated,
	})
	if err != nil {
		return nil, err
	}

	a.derivePriority(ctx, bill.ID, rec.Analysis)

	a.cache.Set(billID, rec, gocache.DefaultExpiration)
	return rec, nil
}

// run executes the model-facing part of the pipeline without touching the
// store, returning the merged result, the raw audit payload, whether every
// contributing call validated, and aggregate token usage.
func (a *Analyzer) run(ctx context.Context, bill *model.Bill) (model.Analysis, json.RawMessage, bool, anthropic.TokenUsage, error) {
	var usage anthropic.TokenUsage

	input := bill.AnalysisInput()
	if input == "" {
		return model.Analysis{}, nil, false, usage, &ContentProcessingError{BillID: bill.ID, Reason: "bill has no analyzable text"}
	}

	budget := a.cfg.budget()
	tokens := a.counter.Count(input)
	if a.cfg.HardTokenLimit > 0 && tokens > a.cfg.HardTokenLimit {
		return model.Analysis{}, nil, false, usage, &TokenLimitError{BillID: bill.ID, Tokens: tokens, Budget: a.cfg.HardTokenLimit}
	}

	if tokens <= budget {
		res, err := a.client.Call(ctx,
			[]anthropic.SystemBlock{{Text: SystemInstruction(false)}},
			[]anthropic.Message{{Role: "user", Content: UserPrompt(input, false)}},
		)
		if err != nil {
			return model.Analysis{}, nil, false, usage, err
		}
		usage = usage.Add(res.Usage)
		if res.Empty {
			return model.Analysis{}, nil, false, usage, &AnalysisError{BillID: bill.ID, Stage: "model_call", Err: fmt.Errorf("model returned no data")}
		}
		return res.Analysis, res.Raw, res.Validated, usage, nil
	}

	chunks, hasStructure, err := a.chunker.Split(input, budget)
	if err != nil {
		if cpe, ok := err.(*ContentProcessingError); ok {
			cpe.BillID = bill.ID
			return model.Analysis{}, nil, false, usage, cpe
		}
		return model.Analysis{}, nil, false, usage, &AnalysisError{BillID: bill.ID, Stage: "chunking", Err: err}
	}
	a.logger.Info("chunked bill for analysis",
		zap.String("bill_id", bill.ID),
		zap.Int("tokens", tokens),
		zap.Int("chunks", len(chunks)),
		zap.Bool("has_structure", hasStructure),
	)

	result, raw, validated, seqUsage, err := a.analyzeSequential(ctx, bill, chunks, hasStructure)
	usage = usage.Add(seqUsage)
	return result, raw, validated, usage, err
}

// analyzeSequential processes chunks strictly in order, carrying each
// chunk's summary forward into later prompts and merging results as it
// goes. A failed first chunk aborts the run; a failed later chunk is
// skipped so a mid-document failure still yields a partial analysis.
func (a *Analyzer) analyzeSequential(ctx context.Context, bill *model.Bill, chunks []string, hasStructure bool) (model.Analysis, json.RawMessage, bool, anthropic.TokenUsage, error) {
	var (
		cumulative model.Analysis
		summaries  []string
		rawParts   []json.RawMessage
		usage      anthropic.TokenUsage
		haveBase   bool
		validated  = true
	)

	// The system instruction is identical across chunk calls, so it is
	// cached server-side and re-read on every subsequent call.
	system := anthropic.BuildCachedSystemBlocks(SystemInstruction(true))
	metadata := bill.Metadata()

	for i, chunk := range chunks {
		prompt := ChunkPrompt(chunk, i, len(chunks), summaries, metadata, hasStructure)
		res, err := a.client.Call(ctx, system,
			[]anthropic.Message{{Role: "user", Content: UserPrompt(prompt, true)}},
		)
		if err != nil {
			if i == 0 {
				return model.Analysis{}, nil, false, usage, err
			}
			a.logger.Warn("chunk analysis failed, skipping",
				zap.String("bill_id", bill.ID),
				zap.Int("chunk", i),
				zap.Error(err),
			)
			continue
		}
		usage = usage.Add(res.Usage)
		if res.Empty {
			a.logger.Warn("chunk produced no data, skipping",
				zap.String("bill_id", bill.ID),
				zap.Int("chunk", i),
			)
			continue
		}

		summaries = append(summaries, fmt.Sprintf("Chunk %d Summary: %s", i+1, res.Analysis.Summary))
		rawParts = append(rawParts, res.Raw)
		validated = validated && res.Validated

		if !haveBase {
			cumulative = res.Analysis
			haveBase = true
		} else {
			cumulative = Merge(cumulative, res.Analysis)
		}
	}

	if !haveBase || cumulative.Summary == "" {
		return model.Analysis{}, nil, false, usage, &AnalysisError{BillID: bill.ID, Stage: "merge", Err: fmt.Errorf("no chunk produced a summary")}
	}

	PostProcess(&cumulative)

	raw, err := json.Marshal(rawParts)
	if err != nil {
		return model.Analysis{}, nil, false, usage, &AnalysisError{BillID: bill.ID, Stage: "merge", Err: err}
	}
	return cumulative, raw, validated, usage, nil
}

// derivePriority computes and upserts the bill's priority scores. Failures
// here are logged and swallowed: priority scoring is non-critical and must
// never fail a completed analysis.
func (a *Analyzer) derivePriority(ctx context.Context, billID string, result model.Analysis) {
	p := scorer.Derive(billID, result)
	if err := a.store.UpsertPriority(ctx, p); err != nil {
		a.logger.Warn("priority derivation failed",
			zap.String("bill_id", billID),
			zap.Error(err),
		)
	}
}

// AsyncResult is delivered on the channel returned by AnalyzeAsync.
type AsyncResult struct {
	Record *model.AnalysisRecord
	Err    error
}

// AnalyzeAsync runs Analyze in a goroutine and delivers the result on the
// returned channel. Semantics are identical to Analyze.
func (a *Analyzer) AnalyzeAsync(ctx context.Context, billID string) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		rec, err := a.Analyze(ctx, billID)
		ch <- AsyncResult{Record: rec, Err: err}
		close(ch)
	}()
	return ch
}

// AnalyzeText analyzes free-form text without loading or persisting
// anything. Used for ad-hoc runs against text that is not in the store.
func (a *Analyzer) AnalyzeText(ctx context.Context, title, text string) (*model.Analysis, error) {
	bill := &model.Bill{ID: "adhoc", Title: title, Text: []byte(text)}
	result, _, _, usage, err := a.run(ctx, bill)
	if err != nil {
		return nil, err
	}
	usage.LogCost(a.cfg.Model, "analyze_text")
	return &result, nil
}

// CostEstimate is a dry-run sizing of an analysis; it never invokes the
// model service.
type CostEstimate struct {
	InputTokens           int     `json:"input_tokens"`
	EstimatedOutputTokens int     `json:"estimated_output_tokens"`
	ChunksNeeded          int     `json:"chunks_needed"`
	RequiresChunking      bool    `json:"requires_chunking"`
	EstimatedCostUSD      float64 `json:"estimated_cost_usd"`
}

func (a *Analyzer) EstimateCost(ctx context.Context, billID string) (*CostEstimate, error) {
	bill, err := a.store.GetBill(ctx, billID)
	if err != nil {
		return nil, &AnalysisError{BillID: billID, Stage: "load", Err: err}
	}
	if bill == nil {
		return nil, &AnalysisError{BillID: billID, Stage: "load", Err: fmt.Errorf("bill not found")}
	}

	input := bill.AnalysisInput()
	tokens := a.counter.Count(input)
	budget := a.cfg.budget()

	chunks := 1
	if tokens > budget {
		chunks = (tokens + budget - 1) / budget
	}

	output := tokens / 2
	if limit := int(a.client.cfg.MaxOutputTokens); output > limit {
		output = limit
	}
	// Chunked runs re-send prior summaries, so scale output per chunk.
	estOutput := output
	if chunks > 1 {
		estOutput = output * chunks
	}

	est := &CostEstimate{
		InputTokens:           tokens,
		EstimatedOutputTokens: estOutput,
		ChunksNeeded:          chunks,
		RequiresChunking:      chunks > 1,
	}
	estUsage := anthropic.TokenUsage{
		InputTokens:  int64(tokens),
		OutputTokens: int64(estOutput),
	}
	if a.cfg.Pricing != nil {
		est.EstimatedCostUSD = a.cfg.Pricing.Usage(a.cfg.Model, estUsage)
	} else {
		est.EstimatedCostUSD = estUsage.EstimateCost(a.cfg.Model)
	}
	return est, nil
}

// BatchItem is the per-bill outcome of a batch run.
type BatchItem struct {
	Record *model.AnalysisRecord `json:"record,omitempty"`
	Err    string                `json:"error,omitempty"`
}

// BatchResult aggregates a batch run's outcomes.
type BatchResult struct {
	Successful int                  `json:"successful"`
	Failed     int                  `json:"failed"`
	Skipped    int                  `json:"skipped"`
	Results    map[string]BatchItem `json:"results"`
}

// BatchAnalyze fans out independent Analyze calls across billIDs, at most
// concurrency at a time. Partial failures are collected, and failed bills
// are queued to the dead letter queue for later replay; the batch itself
// never aborts.
func (a *Analyzer) BatchAnalyze(ctx context.Context, billIDs []string, concurrency int) *BatchResult {
	if concurrency <= 0 {
		concurrency = 3
	}

	result := &BatchResult{Results: make(map[string]BatchItem, len(billIDs))}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, billID := range billIDs {
		g.Go(func() error {
			rec, err := a.Analyze(ctx, billID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Successful++
				result.Results[billID] = BatchItem{Record: rec}
			case isSkippable(err):
				result.Skipped++
				result.Results[billID] = BatchItem{Err: err.Error()}
			default:
				result.Failed++
				result.Results[billID] = BatchItem{Err: err.Error()}
				a.queueFailure(ctx, billID, err)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	a.logger.Info("batch analysis complete",
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result
}

// isSkippable reports whether a bill failed for reasons retrying cannot
// fix: missing text or un-sizable content.
func isSkippable(err error) bool {
	switch e := err.(type) {
	case *ContentProcessingError, *TokenLimitError:
		return true
	case *AnalysisError:
		return e.Stage == "load"
	}
	return false
}

func (a *Analyzer) queueFailure(ctx context.Context, billID string, failure error) {
	now := time.Now().UTC()
	entry := resilience.DLQEntry{
		BillID:       billID,
		Error:        failure.Error(),
		ErrorType:    resilience.ClassifyError(failure),
		FailedStage:  "llm_call",
		MaxRetries:   3,
		NextRetryAt:  now.Add(resilience.ExponentialDelay(time.Minute, 0)),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if err := a.store.EnqueueDLQ(ctx, entry); err != nil {
		a.logger.Warn("failed to queue bill for retry",
			zap.String("bill_id", billID),
			zap.Error(err),
		)
	}
}
