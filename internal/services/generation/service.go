package generation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
	"github.com/ternarybob/longform/internal/services/llm"
)

// ModelResolver maps a model tier to a concrete model name
type ModelResolver interface {
	ModelForTier(tier string) string
}

// RequestLimiter gates generation requests per user
type RequestLimiter interface {
	Allow(userID string) bool
}

// Dependencies are the collaborators of the generation service.
// Events, Fetcher and Limiter are optional.
type Dependencies struct {
	Generator TextGenerator
	Models    ModelResolver
	Billing   interfaces.BillingLedger
	Scripts   interfaces.ScriptStorage
	Runs      interfaces.RunStorage
	Events    interfaces.EventService
	Fetcher   interfaces.ResearchFetcher
	Limiter   RequestLimiter
}

// Request is one generation request
type Request struct {
	Brief     models.ContentBrief
	RequestID string
	Progress  ProgressFunc
}

// Result is returned to the caller on success.
// ScriptID is nil when the script was generated and billed but could not be persisted.
type Result struct {
	Script      string             `json:"script"`
	CreditsUsed int                `json:"creditsUsed"`
	ScriptID    *string            `json:"scriptId"`
	RequestID   string             `json:"requestId"`
	WordCount   int                `json:"wordCount"`
	Verdict     models.GateVerdict `json:"verdict"`
}

// Service orchestrates planning, chunk generation, stitching, gating, billing and persistence
type Service struct {
	config   *common.Config
	deps     Dependencies
	planner  *Planner
	credits  *CreditCalculator
	prompts  *PromptBuilder
	gate     *Gate
	retry    *llm.RetryConfig
	validate *validator.Validate
	timeout  time.Duration
	logger   arbor.ILogger
}

// NewService creates the generation service
func NewService(config *common.Config, deps Dependencies, logger arbor.ILogger) (*Service, error) {
	if deps.Generator == nil || deps.Models == nil {
		return nil, fmt.Errorf("generation service requires a text generator and model resolver")
	}
	if deps.Billing == nil || deps.Scripts == nil || deps.Runs == nil {
		return nil, fmt.Errorf("generation service requires billing, script and run storage")
	}

	planner := NewPlanner(&config.Generation)
	return &Service{
		config:   config,
		deps:     deps,
		planner:  planner,
		credits:  NewCreditCalculator(&config.Credits, planner),
		prompts:  NewPromptBuilder(&config.Generation, &config.Research),
		gate:     NewGate(&config.Generation),
		retry:    llm.NewRetryConfig(&config.LLM),
		validate: validator.New(),
		timeout:  common.ParseDurationOr(config.Generation.Timeout, 5*time.Minute),
		logger:   logger,
	}, nil
}

// Planner exposes the duration planner
func (s *Service) Planner() *Planner {
	return s.planner
}

// Estimate prices a generation without running it
func (s *Service) Estimate(durationSeconds int, tier models.ModelTier) (models.CreditCost, error) {
	if tier != "" && !tier.Valid() {
		return models.CreditCost{}, InputError("model_tier", "unknown model tier", string(tier))
	}
	if durationSeconds < 0 {
		return models.CreditCost{}, InputError("duration", "duration must not be negative", strconv.Itoa(durationSeconds))
	}
	return s.credits.Estimate(durationSeconds, tier)
}

// ValidateBrief checks the brief's structural constraints
func (s *Service) ValidateBrief(brief *models.ContentBrief) error {
	if err := s.validate.Struct(brief); err != nil {
		return InputError("brief", "invalid content brief", err.Error())
	}
	if brief.Sponsor != nil && brief.Sponsor.AfterPoint >= len(brief.ContentPoints) {
		return InputError("brief", "invalid content brief",
			fmt.Sprintf("sponsor after_point %d is beyond the %d content points", brief.Sponsor.AfterPoint, len(brief.ContentPoints)))
	}
	return nil
}

// ScopedRequestID binds a caller-supplied idempotency key to its user
func ScopedRequestID(userID, key string) string {
	return userID + ":" + key
}

// run carries the mutable state of one pipeline run
type run struct {
	req      *Request
	brief    models.ContentBrief
	record   *models.GenerationRun
	progress *progressReporter
	executor *Executor
	model    string
	provider string
	research string
	plan     models.ChunkPlan
	outline  *models.Outline
	content  *models.ContentPlan
	logger   arbor.ILogger
	// replayed is set when another run already billed this request ID
	replayed bool
}

// Generate runs the whole pipeline. Credits are debited only after the gate passes,
// and never on a failure path.
func (s *Service) Generate(ctx context.Context, req *Request) (*Result, error) {
	requestID := common.NewRequestID()
	if req.RequestID != "" {
		requestID = ScopedRequestID(req.Brief.UserID, req.RequestID)
		if prior, err := s.deps.Runs.GetRun(ctx, requestID); err == nil && prior.Status == models.RunComplete {
			s.logger.Warn().
				Str("user_id", req.Brief.UserID).
				Str("request_id", requestID).
				Msg("Rejected replay of a completed request")
			return nil, ConflictError(fmt.Sprintf("request %s already completed", req.RequestID))
		}
	}

	r := &run{
		req:   req,
		brief: req.Brief,
		record: &models.GenerationRun{
			ID:        requestID,
			UserID:    req.Brief.UserID,
			Topic:     req.Brief.Topic,
			StartedAt: time.Now(),
		},
		progress: &progressReporter{
			events:    s.deps.Events,
			callback:  req.Progress,
			requestID: requestID,
			userID:    req.Brief.UserID,
		},
		executor: NewExecutor(s.deps.Generator, s.retry, s.logger),
		logger:   s.logger.WithCorrelationId(requestID),
	}

	result, err := s.execute(ctx, r)
	r.record.LLMCalls = r.executor.Calls()
	r.record.CompletedAt = time.Now()
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}

	r.record.Status = models.RunComplete
	s.saveRun(ctx, r)
	r.progress.emit(ctx, StageComplete, -1, "", "script complete", map[string]interface{}{
		"word_count":   result.WordCount,
		"credits_used": result.CreditsUsed,
	})
	s.publish(ctx, interfaces.EventGenerationCompleted, r.record)

	r.logger.Info().
		Str("user_id", r.brief.UserID).
		Int("word_count", result.WordCount).
		Int("credits", result.CreditsUsed).
		Int("llm_calls", r.record.LLMCalls).
		Msg("Script generation complete")
	return result, nil
}

func (s *Service) execute(ctx context.Context, r *run) (*Result, error) {
	brief := &r.brief

	if s.deps.Limiter != nil && !s.deps.Limiter.Allow(brief.UserID) {
		return nil, RateLimitError(fmt.Sprintf("user %s exceeded %d generation requests per hour", brief.UserID, s.config.Limits.RequestsPerHour))
	}
	if err := s.ValidateBrief(brief); err != nil {
		return nil, err
	}

	brief.DurationSeconds = s.planner.EffectiveDuration(brief.DurationSeconds)
	if brief.ModelTier == "" {
		brief.ModelTier = models.TierBalanced
	}
	r.record.DurationSeconds = brief.DurationSeconds
	r.record.ModelTier = brief.ModelTier

	if s.deps.Fetcher != nil && len(brief.Sources) > 0 {
		brief.Sources = s.deps.Fetcher.Hydrate(ctx, brief.Sources)
	}
	assessment := AssessResearch(brief.Sources, &s.config.Research, &s.config.Generation)
	if err := CheckResearchAdequacy(assessment, &s.config.Research); err != nil {
		return nil, err
	}

	cost, err := s.credits.Estimate(brief.DurationSeconds, brief.ModelTier)
	if err != nil {
		return nil, ConfigError("credit pricing is misconfigured", err)
	}
	r.record.CreditsQuoted = cost.Credits
	ok, err := s.deps.Billing.CheckBalance(ctx, brief.UserID, cost.Credits)
	if err != nil {
		return nil, BillingError("credit check failed", err)
	}
	if !ok {
		balance, _ := s.deps.Billing.Balance(ctx, brief.UserID)
		return nil, InsufficientCreditsError(cost.Credits, balance)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r.model = s.deps.Models.ModelForTier(string(brief.ModelTier))
	r.research = s.prompts.ResearchContext(brief.Sources)

	r.plan = s.planner.Plan(brief.DurationSeconds, brief.ContentPoints)
	r.record.Plan = r.plan
	r.progress.emit(ctx, StagePlanning, -1, "", "duration planned", map[string]interface{}{
		"minutes":        r.plan.TotalMinutes,
		"chunked":        r.plan.Chunked,
		"chunk_count":    r.plan.ChunkCount,
		"expected_words": r.plan.ExpectedWords,
		"credits":        cost.Credits,
	})
	r.logger.Debug().
		Int("minutes", r.plan.TotalMinutes).
		Int("chunks", r.plan.ChunkCount).
		Int("min_words_per_chunk", r.plan.MinWordsPerChunk).
		Int("expected_words", r.plan.ExpectedWords).
		Str("model", r.model).
		Msg("Generation planned")

	var chunks []*models.ChunkResult
	if r.plan.Chunked {
		s.planChunks(ctx, r)
		chunks, err = s.generateChunks(ctx, r)
	} else {
		var chunk *models.ChunkResult
		chunk, err = s.generateSingle(ctx, r)
		chunks = []*models.ChunkResult{chunk}
	}
	for _, c := range chunks {
		if c != nil {
			r.record.Chunks = append(r.record.Chunks, *c)
		}
	}
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	stitched := Stitch(texts)
	for _, w := range stitched.Warnings {
		r.logger.Warn().Str("warning", w).Msg("Stitch warning")
	}
	r.progress.emit(ctx, StageStitched, -1, "", "chunks stitched", map[string]interface{}{
		"pre_dedup_words": stitched.PreDedupLength,
		"words":           stitched.StitchedLength,
		"removed_words":   stitched.RemovedWords,
	})

	report := s.gate.Evaluate(GateInput{
		Text:                stitched.Text,
		ExpectedWords:       r.plan.ExpectedWords,
		PreDedupLength:      stitched.PreDedupLength,
		StitchedLength:      stitched.StitchedLength,
		HighQualityResearch: assessment.HighQuality,
	})
	verdict := report.Verdict
	r.record.Verdict = &verdict
	r.progress.emit(ctx, StageGateCheck, -1, "", "completeness gate evaluated", map[string]interface{}{
		"passed":     verdict.Passed,
		"word_ratio": verdict.WordRatio,
		"threshold":  verdict.Threshold,
	})
	if err := report.Err(); err != nil {
		return nil, err
	}

	receipt, err := s.deps.Billing.Debit(context.WithoutCancel(ctx), brief.UserID, r.record.ID, cost.Credits, map[string]string{
		"topic":       brief.Topic,
		"tier":        string(brief.ModelTier),
		"minutes":     strconv.Itoa(r.plan.TotalMinutes),
		"word_count":  strconv.Itoa(report.WordCount),
		"chunk_count": strconv.Itoa(r.plan.ChunkCount),
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrInsufficientCredits) {
			balance, _ := s.deps.Billing.Balance(ctx, brief.UserID)
			return nil, InsufficientCreditsError(cost.Credits, balance)
		}
		if errors.Is(err, interfaces.ErrDebitConflict) {
			r.replayed = true
			return nil, ConflictError(err.Error())
		}
		return nil, BillingError("credit debit failed", err)
	}
	if receipt.Duplicate {
		r.replayed = true
		return nil, ConflictError(fmt.Sprintf("request %s was already billed", r.record.ID))
	}
	r.record.CreditsDebited = receipt.Amount

	result := &Result{
		Script:      stitched.Text,
		CreditsUsed: receipt.Amount,
		RequestID:   r.record.ID,
		WordCount:   report.WordCount,
		Verdict:     verdict,
	}

	record := &models.ScriptRecord{
		ID:              common.NewScriptID(),
		UserID:          brief.UserID,
		RequestID:       r.record.ID,
		Topic:           brief.Topic,
		Script:          stitched.Text,
		WordCount:       report.WordCount,
		ExpectedWords:   r.plan.ExpectedWords,
		DurationSeconds: brief.DurationSeconds,
		ModelTier:       brief.ModelTier,
		Provider:        r.provider,
		Model:           r.model,
		CreditsUsed:     receipt.Amount,
		Chunked:         r.plan.Chunked,
		ChunkCount:      r.plan.ChunkCount,
		OutlineUsed:     r.outline != nil,
		SourceCount:     len(brief.Sources),
		ContentPoints:   brief.ContentPoints,
		CreatedAt:       time.Now(),
	}
	if err := s.deps.Scripts.SaveScript(context.WithoutCancel(ctx), record); err != nil {
		r.logger.Error().Err(err).Str("user_id", brief.UserID).Msg("Failed to persist script, returning it without an id")
	} else {
		result.ScriptID = &record.ID
		r.record.ScriptID = record.ID
	}

	return result, nil
}

// planChunks builds an outline for long scripts, falling back to a content plan
func (s *Service) planChunks(ctx context.Context, r *run) {
	if s.planner.NeedsOutline(r.brief.DurationSeconds) {
		gen := NewOutlineGenerator(r.executor, s.prompts, r.logger)
		outline, err := gen.Generate(ctx, &r.brief, r.plan, r.model)
		if err == nil {
			r.outline = outline
			r.record.OutlineUsed = true
			r.progress.emit(ctx, StageOutline, -1, "", "outline generated", map[string]interface{}{
				"sections":     len(outline.Sections),
				"target_words": outline.TotalTargetWords(),
			})
			return
		}
		r.logger.Warn().Err(err).Msg("Outline generation failed, falling back to content plan")
	}

	r.content = BuildContentPlan(&r.brief, r.plan)
	r.progress.emit(ctx, StageContentPlan, -1, "", "content plan built", map[string]interface{}{
		"chunks": len(r.content.Chunks),
	})
}

// generateChunks runs the chunk machine for each chunk in order
func (s *Service) generateChunks(ctx context.Context, r *run) ([]*models.ChunkResult, error) {
	results := make([]*models.ChunkResult, 0, r.plan.ChunkCount)

	for i := 0; i < r.plan.ChunkCount; i++ {
		r.progress.emit(ctx, StageGenerating, i, "", fmt.Sprintf("generating part %d of %d", i+1, r.plan.ChunkCount), nil)

		ops := &chunkOps{service: s, run: r, index: i}
		machine := NewChunkMachine(NewChunkPolicy(&s.config.Generation, r.plan.MinWordsPerChunk), ops, r.logger, s.transitionReporter(ctx, r))
		result, err := machine.Run(ctx, i)
		results = append(results, result)
		if err != nil {
			return results, err
		}

		for _, v := range result.BoundaryViolations {
			r.logger.Warn().
				Int("chunk", i).
				Str("kind", string(v.Kind)).
				Str("heading", v.Heading).
				Str("matched", v.MatchedTitle).
				Msg("Chunk boundary violation")
		}
	}
	return results, nil
}

// generateSingle runs the chunk machine once over the whole script
func (s *Service) generateSingle(ctx context.Context, r *run) (*models.ChunkResult, error) {
	r.progress.emit(ctx, StageGenerating, 0, "", "generating script", nil)
	ops := &singleShotOps{service: s, run: r}
	machine := NewChunkMachine(NewChunkPolicy(&s.config.Generation, r.plan.ExpectedWords), ops, r.logger, s.transitionReporter(ctx, r))
	return machine.Run(ctx, 0)
}

func (s *Service) transitionReporter(ctx context.Context, r *run) TransitionFunc {
	return func(index int, state models.ChunkState, words int) {
		r.progress.emit(ctx, stageForChunkState(state), index, state, "", map[string]interface{}{
			"word_count": words,
		})
	}
}

// call issues one LLM request with the shared system prompt and a word-derived token budget
func (s *Service) call(ctx context.Context, r *run, prompt string, budgetWords int) (string, error) {
	resp, err := r.executor.Generate(ctx, &llm.ContentRequest{
		Model:             r.model,
		SystemInstruction: s.prompts.SystemPrompt(&r.brief),
		Messages:          []interfaces.Message{{Role: "user", Content: prompt}},
		Temperature:       s.config.Generation.Temperature,
		MaxTokens:         s.tokenBudget(budgetWords),
	})
	if err != nil {
		return "", err
	}
	if resp.Provider != "" {
		r.provider = string(resp.Provider)
	}
	return resp.Text, nil
}

func (s *Service) tokenBudget(words int) int {
	budget := int(math.Ceil(float64(words) * s.config.Generation.TokensPerWord))
	if limit := s.config.Generation.MaxOutputTokens; limit > 0 && budget > limit {
		budget = limit
	}
	return budget
}

func (s *Service) fail(ctx context.Context, r *run, err error) error {
	ge := Classify(err)

	r.record.Status = models.RunFailed
	r.record.ErrorKind = string(ge.Kind)
	r.record.ErrorCheck = ge.Check
	r.record.ErrorMessage = ge.Error()
	if !r.replayed {
		s.saveRun(ctx, r)
	}

	r.progress.emit(ctx, StageFailed, -1, "", ge.Message, map[string]interface{}{
		"kind":  string(ge.Kind),
		"check": ge.Check,
		"retry": ge.Retry,
	})
	s.publish(ctx, interfaces.EventGenerationFailed, r.record)

	r.logger.Warn().
		Str("user_id", r.brief.UserID).
		Str("kind", string(ge.Kind)).
		Str("check", ge.Check).
		Bool("retry", ge.Retry).
		Err(err).
		Msg("Script generation failed")
	return ge
}

func (s *Service) saveRun(ctx context.Context, r *run) {
	if err := s.deps.Runs.SaveRun(context.WithoutCancel(ctx), r.record); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to save generation run")
	}
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, record *models.GenerationRun) {
	if s.deps.Events == nil {
		return
	}
	snapshot := *record
	if err := s.deps.Events.Publish(context.WithoutCancel(ctx), interfaces.Event{Type: eventType, Payload: &snapshot}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish generation event")
	}
}

// chunkOps drives the LLM for one chunk of a chunked script
type chunkOps struct {
	service *Service
	run     *run
	index   int
}

func (o *chunkOps) section() *models.OutlineSection {
	if o.run.outline != nil && o.index < len(o.run.outline.Sections) {
		return &o.run.outline.Sections[o.index]
	}
	return nil
}

func (o *chunkOps) Generate(ctx context.Context, attempt int, mustCover []string) (string, error) {
	r := o.run
	prompt := o.service.prompts.ChunkPrompt(ChunkContext{
		Brief:       &r.brief,
		Plan:        r.plan,
		Index:       o.index,
		Outline:     r.outline,
		ContentPlan: r.content,
		Research:    r.research,
		MustCover:   mustCover,
	})
	target := r.plan.MinWordsPerChunk
	if sec := o.section(); sec != nil && sec.TargetWords > target {
		target = sec.TargetWords
	}
	return o.service.call(ctx, r, prompt, ceilMul(target, o.service.config.Generation.ExpansionTier2))
}

func (o *chunkOps) Expand(ctx context.Context, text string, target int, tier int) (string, error) {
	r := o.run
	last := o.index == r.plan.ChunkCount-1
	prompt := o.service.prompts.ExpansionPrompt(text, target, pointsFor(&r.brief, r.plan, o.index), r.research, last)
	return o.service.call(ctx, r, prompt, ceilMul(target, o.service.config.Generation.SingleShotCeiling))
}

func (o *chunkOps) CheckOutline(text string) []models.OutlineIssue {
	return CheckOutline(text, o.section())
}

func (o *chunkOps) CheckBoundaries(text string) []models.BoundaryViolation {
	r := o.run
	return CheckBoundaries(text,
		topicsBefore(&r.brief, r.plan, r.outline, r.content, o.index),
		topicsAfter(&r.brief, r.plan, r.outline, r.content, o.index))
}

// singleShotOps drives the LLM for a script generated in one call
type singleShotOps struct {
	service *Service
	run     *run
}

func (o *singleShotOps) Generate(ctx context.Context, attempt int, mustCover []string) (string, error) {
	r := o.run
	prompt := o.service.prompts.SingleShotPrompt(&r.brief, r.plan, r.research)
	return o.service.call(ctx, r, prompt, ceilMul(r.plan.ExpectedWords, o.service.config.Generation.ExpansionTier2))
}

func (o *singleShotOps) Expand(ctx context.Context, text string, target int, tier int) (string, error) {
	r := o.run
	prompt := o.service.prompts.ExpansionPrompt(text, target, r.brief.ContentPoints, r.research, true)
	return o.service.call(ctx, r, prompt, ceilMul(target, o.service.config.Generation.SingleShotCeiling))
}

func (o *singleShotOps) CheckOutline(string) []models.OutlineIssue {
	return nil
}

func (o *singleShotOps) CheckBoundaries(string) []models.BoundaryViolation {
	return nil
}
