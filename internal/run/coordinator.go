package run

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aivet-io/aivet/internal/audit"
	"github.com/aivet-io/aivet/internal/guard"
	"github.com/aivet-io/aivet/internal/llm"
	aivetotel "github.com/aivet-io/aivet/internal/otel"
	"github.com/aivet-io/aivet/internal/search"
	"github.com/aivet-io/aivet/internal/session"
)

var tracer = aivetotel.Tracer("run")

// ErrTooManyRequests is returned when the caller already has the maximum
// number of concurrent runs in flight.
var ErrTooManyRequests = session.ErrConcurrencyLimit

// FailReasonDeadline and friends label Failure outcomes.
const (
	FailReasonDeadline          = "SessionDeadlineExceeded"
	FailReasonTokenBudget       = "TokenBudgetExceeded"
	FailReasonRuntime           = "AgentRuntimeFailure"
	FailReasonSearchUnavailable = "SearchUnavailable"
	FailReasonNoFinalReport     = "NoFinalReport"
)

// toolRefusal is the structured message fed back to the agent when a tool
// call is refused. Machine-parseable so the agent can adapt instead of
// retrying blindly.
type toolRefusal struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason"`
}

// Coordinator executes assessment runs: one state machine per request,
// shared guard, budgets, gateway, runtime, and audit trail across all runs.
type Coordinator struct {
	guard    *guard.Guard
	budgets  *session.Store
	gate     *session.Gate
	gateway  *search.Gateway
	runtime  llm.Runtime
	audit    *audit.Store
	maxSteps int
}

// CoordinatorConfig wires a Coordinator. Audit may be nil to disable the
// trail; everything else is required.
type CoordinatorConfig struct {
	Guard    *guard.Guard
	Budgets  *session.Store
	Gate     *session.Gate
	Gateway  *search.Gateway
	Runtime  llm.Runtime
	Audit    *audit.Store
	MaxSteps int
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 8
	}
	return &Coordinator{
		guard:    cfg.Guard,
		budgets:  cfg.Budgets,
		gate:     cfg.Gate,
		gateway:  cfg.Gateway,
		runtime:  cfg.Runtime,
		audit:    cfg.Audit,
		maxSteps: cfg.MaxSteps,
	}
}

// Assess runs one request end to end and always returns a terminal Outcome
// unless the caller is over the concurrency cap, in which case it returns
// ErrTooManyRequests and consumes nothing.
func (c *Coordinator) Assess(ctx context.Context, req Request) (*Outcome, error) {
	if err := c.gate.Acquire(req.Identity); err != nil {
		return nil, err
	}
	defer c.gate.Release(req.Identity)

	runID := uuid.NewString()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, "run.assess",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("session_id", sessionID),
		))
	defer span.End()

	started := time.Now()
	out := c.execute(ctx, runID, sessionID, req)
	span.SetAttributes(attribute.String("state", string(out.State)))

	log.Info().
		Str("run_id", runID).
		Str("session_id", sessionID).
		Str("state", string(out.State)).
		Dur("duration", time.Since(started)).
		Func(aivetotel.LogTraceFields(ctx)).
		Msg("run_finished")

	c.recordRun(ctx, runID, sessionID, req, out, time.Since(started))
	return out, nil
}

func (c *Coordinator) execute(ctx context.Context, runID, sessionID string, req Request) *Outcome {
	out := &Outcome{RunID: runID, SessionID: sessionID, State: StateCreated}

	// Input guardrail. Reject before any model or network call; only the
	// reason code leaks, never which pattern or term matched.
	verdict := c.guard.CheckInput(req.AITool)
	c.recordVerdict(ctx, runID, verdict)
	if !verdict.Allowed() {
		out.State = StateRejected
		out.Rejection = &Rejection{
			Stage:   verdict.Stage,
			Reason:  verdict.Reason,
			Message: "The request was rejected by input validation.",
		}
		return out
	}
	toolName := verdict.Value(req.AITool)
	out.State = StateInputValidated

	conv := c.runtime.NewConversation(llm.SystemPrompt(), llm.UserPrompt(toolName))

	out.State = StateResearching
	var collected []search.Result
	var results []llm.ToolResult

	for step := 0; step < c.maxSteps; step++ {
		if err := c.budgets.CheckDeadline(sessionID); err != nil {
			return c.fail(out, FailReasonDeadline, collected)
		}

		stepOut, err := conv.Step(ctx, results)
		if err != nil {
			log.Error().Err(err).Str("run_id", runID).Msg("agent_step_failed")
			return c.fail(out, FailReasonRuntime, collected)
		}

		if err := c.budgets.AddTokens(sessionID, stepOut.TokensUsed); err != nil {
			return c.fail(out, FailReasonTokenBudget, collected)
		}

		if len(stepOut.ToolCalls) == 0 {
			return c.finish(ctx, out, runID, stepOut.FinalText, collected)
		}

		results = make([]llm.ToolResult, 0, len(stepOut.ToolCalls))
		for _, call := range stepOut.ToolCalls {
			content, found, fatal := c.mediate(ctx, runID, sessionID, toolName, call)
			if fatal != "" {
				return c.fail(out, fatal, collected)
			}
			collected = append(collected, found...)
			results = append(results, llm.ToolResult{ID: call.ID, Content: content})
		}
	}

	return c.fail(out, FailReasonNoFinalReport, collected)
}

// mediate executes one tool call through the gateway. Guardrail and budget
// refusals are non-fatal: the agent receives a structured refusal and the
// run continues. Backend unavailability is fatal.
func (c *Coordinator) mediate(ctx context.Context, runID, sessionID, toolName string, call llm.ToolCall) (content string, found []search.Result, fatal string) {
	results, err := c.gateway.Search(ctx, search.Query{
		Text:      call.Query,
		SessionID: sessionID,
		ToolName:  toolName,
	})
	if err != nil {
		var refusal *search.RefusalError
		switch {
		case errors.Is(err, session.ErrDeadlineExceeded):
			return "", nil, FailReasonDeadline
		case errors.As(err, &refusal):
			stage := guard.StageTool
			if errors.Is(err, search.ErrRateLimited) {
				stage = guard.StageBudget
			}
			c.recordVerdict(ctx, runID, guard.Verdict{Stage: stage, Outcome: guard.OutcomeReject, Reason: refusal.Reason})
			return refusalJSON(refusal.Reason), nil, ""
		default:
			log.Error().Err(err).Str("run_id", runID).Msg("search_backend_failed")
			return "", nil, FailReasonSearchUnavailable
		}
	}

	buf, err := json.Marshal(results)
	if err != nil {
		return "", nil, FailReasonRuntime
	}
	return string(buf), results, ""
}

// finish validates and parses the agent's final report.
func (c *Coordinator) finish(ctx context.Context, out *Outcome, runID, finalText string, collected []search.Result) *Outcome {
	out.State = StateOutputValidating

	verdict := c.guard.CheckOutput(finalText)
	c.recordVerdict(ctx, runID, verdict)
	if !verdict.Allowed() {
		out.State = StateRejected
		out.Rejection = &Rejection{
			Stage:   verdict.Stage,
			Reason:  verdict.Reason,
			Message: SafeFailureMessage,
		}
		return out
	}

	report := verdict.Value(finalText)
	verdictText, risk, findings := parseReport(report)

	out.State = StateCompleted
	out.Result = &Result{
		VerdictText:        verdictText,
		RiskClassification: risk,
		Findings:           findings,
		Report:             report,
		Citations:          buildCitations(collected),
	}
	return out
}

func (c *Coordinator) fail(out *Outcome, reason string, collected []search.Result) *Outcome {
	out.State = StateFailed
	out.Failure = &Failure{
		Reason:    reason,
		Citations: buildCitations(collected),
	}
	return out
}

func (c *Coordinator) recordVerdict(ctx context.Context, runID string, v guard.Verdict) {
	if c.audit == nil {
		return
	}
	if err := c.audit.RecordVerdict(ctx, runID, v); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("audit_verdict_write_failed")
	}
}

func (c *Coordinator) recordRun(ctx context.Context, runID, sessionID string, req Request, out *Outcome, elapsed time.Duration) {
	if c.audit == nil {
		return
	}
	b := c.budgets.Snapshot(sessionID)
	rec := &audit.RunRecord{
		ID:           runID,
		SessionID:    sessionID,
		Identity:     req.Identity,
		AITool:       req.AITool,
		State:        string(out.State),
		SearchesUsed: b.SearchesUsed,
		TokensUsed:   b.TokensUsed,
		DurationMS:   elapsed.Milliseconds(),
	}
	switch {
	case out.Rejection != nil:
		rec.Reason = out.Rejection.Reason
	case out.Failure != nil:
		rec.Reason = out.Failure.Reason
	}
	if err := c.audit.RecordRun(ctx, rec); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("audit_run_write_failed")
	}
}

func refusalJSON(reason string) string {
	buf, _ := json.Marshal(toolRefusal{Blocked: true, Reason: reason})
	return string(buf)
}
