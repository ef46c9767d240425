package cmd

import (
	"fmt"

	"github.com/aivet-io/aivet/internal/audit"
	"github.com/aivet-io/aivet/internal/config"
	"github.com/aivet-io/aivet/internal/guard"
	"github.com/aivet-io/aivet/internal/llm"
	"github.com/aivet-io/aivet/internal/run"
	"github.com/aivet-io/aivet/internal/search"
	"github.com/aivet-io/aivet/internal/session"
)

// pipeline bundles the wired assessment stack shared by serve and assess.
type pipeline struct {
	cfg         *config.Config
	coordinator *run.Coordinator
	budgets     *session.Store
	audit       *audit.Store // nil when disabled
}

func (p *pipeline) close() {
	if p.audit != nil {
		_ = p.audit.Close()
	}
}

// buildPipeline wires guard, budgets, gateway, runtime, audit, and the run
// coordinator from loaded configuration.
func buildPipeline() (*pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	rules, err := guard.LoadRules(cfg.PatternsFile)
	if err != nil {
		return nil, fmt.Errorf("loading guardrail patterns: %w", err)
	}
	g := guard.New(rules, cfg.MaxInputChars, cfg.MaxQueryChars)

	budgets := session.NewStore(session.Limits{
		SearchLimit: cfg.SearchLimit,
		TokenLimit:  cfg.TokenLimit,
		RunTimeout:  cfg.RunTimeout,
	}, cfg.SessionTTL)

	provider, err := search.NewProvider(search.ProviderConfig{
		Provider:     cfg.SearchProvider,
		SerperAPIKey: cfg.SerperAPIKey,
		SerpAPIKey:   cfg.SerpAPIKey,
	})
	if err != nil {
		return nil, err
	}

	domains, err := search.LoadPrimaryDomains(cfg.PrimaryDomains)
	if err != nil {
		return nil, fmt.Errorf("loading primary domain allowlist: %w", err)
	}

	gateway := search.NewGateway(search.GatewayConfig{
		Provider:   provider,
		Budgets:    budgets,
		Guard:      g,
		Classifier: search.NewClassifier(domains),
		SessionQPS: cfg.SearchQPS,
		MaxResults: cfg.MaxSearchResults,
	})

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("AIVET_OPENAI_API_KEY is required")
	}
	var runtime llm.Runtime
	if cfg.OpenAIBaseURL != "" {
		runtime = llm.NewOpenAIRuntimeWithBaseURL(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model)
	} else {
		runtime = llm.NewOpenAIRuntime(cfg.OpenAIAPIKey, cfg.Model)
	}

	var auditStore *audit.Store
	if !cfg.AuditDisabled {
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		auditStore, err = audit.NewStore(cfg.AuditDBPath())
		if err != nil {
			return nil, fmt.Errorf("opening audit store: %w", err)
		}
	}

	coordinator := run.NewCoordinator(run.CoordinatorConfig{
		Guard:    g,
		Budgets:  budgets,
		Gate:     session.NewGate(cfg.MaxConcurrent),
		Gateway:  gateway,
		Runtime:  runtime,
		Audit:    auditStore,
		MaxSteps: cfg.MaxAgentSteps,
	})

	return &pipeline{
		cfg:         cfg,
		coordinator: coordinator,
		budgets:     budgets,
		audit:       auditStore,
	}, nil
}
