package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chebacca/agentcore/internal/planner"
	"github.com/chebacca/agentcore/internal/provider"
)

// State is a step of the routing state machine.
type State string

const (
	StateReceived          State = "RECEIVED"
	StateClassified        State = "CLASSIFIED"
	StateDispatched        State = "DISPATCHED"
	StatePrimaryOK         State = "PRIMARY_OK"
	StatePrimaryFailed     State = "PRIMARY_FAILED"
	StateFallbackAttempted State = "FALLBACK_ATTEMPTED"
	StateResponded         State = "RESPONDED"
	StateFailed            State = "FAILED"
)

var (
	// ErrEmptyMessage is returned for a request without text.
	ErrEmptyMessage = errors.New("message is required")
	// ErrUnknownAgent is returned when an explicit agent ID is not registered.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrNoTiers is returned by NewRouter without provider tiers.
	ErrNoTiers = errors.New("at least one provider tier is required")
)

// RoutingErrorKind distinguishes terminal routing failures.
type RoutingErrorKind string

const (
	// NoProviderAvailable: every consulted tier failed.
	NoProviderAvailable RoutingErrorKind = "no_provider_available"
	// ProviderRejected: a provider answered but reported failure.
	ProviderRejected RoutingErrorKind = "provider_rejected"
)

// RoutingError is the terminal failure of a routed request.
type RoutingError struct {
	Kind     RoutingErrorKind
	Agent    string
	Message  string
	Attempts []Attempt
}

func (e *RoutingError) Error() string {
	switch e.Kind {
	case ProviderRejected:
		last := e.Attempts[len(e.Attempts)-1]
		return fmt.Sprintf("provider %s rejected the request: %s", last.Provider, e.Message)
	default:
		var errs []string
		for _, a := range e.Attempts {
			errs = append(errs, fmt.Sprintf("%s(%s): %s", a.Tier, a.Provider, a.Error))
		}
		return fmt.Sprintf("no provider available for agent %s: %s", e.Agent, strings.Join(errs, "; "))
	}
}

// Attempt records one provider tier consulted for a request.
type Attempt struct {
	Tier       string `json:"tier"`
	Provider   string `json:"provider"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// Routing is the observability metadata of a routed request.
type Routing struct {
	Agent        string    `json:"agent"`
	ProviderTier string    `json:"providerTier"`
	Provider     string    `json:"provider"`
	Score        int       `json:"score"`
	Reason       string    `json:"reason"`
	Fallbacks    int       `json:"fallbacks"`
	Attempts     []Attempt `json:"attempts"`
}

// Outcome is the routed response.
type Outcome struct {
	AgentID   string             `json:"agentId"`
	Answer    string             `json:"answer"`
	ToolsUsed []string           `json:"toolsUsed"`
	Data      *provider.Response `json:"data,omitempty"`
	Plan      *planner.Plan      `json:"plan,omitempty"`
	Routing   Routing            `json:"routing"`
}

// RouterConfig bounds provider fallback.
type RouterConfig struct {
	// MaxFallbacks is how many tiers after the first may be consulted.
	// 0 disables fallback; negative means every configured tier.
	MaxFallbacks int
	// Budget is the latency budget shared by all attempts of one request. 0 means none.
	Budget time.Duration
	// TierTimeout bounds each individual attempt. 0 means none.
	TierTimeout time.Duration
	// Threshold is the minimum classification score.
	Threshold int
}

// Tier is a provider adapter at a position in the fallback order.
type Tier struct {
	Name    string
	Adapter provider.Adapter
}

// TierName names a fallback position: primary, secondary, then tier-N.
func TierName(i int) string {
	switch i {
	case 0:
		return "primary"
	case 1:
		return "secondary"
	default:
		return fmt.Sprintf("tier-%d", i+1)
	}
}

// Router classifies requests, dispatches them to agents and falls back
// across provider tiers one at a time.
type Router struct {
	cfg        RouterConfig
	tiers      []Tier
	agents     map[string]Agent
	order      []Agent
	classifier *Classifier
	fallback   Agent
}

// NewRouter creates a router. agents are classified in the order given;
// fallback handles requests no agent claims.
func NewRouter(cfg RouterConfig, adapters []provider.Adapter, fallback Agent, agents ...Agent) (*Router, error) {
	if len(adapters) == 0 {
		return nil, ErrNoTiers
	}
	r := &Router{cfg: cfg, agents: make(map[string]Agent), fallback: fallback}
	for i, a := range adapters {
		r.tiers = append(r.tiers, Tier{Name: TierName(i), Adapter: a})
	}

	strategies := make([]Strategy, 0, len(agents))
	for _, a := range agents {
		r.agents[a.ID()] = a
		r.order = append(r.order, a)
		strategies = append(strategies, a)
	}
	r.agents[fallback.ID()] = fallback
	r.order = append(r.order, fallback)
	r.classifier = NewClassifier(cfg.Threshold, fallback.ID(), strategies...)
	return r, nil
}

// Agents returns the registered agents, default last.
func (r *Router) Agents() []Agent { return r.order }

// Tiers returns the provider tiers in fallback order.
func (r *Router) Tiers() []Tier { return r.tiers }

// Classify runs classification only.
func (r *Router) Classify(text string) Classification {
	return r.classifier.Classify(text)
}

// Route classifies req, dispatches it and falls back on provider errors.
// Any other error is returned immediately.
func (r *Router) Route(ctx context.Context, req Request) (*Outcome, error) {
	logger := log.With().Str("session", req.Context.SessionID).Str("org", req.Context.OrganizationID).Logger()
	transition := func(s State) { logger.Debug().Str("state", string(s)).Msg("routing") }

	transition(StateReceived)
	if strings.TrimSpace(req.Message) == "" {
		transition(StateFailed)
		return nil, ErrEmptyMessage
	}

	cls := Classification{AgentID: req.AgentID, Reason: ReasonExplicit}
	if req.AgentID == "" {
		cls = r.classifier.Classify(req.Message)
	}
	ag, ok := r.agents[cls.AgentID]
	if !ok {
		transition(StateFailed)
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, cls.AgentID)
	}
	transition(StateClassified)

	if r.cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Budget)
		defer cancel()
	}

	limit := len(r.tiers)
	if r.cfg.MaxFallbacks >= 0 {
		limit = min(limit, 1+r.cfg.MaxFallbacks)
	}

	var attempts []Attempt
	for i, tier := range r.tiers[:limit] {
		if i == 0 {
			transition(StateDispatched)
		} else {
			if ctx.Err() != nil {
				logger.Warn().Str("tier", tier.Name).Msg("latency budget spent, not falling back")
				break
			}
			transition(StateFallbackAttempted)
		}

		res, err := r.attempt(ctx, ag, req, tier)
		at := Attempt{Tier: tier.Name, Provider: tier.Adapter.Name(), DurationMs: res.durationMs}
		if err != nil {
			at.Error = err.Error()
		}
		attempts = append(attempts, at)

		if err == nil {
			if i == 0 {
				transition(StatePrimaryOK)
			}
			if res.Rejected {
				transition(StateFailed)
				return nil, &RoutingError{Kind: ProviderRejected, Agent: ag.ID(), Message: res.Answer, Attempts: attempts}
			}
			transition(StateResponded)
			logger.Info().
				Str("agent", ag.ID()).
				Str("tier", tier.Name).
				Str("provider", tier.Adapter.Name()).
				Int("fallbacks", i).
				Msg("request routed")
			return &Outcome{
				AgentID:   ag.ID(),
				Answer:    res.Answer,
				ToolsUsed: nonNil(res.ToolsUsed),
				Data:      res.Data,
				Plan:      res.Plan,
				Routing: Routing{
					Agent:        ag.ID(),
					ProviderTier: tier.Name,
					Provider:     tier.Adapter.Name(),
					Score:        cls.Score,
					Reason:       cls.Reason,
					Fallbacks:    i,
					Attempts:     attempts,
				},
			}, nil
		}

		if !provider.IsProviderError(err) {
			transition(StateFailed)
			return nil, err
		}
		if i == 0 {
			transition(StatePrimaryFailed)
		}
		logger.Warn().Err(err).Str("tier", tier.Name).Str("provider", tier.Adapter.Name()).Msg("provider failed")
	}

	transition(StateFailed)
	return nil, &RoutingError{Kind: NoProviderAvailable, Agent: ag.ID(), Attempts: attempts}
}

type attemptResult struct {
	*Result
	durationMs int64
}

func (r *Router) attempt(ctx context.Context, ag Agent, req Request, tier Tier) (attemptResult, error) {
	if r.cfg.TierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.TierTimeout)
		defer cancel()
	}
	start := time.Now()
	res, err := ag.Execute(ctx, req, tier.Adapter)
	return attemptResult{Result: res, durationMs: time.Since(start).Milliseconds()}, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
