package agent_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chebacca/agentcore/internal/agent"
	"github.com/chebacca/agentcore/internal/planner"
	"github.com/chebacca/agentcore/internal/provider"
	"github.com/chebacca/agentcore/internal/tools"
)

func stub(name string) tools.Tool {
	return tools.Tool{
		Name:        name,
		InputSchema: tools.ObjectSchema(nil),
		Execute:     func(context.Context, map[string]interface{}) (string, error) { return "[]", nil },
	}
}

func productionRegistry() *tools.Registry {
	return tools.NewRegistry(tools.StaticSource{SourceName: "projects", List: []tools.Tool{
		stub("list_projects"),
		stub("get_project_details"),
		stub("create_project"),
		stub("assign_team_member"),
		stub("create_call_sheet"),
	}})
}

// fakeAdapter returns a fixed response or error and records what it was offered.
type fakeAdapter struct {
	name  string
	resp  *provider.Response
	err   error
	block bool // wait for ctx to end, then fail with a timeout

	mu      sync.Mutex
	calls   int
	allowed [][]string
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) GenerateChatResponse(ctx context.Context, _ []provider.Message, allowed []string, _ provider.Context) (*provider.Response, error) {
	f.mu.Lock()
	f.calls++
	f.allowed = append(f.allowed, allowed)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, &provider.Error{Provider: f.name, Kind: provider.KindTimeout, Err: ctx.Err()}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeAdapter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func failing(name string) *fakeAdapter {
	return &fakeAdapter{name: name, err: &provider.Error{Provider: name, Kind: provider.KindUnreachable, Err: errors.New("connection refused")}}
}

func answering(name, msg string, used ...string) *fakeAdapter {
	resp := &provider.Response{Message: msg, Success: true}
	for _, u := range used {
		resp.ToolResults = append(resp.ToolResults, provider.ToolResult{ToolName: u, Output: "[]"})
	}
	return &fakeAdapter{name: name, resp: resp}
}

func newRouter(t *testing.T, cfg agent.RouterConfig, adapters ...provider.Adapter) *agent.Router {
	t.Helper()
	reg := productionRegistry()
	r, err := agent.NewRouter(cfg, adapters,
		agent.NewGeneralAgent(reg),
		agent.NewQueryAgent(reg),
		agent.NewActionAgent(reg),
	)
	require.NoError(t, err)
	return r
}

func TestIsQueryIntent(t *testing.T) {
	assert.True(t, agent.IsQueryIntent("find my projects"))
	assert.True(t, agent.IsQueryIntent("How many call sheets are there?"))
	assert.True(t, agent.IsQueryIntent("LIST everything"))
	assert.False(t, agent.IsQueryIntent("delete this session"))
	assert.False(t, agent.IsQueryIntent(""))

	assert.True(t, agent.IsActionIntent("delete this session"))
	assert.False(t, agent.IsActionIntent("find my projects"))
}

func TestClassify(t *testing.T) {
	r := newRouter(t, agent.RouterConfig{}, answering("p", "ok"))
	tests := []struct {
		text   string
		agent  string
		reason string
	}{
		{"find my projects", agent.QueryAgentID, agent.ReasonScored},
		{"delete this session", agent.ActionAgentID, agent.ReasonScored},
		{"create a project and assign a director", agent.ActionAgentID, agent.ReasonScored},
		// one keyword each: query has priority
		{"list and create", agent.QueryAgentID, agent.ReasonScored},
		{"hello there", agent.GeneralAgentID, agent.ReasonDefault},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			c := r.Classify(tt.text)
			assert.Equal(t, tt.agent, c.AgentID)
			assert.Equal(t, tt.reason, c.Reason)
		})
	}
}

func TestClassifier_Threshold(t *testing.T) {
	reg := productionRegistry()
	c := agent.NewClassifier(2, agent.GeneralAgentID, agent.NewQueryAgent(reg), agent.NewActionAgent(reg))
	assert.Equal(t, agent.GeneralAgentID, c.Classify("list projects").AgentID)
	assert.Equal(t, agent.QueryAgentID, c.Classify("list projects and show who is on them").AgentID)
}

func TestRoute_QueryEndToEnd(t *testing.T) {
	primary := answering("ollama", "You have 2 active projects.", "list_projects")
	secondary := answering("anthropic", "unused")
	r := newRouter(t, agent.RouterConfig{MaxFallbacks: 1}, primary, secondary)

	out, err := r.Route(context.Background(), agent.Request{
		Message: "list my active projects",
		Context: provider.Context{OrganizationID: "org-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, agent.QueryAgentID, out.AgentID)
	assert.Equal(t, []string{"list_projects"}, out.ToolsUsed)
	assert.Equal(t, "primary", out.Routing.ProviderTier)
	assert.Equal(t, "ollama", out.Routing.Provider)
	assert.Equal(t, 0, out.Routing.Fallbacks)
	assert.Equal(t, 0, secondary.Calls(), "secondary is never consulted when primary succeeds")

	require.Len(t, primary.allowed, 1)
	assert.ElementsMatch(t, []string{"list_projects", "get_project_details"}, primary.allowed[0])
}

func TestRoute_FallsBackOnce(t *testing.T) {
	primary := &fakeAdapter{name: "ollama", err: &provider.Error{Provider: "ollama", Kind: provider.KindTimeout, Err: context.DeadlineExceeded}}
	secondary := answering("anthropic", "You have 2 active projects.", "list_projects")
	r := newRouter(t, agent.RouterConfig{MaxFallbacks: 1}, primary, secondary)

	out, err := r.Route(context.Background(), agent.Request{Message: "list my active projects"})
	require.NoError(t, err)

	assert.Equal(t, "secondary", out.Routing.ProviderTier)
	assert.Equal(t, 1, out.Routing.Fallbacks)
	assert.Equal(t, []string{"list_projects"}, out.ToolsUsed)
	require.Len(t, out.Routing.Attempts, 2)
	assert.NotEmpty(t, out.Routing.Attempts[0].Error)
	assert.Empty(t, out.Routing.Attempts[1].Error)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, secondary.Calls())
}

func TestRoute_BothFail(t *testing.T) {
	primary, secondary := failing("ollama"), failing("anthropic")
	r := newRouter(t, agent.RouterConfig{MaxFallbacks: 1}, primary, secondary)

	_, err := r.Route(context.Background(), agent.Request{Message: "find my projects"})

	var re *agent.RoutingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, agent.NoProviderAvailable, re.Kind)
	assert.Len(t, re.Attempts, 2)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, secondary.Calls())
}

func TestRoute_MaxFallbacksBoundsTiers(t *testing.T) {
	a, b, c := failing("a"), failing("b"), failing("c")

	r := newRouter(t, agent.RouterConfig{MaxFallbacks: 1}, a, b, c)
	_, err := r.Route(context.Background(), agent.Request{Message: "find my projects"})
	require.Error(t, err)
	assert.Equal(t, 0, c.Calls())

	d := answering("d", "found")
	r = newRouter(t, agent.RouterConfig{MaxFallbacks: -1}, failing("a"), failing("b"), d)
	out, err := r.Route(context.Background(), agent.Request{Message: "find my projects"})
	require.NoError(t, err)
	assert.Equal(t, "tier-3", out.Routing.ProviderTier)
	assert.Equal(t, 2, out.Routing.Fallbacks)
}

func TestRoute_NoFallbackWhenDisabled(t *testing.T) {
	secondary := answering("anthropic", "ok")
	r := newRouter(t, agent.RouterConfig{MaxFallbacks: 0}, failing("ollama"), secondary)

	_, err := r.Route(context.Background(), agent.Request{Message: "find my projects"})
	var re *agent.RoutingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 0, secondary.Calls())
}

func TestRoute_SharedBudget(t *testing.T) {
	primary := &fakeAdapter{name: "ollama", block: true}
	secondary := answering("anthropic", "ok")
	r := newRouter(t, agent.RouterConfig{MaxFallbacks: 1, Budget: 50 * time.Millisecond}, primary, secondary)

	start := time.Now()
	_, err := r.Route(context.Background(), agent.Request{Message: "find my projects"})
	assert.Less(t, time.Since(start), time.Second)

	var re *agent.RoutingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, agent.NoProviderAvailable, re.Kind)
	assert.Len(t, re.Attempts, 1)
	assert.Equal(t, 0, secondary.Calls(), "no fallback once the budget is spent")
}

func TestRoute_TierTimeoutLeavesRoomForFallback(t *testing.T) {
	primary := &fakeAdapter{name: "ollama", block: true}
	secondary := answering("anthropic", "ok")
	r := newRouter(t, agent.RouterConfig{MaxFallbacks: 1, Budget: 5 * time.Second, TierTimeout: 30 * time.Millisecond}, primary, secondary)

	out, err := r.Route(context.Background(), agent.Request{Message: "find my projects"})
	require.NoError(t, err)
	assert.Equal(t, "secondary", out.Routing.ProviderTier)
}

func TestRoute_ProviderRejected(t *testing.T) {
	primary := &fakeAdapter{name: "remote", resp: &provider.Response{Message: "quota exceeded", Success: false}}
	secondary := answering("anthropic", "ok")
	r := newRouter(t, agent.RouterConfig{MaxFallbacks: 1}, primary, secondary)

	_, err := r.Route(context.Background(), agent.Request{Message: "find my projects"})
	var re *agent.RoutingError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, agent.ProviderRejected, re.Kind)
	assert.Contains(t, re.Error(), "quota exceeded")
	assert.Equal(t, 0, secondary.Calls())
}

func TestRoute_NonProviderErrorIsNotRetried(t *testing.T) {
	boom := errors.New("boom")
	primary := &fakeAdapter{name: "ollama", err: boom}
	secondary := answering("anthropic", "ok")
	r := newRouter(t, agent.RouterConfig{MaxFallbacks: 1}, primary, secondary)

	_, err := r.Route(context.Background(), agent.Request{Message: "find my projects"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, secondary.Calls())
}

func TestRoute_DefaultAgentCannotMutate(t *testing.T) {
	p := answering("ollama", "I can plan that for you.")
	r := newRouter(t, agent.RouterConfig{}, p)

	out, err := r.Route(context.Background(), agent.Request{Message: "make me a new project called Foo"})
	require.NoError(t, err)
	assert.Equal(t, agent.GeneralAgentID, out.AgentID)
	assert.NotContains(t, p.allowed[0], "create_project")
	assert.NotContains(t, p.allowed[0], "assign_team_member")
}

func TestRoute_ExplicitAgentAndValidation(t *testing.T) {
	p := answering("ollama", "hi")
	r := newRouter(t, agent.RouterConfig{}, p)

	out, err := r.Route(context.Background(), agent.Request{AgentID: agent.GeneralAgentID, Message: "find my projects"})
	require.NoError(t, err)
	assert.Equal(t, agent.GeneralAgentID, out.AgentID)
	assert.Equal(t, agent.ReasonExplicit, out.Routing.Reason)
	assert.ElementsMatch(t, []string{"list_projects", "get_project_details"}, p.allowed[0])

	_, err = r.Route(context.Background(), agent.Request{AgentID: "nope", Message: "x"})
	assert.ErrorIs(t, err, agent.ErrUnknownAgent)

	_, err = r.Route(context.Background(), agent.Request{Message: "  "})
	assert.ErrorIs(t, err, agent.ErrEmptyMessage)

	_, err = agent.NewRouter(agent.RouterConfig{}, nil, agent.NewGeneralAgent(productionRegistry()))
	assert.ErrorIs(t, err, agent.ErrNoTiers)
}

func TestRoute_ActionPlan(t *testing.T) {
	primary := answering("ollama", "```json\n"+`{"actions":[
		{"id":"team","type":"assign_team_member","params":{"project_id":"[FROM_PREVIOUS_ACTION]","user_id":"u1"},"dependsOn":["proj"]},
		{"id":"sheet","type":"create_call_sheet","params":{"project_id":"[FROM_PREVIOUS_ACTION]"},"dependsOn":["proj"]},
		{"id":"proj","type":"create_project","params":{"name":"Pilot"},"dependsOn":[]}
	]}`+"\n```")
	r := newRouter(t, agent.RouterConfig{MaxFallbacks: 1}, primary, answering("anthropic", "unused"))

	out, err := r.Route(context.Background(), agent.Request{Message: "create a project called Pilot and assign u1"})
	require.NoError(t, err)
	assert.Equal(t, agent.ActionAgentID, out.AgentID)
	require.NotNil(t, out.Plan)
	require.Len(t, out.Plan.Actions, 3)
	assert.Equal(t, "proj", out.Plan.Actions[0].Key())

	// mutating tools are plan step types, not tools the provider may run
	assert.ElementsMatch(t, []string{"list_projects", "get_project_details"}, primary.allowed[0])
}

func TestRoute_CyclicPlanSurfacesVerbatim(t *testing.T) {
	primary := answering("ollama", `{"actions":[{"id":"x","type":"create_project","dependsOn":["y"]},{"id":"y","type":"assign_team_member","dependsOn":["x"]}]}`)
	secondary := answering("anthropic", "unused")
	r := newRouter(t, agent.RouterConfig{MaxFallbacks: 1}, primary, secondary)

	out, err := r.Route(context.Background(), agent.Request{Message: "create a project and assign alice"})
	assert.Nil(t, out)
	var ce *planner.CyclicPlanError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, secondary.Calls())
}

func TestRoute_MalformedPlanIsAnError(t *testing.T) {
	primary := answering("ollama", `{"actions":[{"id":"a","type":"create_project","dependsOn":"b"}]}`)
	secondary := answering("anthropic", "unused")
	r := newRouter(t, agent.RouterConfig{MaxFallbacks: 1}, primary, secondary)

	out, err := r.Route(context.Background(), agent.Request{Message: "create a project called Foo"})
	assert.Nil(t, out)
	require.ErrorIs(t, err, planner.ErrMalformedPlan)
	assert.True(t, planner.IsPlanError(err))
	assert.Equal(t, 0, secondary.Calls())
}

func TestRoute_ActionWithoutPlanReturnsProse(t *testing.T) {
	r := newRouter(t, agent.RouterConfig{}, answering("ollama", "Which project should I assign them to?"))
	out, err := r.Route(context.Background(), agent.Request{Message: "assign alice"})
	require.NoError(t, err)
	assert.Nil(t, out.Plan)
	assert.Equal(t, "Which project should I assign them to?", out.Answer)
}

// gatedSource blocks discovery until released.
type gatedSource struct {
	gate  chan struct{}
	calls atomic.Int32
}

func (g *gatedSource) Name() string { return "gated" }

func (g *gatedSource) Tools(context.Context) ([]tools.Tool, error) {
	g.calls.Add(1)
	<-g.gate
	return []tools.Tool{stub("list_projects"), stub("delete_project")}, nil
}

func TestQueryAgent_WaitsForInitialization(t *testing.T) {
	src := &gatedSource{gate: make(chan struct{})}
	reg := tools.NewRegistry(src)
	qa := agent.NewQueryAgent(reg)

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(src.gate)
	}()

	p := answering("ollama", "done", "list_projects")
	res, err := qa.ExecuteQuery(context.Background(), "list projects", provider.Context{}, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"list_projects"}, p.allowed[0], "never served with an empty tool set")
	assert.Equal(t, []string{"list_projects"}, res.ToolsUsed)
	assert.Equal(t, "done", res.Answer)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestQueryAgent_RecomputesOnCatalogChange(t *testing.T) {
	reg := productionRegistry()
	qa := agent.NewQueryAgent(reg)

	first, err := qa.AllowedTools(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, first, "search_documents")

	require.NoError(t, reg.Register(stub("search_documents")))
	second, err := qa.AllowedTools(context.Background())
	require.NoError(t, err)
	assert.Contains(t, second, "search_documents")
}

func TestQueryAgent_ReraisesProviderErrors(t *testing.T) {
	qa := agent.NewQueryAgent(productionRegistry())
	p := failing("ollama")
	_, err := qa.ExecuteQuery(context.Background(), "list projects", provider.Context{}, p)
	assert.True(t, provider.IsProviderError(err))
	assert.Equal(t, 1, p.Calls())
}
