package tools_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chebacca/agentcore/internal/service"
	"github.com/chebacca/agentcore/internal/tools"
)

type fakeStore struct {
	org      string
	created  []string
	assigned []service.TeamMember
}

func (f *fakeStore) TestConnection(context.Context) error { return nil }

func (f *fakeStore) ListProjects(_ context.Context, org, status string) ([]service.Project, error) {
	f.org = org
	return []service.Project{{ID: "p1", OrganizationID: org, Name: "Pilot", Status: "active"}}, nil
}

func (f *fakeStore) GetProjectDetails(_ context.Context, org, id string) (*service.ProjectDetails, error) {
	f.org = org
	return &service.ProjectDetails{Project: service.Project{ID: id, OrganizationID: org}}, nil
}

func (f *fakeStore) CreateProject(_ context.Context, org, name string) (*service.Project, error) {
	f.org = org
	f.created = append(f.created, name)
	return &service.Project{ID: "new", OrganizationID: org, Name: name, Status: "active"}, nil
}

func (f *fakeStore) AssignTeamMember(_ context.Context, org string, m service.TeamMember) error {
	f.org = org
	f.assigned = append(f.assigned, m)
	return nil
}

func (f *fakeStore) CreateCallSheet(_ context.Context, org string, cs service.CallSheet) (*service.CallSheet, error) {
	f.org = org
	cs.ID = "cs1"
	return &cs, nil
}

func findTool(t *testing.T, list []tools.Tool, name string) tools.Tool {
	t.Helper()
	for _, tl := range list {
		if tl.Name == name {
			return tl
		}
	}
	t.Fatalf("tool %s not found", name)
	return tools.Tool{}
}

func TestProjectTools_Capabilities(t *testing.T) {
	list := tools.ProjectTools(&fakeStore{})
	for _, tl := range list {
		switch tl.Name {
		case "list_projects", "get_project_details":
			assert.True(t, tl.HasCapability(tools.CapabilityRead), tl.Name)
		default:
			assert.True(t, tl.HasCapability(tools.CapabilityWrite), tl.Name)
		}
	}
}

func TestProjectTools_RequireOrganizationScope(t *testing.T) {
	list := tools.ProjectTools(&fakeStore{})
	_, err := findTool(t, list, "list_projects").Execute(context.Background(), nil)
	assert.ErrorIs(t, err, tools.ErrMissingScope)
}

func TestProjectTools_UseScope(t *testing.T) {
	store := &fakeStore{}
	list := tools.ProjectTools(store)
	ctx := tools.WithScope(context.Background(), tools.Scope{OrganizationID: "org-1", ProjectID: "proj-9"})

	out, err := findTool(t, list, "create_project").Execute(ctx, map[string]interface{}{"name": "Feature Film"})
	require.NoError(t, err)
	assert.Equal(t, "org-1", store.org)
	assert.Equal(t, []string{"Feature Film"}, store.created)

	var p service.Project
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "Feature Film", p.Name)

	// project_id falls back to the caller's project
	_, err = findTool(t, list, "assign_team_member").Execute(ctx, map[string]interface{}{"user_id": "u1", "role": "director"})
	require.NoError(t, err)
	require.Len(t, store.assigned, 1)
	assert.Equal(t, "proj-9", store.assigned[0].ProjectID)
}

func TestProjectTools_CreateProjectRequiresName(t *testing.T) {
	list := tools.ProjectTools(&fakeStore{})
	ctx := tools.WithScope(context.Background(), tools.Scope{OrganizationID: "org-1"})
	_, err := findTool(t, list, "create_project").Execute(ctx, map[string]interface{}{})
	assert.Error(t, err)
}
