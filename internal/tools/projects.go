package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/chebacca/agentcore/internal/service"
)

// ErrMissingScope is returned by organization-scoped tools called without an organization.
var ErrMissingScope = errors.New("organization scope is required")

// ProjectStore is the subset of the project database used by the project tools.
type ProjectStore interface {
	TestConnection(ctx context.Context) error
	ListProjects(ctx context.Context, orgID, status string) ([]service.Project, error)
	GetProjectDetails(ctx context.Context, orgID, projectID string) (*service.ProjectDetails, error)
	CreateProject(ctx context.Context, orgID, name string) (*service.Project, error)
	AssignTeamMember(ctx context.Context, orgID string, m service.TeamMember) error
	CreateCallSheet(ctx context.Context, orgID string, cs service.CallSheet) (*service.CallSheet, error)
}

// ProjectSource exposes the project read and write tools.
type ProjectSource struct {
	store ProjectStore
}

func NewProjectSource(store ProjectStore) *ProjectSource {
	return &ProjectSource{store: store}
}

func (s *ProjectSource) Name() string { return "projects" }

func (s *ProjectSource) Tools(ctx context.Context) ([]Tool, error) {
	if err := s.store.TestConnection(ctx); err != nil {
		return nil, fmt.Errorf("project store: %w", err)
	}
	return ProjectTools(s.store), nil
}

// ProjectTools returns the project tools bound to store.
func ProjectTools(store ProjectStore) []Tool {
	return []Tool{
		{
			Name:        "list_projects",
			Description: "List the organization's projects, optionally filtered by status.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"status": map[string]interface{}{"type": "string", "description": "Filter by status, e.g. active or archived"},
			}),
			Capabilities: []Capability{CapabilityRead},
			Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
				org, err := requireOrg(ctx)
				if err != nil {
					return "", err
				}
				projects, err := store.ListProjects(ctx, org, stringArg(input, "status"))
				if err != nil {
					return "", err
				}
				return jsonResult(projects)
			},
		},
		{
			Name:        "get_project_details",
			Description: "Get one project with its team members and call sheets.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"project_id": map[string]interface{}{"type": "string", "description": "Project ID; defaults to the current project"},
			}),
			Capabilities: []Capability{CapabilityRead},
			Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
				org, err := requireOrg(ctx)
				if err != nil {
					return "", err
				}
				projectID := projectArg(ctx, input)
				if projectID == "" {
					return "", fmt.Errorf("project_id is required")
				}
				d, err := store.GetProjectDetails(ctx, org, projectID)
				if err != nil {
					return "", err
				}
				return jsonResult(d)
			},
		},
		{
			Name:        "create_project",
			Description: "Create a new project in the organization.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"name": map[string]interface{}{"type": "string", "description": "Project name"},
			}, "name"),
			Capabilities: []Capability{CapabilityWrite},
			Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
				org, err := requireOrg(ctx)
				if err != nil {
					return "", err
				}
				name := stringArg(input, "name")
				if name == "" {
					return "", fmt.Errorf("name is required")
				}
				p, err := store.CreateProject(ctx, org, name)
				if err != nil {
					return "", err
				}
				return jsonResult(p)
			},
		},
		{
			Name:        "assign_team_member",
			Description: "Assign a user to a project with a role.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"project_id": map[string]interface{}{"type": "string"},
				"user_id":    map[string]interface{}{"type": "string"},
				"role":       map[string]interface{}{"type": "string"},
			}, "user_id", "role"),
			Capabilities: []Capability{CapabilityWrite},
			Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
				org, err := requireOrg(ctx)
				if err != nil {
					return "", err
				}
				m := service.TeamMember{
					ProjectID: projectArg(ctx, input),
					UserID:    stringArg(input, "user_id"),
					Role:      stringArg(input, "role"),
				}
				if m.ProjectID == "" || m.UserID == "" {
					return "", fmt.Errorf("project_id and user_id are required")
				}
				if err := store.AssignTeamMember(ctx, org, m); err != nil {
					return "", err
				}
				return jsonResult(m)
			},
		},
		{
			Name:        "create_call_sheet",
			Description: "Create a call sheet for a project on a given date (YYYY-MM-DD).",
			InputSchema: ObjectSchema(map[string]interface{}{
				"project_id": map[string]interface{}{"type": "string"},
				"title":      map[string]interface{}{"type": "string"},
				"call_date":  map[string]interface{}{"type": "string", "description": "YYYY-MM-DD"},
			}, "title", "call_date"),
			Capabilities: []Capability{CapabilityWrite},
			Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
				org, err := requireOrg(ctx)
				if err != nil {
					return "", err
				}
				cs := service.CallSheet{
					ProjectID: projectArg(ctx, input),
					Title:     stringArg(input, "title"),
					CallDate:  stringArg(input, "call_date"),
				}
				if cs.ProjectID == "" {
					return "", fmt.Errorf("project_id is required")
				}
				created, err := store.CreateCallSheet(ctx, org, cs)
				if err != nil {
					return "", err
				}
				return jsonResult(created)
			},
		},
	}
}

func requireOrg(ctx context.Context) (string, error) {
	s := ScopeFrom(ctx)
	if s.OrganizationID == "" {
		return "", ErrMissingScope
	}
	return s.OrganizationID, nil
}

// projectArg prefers an explicit project_id and falls back to the caller's project.
func projectArg(ctx context.Context, input map[string]interface{}) string {
	if id := stringArg(input, "project_id"); id != "" {
		return id
	}
	return ScopeFrom(ctx).ProjectID
}
