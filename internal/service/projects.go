package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrProjectNotFound is returned when a project does not exist in the caller's organization.
var ErrProjectNotFound = errors.New("project not found")

// Project is a row of the projects table.
type Project struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// TeamMember is a project assignment.
type TeamMember struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
}

// CallSheet is a scheduled call sheet for a project.
type CallSheet struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	CallDate  string `json:"call_date"`
}

// ProjectDetails bundles a project with its team and call sheets.
type ProjectDetails struct {
	Project    Project      `json:"project"`
	Team       []TeamMember `json:"team"`
	CallSheets []CallSheet  `json:"call_sheets"`
}

// ProjectStore reads and writes organization projects in Postgres.
type ProjectStore struct {
	pool *pgxpool.Pool
}

// NewProjectStore connects a pgx pool to dsn.
func NewProjectStore(ctx context.Context, dsn string) (*ProjectStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	return &ProjectStore{pool: pool}, nil
}

// Close releases the pool
func (s *ProjectStore) Close() {
	s.pool.Close()
}

// TestConnection pings the database
func (s *ProjectStore) TestConnection(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ListProjects returns the organization's projects, optionally filtered by status.
func (s *ProjectStore) ListProjects(ctx context.Context, orgID, status string) ([]Project, error) {
	const q = `SELECT id, organization_id, name, status, created_at
		FROM projects
		WHERE organization_id = $1 AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT 200`

	rows, err := s.pool.Query(ctx, q, orgID, status)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	projects, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Project])
	if err != nil {
		return nil, fmt.Errorf("scan projects: %w", err)
	}
	return projects, nil
}

// GetProjectDetails returns one project with its team and call sheets.
func (s *ProjectStore) GetProjectDetails(ctx context.Context, orgID, projectID string) (*ProjectDetails, error) {
	var d ProjectDetails
	err := s.pool.QueryRow(ctx,
		`SELECT id, organization_id, name, status, created_at FROM projects WHERE organization_id = $1 AND id = $2`,
		orgID, projectID,
	).Scan(&d.Project.ID, &d.Project.OrganizationID, &d.Project.Name, &d.Project.Status, &d.Project.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT project_id, user_id, role FROM project_members WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if d.Team, err = pgx.CollectRows(rows, pgx.RowToStructByPos[TeamMember]); err != nil {
		return nil, fmt.Errorf("scan members: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT id, project_id, title, to_char(call_date, 'YYYY-MM-DD') FROM call_sheets WHERE project_id = $1 ORDER BY call_date`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list call sheets: %w", err)
	}
	if d.CallSheets, err = pgx.CollectRows(rows, pgx.RowToStructByPos[CallSheet]); err != nil {
		return nil, fmt.Errorf("scan call sheets: %w", err)
	}
	return &d, nil
}

// CreateProject inserts a new active project.
func (s *ProjectStore) CreateProject(ctx context.Context, orgID, name string) (*Project, error) {
	p := Project{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Name:           name,
		Status:         "active",
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO projects (id, organization_id, name, status) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		p.ID, p.OrganizationID, p.Name, p.Status,
	).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &p, nil
}

// AssignTeamMember adds or updates a member's role on a project.
func (s *ProjectStore) AssignTeamMember(ctx context.Context, orgID string, m TeamMember) error {
	if err := s.ensureProject(ctx, orgID, m.ProjectID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO project_members (project_id, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		m.ProjectID, m.UserID, m.Role)
	if err != nil {
		return fmt.Errorf("assign member: %w", err)
	}
	return nil
}

// CreateCallSheet schedules a call sheet on a project.
func (s *ProjectStore) CreateCallSheet(ctx context.Context, orgID string, cs CallSheet) (*CallSheet, error) {
	if err := s.ensureProject(ctx, orgID, cs.ProjectID); err != nil {
		return nil, err
	}
	cs.ID = uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO call_sheets (id, project_id, title, call_date) VALUES ($1, $2, $3, $4::date)`,
		cs.ID, cs.ProjectID, cs.Title, cs.CallDate)
	if err != nil {
		return nil, fmt.Errorf("create call sheet: %w", err)
	}
	return &cs, nil
}

func (s *ProjectStore) ensureProject(ctx context.Context, orgID, projectID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE organization_id = $1 AND id = $2)`,
		orgID, projectID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check project: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	return nil
}
