package tools

import (
	"context"
	"fmt"

	"github.com/chebacca/agentcore/internal/security"
	"github.com/chebacca/agentcore/internal/service"
)

const (
	defaultAnalyticsRows = 100
	maxAnalyticsRows     = 1000
)

// AnalyticsSource exposes the read-only BigQuery tools. Discovery lists the
// dataset's tables so an unreachable warehouse contributes nothing.
type AnalyticsSource struct {
	svc       *service.AnalyticsService
	validator *security.SQLValidator
	masker    *security.DataMasker
}

func NewAnalyticsSource(svc *service.AnalyticsService, masker *security.DataMasker) *AnalyticsSource {
	return &AnalyticsSource{svc: svc, validator: security.NewSQLValidator(), masker: masker}
}

func (s *AnalyticsSource) Name() string { return "bigquery" }

func (s *AnalyticsSource) Tools(ctx context.Context) ([]Tool, error) {
	if _, err := s.svc.ListTables(ctx); err != nil {
		return nil, fmt.Errorf("analytics backend: %w", err)
	}
	return []Tool{
		ListAnalyticsTablesTool(s.svc),
		QueryAnalyticsTool(s.svc, s.validator, s.masker),
	}, nil
}

// ListAnalyticsTablesTool lists the tables of the analytics dataset.
func ListAnalyticsTablesTool(svc *service.AnalyticsService) Tool {
	return Tool{
		Name:         "list_analytics_tables",
		Description:  fmt.Sprintf("List the tables in the analytics dataset %q with their row counts.", svc.Dataset()),
		InputSchema:  ObjectSchema(nil),
		Capabilities: []Capability{CapabilityRead},
		Execute: func(ctx context.Context, _ map[string]interface{}) (string, error) {
			tables, err := svc.ListTables(ctx)
			if err != nil {
				return "", err
			}
			return jsonResult(tables)
		},
	}
}

// QueryAnalyticsTool runs a validated SELECT against the analytics dataset
// and masks sensitive columns in the returned rows.
func QueryAnalyticsTool(svc *service.AnalyticsService, validator *security.SQLValidator, masker *security.DataMasker) Tool {
	return Tool{
		Name:        "query_analytics",
		Description: "Run a read-only SQL SELECT against the analytics dataset. Only SELECT and WITH queries are accepted.",
		InputSchema: ObjectSchema(map[string]interface{}{
			"sql": map[string]interface{}{
				"type":        "string",
				"description": "BigQuery standard SQL SELECT statement",
			},
			"max_rows": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum rows to return (default 100, max 1000)",
			},
		}, "sql"),
		Capabilities: []Capability{CapabilityRead},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			sql := stringArg(input, "sql")
			if err := validator.Validate(sql); err != nil {
				return "", err
			}
			maxRows := defaultAnalyticsRows
			if v, ok := input["max_rows"].(float64); ok && v > 0 {
				maxRows = min(int(v), maxAnalyticsRows)
			}

			res, err := svc.Query(ctx, sql, maxRows)
			if err != nil {
				return "", err
			}
			if masker != nil {
				res.Rows = masker.MaskRows(res.Rows)
			}
			return jsonResult(res)
		},
	}
}
