package tools

import (
	"context"
	"fmt"

	"github.com/chebacca/agentcore/internal/security"
	"github.com/chebacca/agentcore/internal/service"
)

const maxSearchSize = 100

// SearchSource exposes document search tools once the cluster answers a ping.
type SearchSource struct {
	svc    *service.SearchService
	masker *security.DataMasker
}

func NewSearchSource(svc *service.SearchService, masker *security.DataMasker) *SearchSource {
	return &SearchSource{svc: svc, masker: masker}
}

func (s *SearchSource) Name() string { return "elasticsearch" }

func (s *SearchSource) Tools(ctx context.Context) ([]Tool, error) {
	if err := s.svc.TestConnection(ctx); err != nil {
		return nil, fmt.Errorf("search backend: %w", err)
	}
	return []Tool{ListSearchIndicesTool(s.svc), SearchDocumentsTool(s.svc, s.masker)}, nil
}

// ListSearchIndicesTool lists the indices the search tools may read.
func ListSearchIndicesTool(svc *service.SearchService) Tool {
	return Tool{
		Name:         "list_search_indices",
		Description:  "List the document indices available for search. Use this before search_documents to pick an index.",
		InputSchema:  ObjectSchema(nil),
		Capabilities: []Capability{CapabilityRead},
		Execute: func(ctx context.Context, _ map[string]interface{}) (string, error) {
			indices, err := svc.ListIndices(ctx)
			if err != nil {
				return "", fmt.Errorf("list indices: %w", err)
			}
			return jsonResult(indices)
		},
	}
}

// SearchDocumentsTool runs a Query DSL search and masks sensitive fields of the hits.
func SearchDocumentsTool(svc *service.SearchService, masker *security.DataMasker) Tool {
	return Tool{
		Name:        "search_documents",
		Description: "Search documents (notes, scripts, call sheets, messages) using Elasticsearch Query DSL. Returns matching documents.",
		InputSchema: ObjectSchema(map[string]interface{}{
			"index": map[string]interface{}{
				"type":        "string",
				"description": "Index or index pattern to search",
			},
			"query": map[string]interface{}{
				"type":        "object",
				"description": "Elasticsearch Query DSL object",
			},
			"size": map[string]interface{}{
				"type":        "integer",
				"description": "Number of results to return (default 10, max 100)",
			},
		}, "index"),
		Capabilities: []Capability{CapabilityRead},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			index, _ := input["index"].(string)
			if index == "" {
				return "", fmt.Errorf("index is required")
			}
			size := 10
			if v, ok := input["size"].(float64); ok && v > 0 {
				size = min(int(v), maxSearchSize)
			}
			q := service.SearchQuery{Index: index, Size: size}
			if dsl, ok := input["query"].(map[string]interface{}); ok {
				q.Query = dsl
			}

			res, err := svc.Search(ctx, q)
			if err != nil {
				return "", fmt.Errorf("search: %w", err)
			}
			if masker != nil {
				res.Hits = masker.MaskRows(res.Hits)
			}
			return jsonResult(res)
		},
	}
}
