package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// SearchConfig configures the document search backend.
type SearchConfig struct {
	Addresses       []string
	Username        string
	Password        string
	VerifyCerts     bool
	MaxRetries      int
	AllowedPatterns []string
}

// SearchService wraps the go-elasticsearch client used for document search tools.
type SearchService struct {
	client          *elasticsearch.Client
	allowedPatterns []string
}

// SearchQuery is a Query DSL search against one index pattern.
type SearchQuery struct {
	Index  string                 `json:"index"`
	Query  map[string]interface{} `json:"query,omitempty"`
	Size   int                    `json:"size"`
	Fields []string               `json:"fields,omitempty"`
}

// SearchResult is the trimmed search response handed back to the model.
type SearchResult struct {
	Index     string                   `json:"index"`
	TookMs    int                      `json:"took_ms"`
	TotalHits int64                    `json:"total_hits"`
	Hits      []map[string]interface{} `json:"hits"`
}

// NewSearchService creates an Elasticsearch-backed search service.
func NewSearchService(cfg SearchConfig) (*SearchService, error) {
	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	if !cfg.VerifyCerts {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 - explicitly disabled in config
			},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	return &SearchService{client: client, allowedPatterns: cfg.AllowedPatterns}, nil
}

// IndexAllowed returns true if the index matches any configured pattern.
// With no patterns configured every index is allowed.
func (s *SearchService) IndexAllowed(index string) bool {
	if len(s.allowedPatterns) == 0 {
		return true
	}
	for _, pattern := range s.allowedPatterns {
		if ok, err := filepath.Match(pattern, index); err == nil && ok {
			return true
		}
		prefix := strings.TrimSuffix(pattern, "*")
		if prefix != pattern && strings.HasPrefix(index, prefix) {
			return true
		}
	}
	return false
}

// TestConnection pings the cluster
func (s *SearchService) TestConnection(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

// ListIndices returns the names of searchable indices.
func (s *SearchService) ListIndices(ctx context.Context) ([]string, error) {
	res, err := s.client.Cat.Indices(
		s.client.Cat.Indices.WithContext(ctx),
		s.client.Cat.Indices.WithFormat("json"),
		s.client.Cat.Indices.WithH("index"),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("list indices error: %s", res.Status())
	}

	var rows []struct {
		Index string `json:"index"`
	}
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode indices: %w", err)
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if s.IndexAllowed(row.Index) {
			names = append(names, row.Index)
		}
	}
	return names, nil
}

// Search executes a Query DSL search, enforcing the allowed index patterns.
func (s *SearchService) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	if !s.IndexAllowed(q.Index) {
		return nil, fmt.Errorf("access to index %q is not permitted", q.Index)
	}

	body := map[string]interface{}{"size": q.Size}
	if q.Query != nil {
		body["query"] = q.Query
	}
	if len(q.Fields) > 0 {
		body["_source"] = q.Fields
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	opts := []func(*esapi.SearchRequest){
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(q.Index),
		s.client.Search.WithBody(bytes.NewReader(payload)),
	}
	res, err := s.client.Search(opts...)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := decodeSearchBody(res.Body, res.IsError(), res.Status())
	if err != nil {
		return nil, err
	}
	return toSearchResult(q.Index, raw), nil
}

func decodeSearchBody(r io.Reader, isError bool, status string) (map[string]interface{}, error) {
	var result map[string]interface{}
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if isError {
		if errObj, ok := result["error"]; ok {
			return nil, fmt.Errorf("elasticsearch error [%s]: %v", status, errObj)
		}
		return nil, fmt.Errorf("elasticsearch error: %s", status)
	}
	return result, nil
}

func toSearchResult(index string, raw map[string]interface{}) *SearchResult {
	out := &SearchResult{Index: index}
	if took, ok := raw["took"].(float64); ok {
		out.TookMs = int(took)
	}
	hits, ok := raw["hits"].(map[string]interface{})
	if !ok {
		return out
	}
	if total, ok := hits["total"].(map[string]interface{}); ok {
		if v, ok := total["value"].(float64); ok {
			out.TotalHits = int64(v)
		}
	}
	if list, ok := hits["hits"].([]interface{}); ok {
		for _, h := range list {
			hm, ok := h.(map[string]interface{})
			if !ok {
				continue
			}
			doc := map[string]interface{}{"id": hm["_id"]}
			if src, ok := hm["_source"].(map[string]interface{}); ok {
				doc["source"] = src
			}
			out.Hits = append(out.Hits, doc)
		}
	}
	return out
}
