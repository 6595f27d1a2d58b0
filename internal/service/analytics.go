package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// AnalyticsService wraps the BigQuery client that backs the read-only analytics tools.
type AnalyticsService struct {
	client    *bigquery.Client
	dataset   string
	maxBytes  int64
	queryWait time.Duration
}

// TableSummary describes one analytics table.
type TableSummary struct {
	ID      string `json:"id"`
	Type    string `json:"type,omitempty"`
	NumRows uint64 `json:"num_rows"`
}

// AnalyticsResult holds the rows of an analytics query.
type AnalyticsResult struct {
	Columns        []string                 `json:"columns"`
	Rows           []map[string]interface{} `json:"rows"`
	BytesProcessed int64                    `json:"bytes_processed"`
	Truncated      bool                     `json:"truncated,omitempty"`
}

// ErrQueryTooExpensive is returned when a dry run exceeds the byte budget.
var ErrQueryTooExpensive = errors.New("analytics query exceeds byte limit")

// NewAnalyticsService creates a BigQuery client scoped to one dataset.
func NewAnalyticsService(ctx context.Context, projectID, credentialsFile, dataset string, maxBytes int64) (*AnalyticsService, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	return &AnalyticsService{
		client:    client,
		dataset:   dataset,
		maxBytes:  maxBytes,
		queryWait: 60 * time.Second,
	}, nil
}

// Close releases the BigQuery client
func (s *AnalyticsService) Close() error {
	return s.client.Close()
}

// TestConnection reads the dataset metadata
func (s *AnalyticsService) TestConnection(ctx context.Context) error {
	if _, err := s.client.Dataset(s.dataset).Metadata(ctx); err != nil {
		return fmt.Errorf("dataset %s: %w", s.dataset, err)
	}
	return nil
}

// Dataset returns the dataset the service is scoped to.
func (s *AnalyticsService) Dataset() string { return s.dataset }

// ListTables returns the tables of the configured dataset.
func (s *AnalyticsService) ListTables(ctx context.Context) ([]TableSummary, error) {
	var tables []TableSummary
	it := s.client.Dataset(s.dataset).Tables(ctx)
	for {
		tbl, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		meta, err := tbl.Metadata(ctx)
		if err != nil {
			log.Warn().Err(err).Str("table", tbl.TableID).Msg("failed to get table metadata")
			tables = append(tables, TableSummary{ID: tbl.TableID})
			continue
		}
		tables = append(tables, TableSummary{ID: tbl.TableID, Type: string(meta.Type), NumRows: meta.NumRows})
	}
	return tables, nil
}

// Query dry-runs sql against the byte budget, then executes it and returns
// at most maxRows rows. Callers validate that sql is a SELECT.
func (s *AnalyticsService) Query(ctx context.Context, sql string, maxRows int) (*AnalyticsResult, error) {
	qCtx, cancel := context.WithTimeout(ctx, s.queryWait)
	defer cancel()

	dry := s.client.Query(sql)
	dry.DryRun = true
	dry.DefaultDatasetID = s.dataset
	dryJob, err := dry.Run(qCtx)
	if err != nil {
		return nil, fmt.Errorf("dry run: %w", err)
	}
	var estimated int64
	if st := dryJob.LastStatus(); st != nil && st.Statistics != nil {
		estimated = st.Statistics.TotalBytesProcessed
	}
	if s.maxBytes > 0 && estimated > s.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrQueryTooExpensive, estimated, s.maxBytes)
	}

	q := s.client.Query(sql)
	q.DefaultDatasetID = s.dataset
	it, err := q.Read(qCtx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	out := &AnalyticsResult{BytesProcessed: estimated}
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if out.Columns == nil && it.Schema != nil {
			for _, f := range it.Schema {
				out.Columns = append(out.Columns, f.Name)
			}
		}
		if len(out.Rows) >= maxRows {
			out.Truncated = true
			break
		}
		m := make(map[string]interface{}, len(row))
		for k, v := range row {
			m[k] = v
		}
		out.Rows = append(out.Rows, m)
	}
	return out, nil
}
