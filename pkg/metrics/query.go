package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// RunSummary aggregates workflow activity scraped by a Prometheus server.
type RunSummary struct {
	RunsByStatus      map[string]int64 `json:"runs_by_status"`
	RunsByPriority    map[string]int64 `json:"runs_by_priority"`
	PromptTokens      int64            `json:"prompt_tokens"`
	CompletionTokens  int64            `json:"completion_tokens"`
	FailedNotifyCount int64            `json:"failed_notifications"`
}

// Critical returns the number of P0 classifications.
func (s *RunSummary) Critical() int64 { return s.RunsByPriority["P0"] }

// High returns the number of P1 classifications.
func (s *RunSummary) High() int64 { return s.RunsByPriority["P1"] }

// QueryService provides methods to query metrics from Prometheus.
type QueryService struct {
	queryAPI v1.API
	now      func() time.Time
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		queryAPI: v1.NewAPI(client),
		now:      time.Now,
	}, nil
}

// Summary retrieves run totals grouped by status and priority, plus token usage.
func (q *QueryService) Summary(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{}

	var err error
	if summary.RunsByStatus, err = q.groupedSum(ctx, `sum by (status) (workflow_runs_total)`, "status"); err != nil {
		return nil, err
	}
	if summary.RunsByPriority, err = q.groupedSum(ctx, `sum by (priority) (workflow_classifications_total)`, "priority"); err != nil {
		return nil, err
	}

	tokens, err := q.groupedSum(ctx, `sum by (type) (llm_tokens_total)`, "type")
	if err != nil {
		return nil, err
	}
	summary.PromptTokens = tokens["prompt"]
	summary.CompletionTokens = tokens["completion"]

	failed, err := q.groupedSum(ctx, `sum by (result) (workflow_notifications_total{result="failure"})`, "result")
	if err != nil {
		return nil, err
	}
	summary.FailedNotifyCount = failed[ResultFailure]

	return summary, nil
}

// groupedSum runs an instant query and keys the vector by one label.
func (q *QueryService) groupedSum(ctx context.Context, query, label string) (map[string]int64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, q.now())
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", query, err)
	}

	out := make(map[string]int64)
	if vector, ok := result.(model.Vector); ok {
		for _, sample := range vector {
			key := string(sample.Metric[model.LabelName(label)])
			out[key] += int64(sample.Value)
		}
	}
	return out, nil
}
