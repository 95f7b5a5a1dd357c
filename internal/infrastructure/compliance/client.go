package compliance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

const (
	policiesCacheKey = "compliance:policies"
	rulesCacheKey    = "compliance:rules"
)

// Config holds compliance API client settings.
type Config struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	CacheTTL time.Duration
	PageSize int
}

// Client reads DLP policies, rules and the audit log over REST.
// Implements port.ComplianceAPI.
type Client struct {
	http   *resty.Client
	cache  port.Cache
	config Config
	logger *logger.Logger
}

type policyJSON struct {
	Name      string   `json:"name"`
	Mode      string   `json:"mode"`
	Enabled   bool     `json:"enabled"`
	Workloads []string `json:"workloads"`
}

type ruleJSON struct {
	Name                   string `json:"name"`
	Policy                 string `json:"policy"`
	Disabled               bool   `json:"disabled"`
	SensitiveInfoTypes     int    `json:"sensitiveInfoTypes"`
	BlockAccess            bool   `json:"blockAccess"`
	NotifyUser             bool   `json:"notifyUser"`
	GenerateIncidentReport bool   `json:"generateIncidentReport"`
}

type auditRecordJSON struct {
	ID           string    `json:"id"`
	Operation    string    `json:"operation"`
	Workload     string    `json:"workload"`
	UserID       string    `json:"userId"`
	PolicyName   string    `json:"policyName"`
	CreationTime time.Time `json:"creationTime"`
}

type listResponse[T any] struct {
	Value      []T    `json:"value"`
	NextCursor string `json:"nextCursor"`
}

// NewClient creates a compliance API client. cache may be nil.
func NewClient(cfg Config, cache port.Cache, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("compliance base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}

	return &Client{http: httpClient, cache: cache, config: cfg, logger: log}, nil
}

// Preflight checks that the API is reachable and the token is accepted.
func (c *Client) Preflight(ctx context.Context) error {
	_, err := c.ListPolicies(ctx)
	return err
}

// ListPolicies returns DLP policies. Unknown policy modes are rejected.
func (c *Client) ListPolicies(ctx context.Context) ([]entity.DLPPolicy, error) {
	var raw []policyJSON
	if !c.fromCache(ctx, policiesCacheKey, &raw) {
		var resp listResponse[policyJSON]
		if err := c.get(ctx, "/dlp/policies", nil, &resp); err != nil {
			return nil, fmt.Errorf("list policies: %w", err)
		}
		raw = resp.Value
		c.toCache(ctx, policiesCacheKey, raw)
	}

	policies := make([]entity.DLPPolicy, 0, len(raw))
	for _, p := range raw {
		mode, err := valueobject.ParsePolicyMode(p.Mode)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", p.Name, err)
		}
		workloads := make([]entity.Workload, 0, len(p.Workloads))
		for _, w := range p.Workloads {
			workloads = append(workloads, entity.Workload(w))
		}
		policies = append(policies, entity.DLPPolicy{
			Name:      p.Name,
			Mode:      mode,
			Enabled:   p.Enabled,
			Workloads: workloads,
		})
	}
	return policies, nil
}

// ListRules returns DLP rules.
func (c *Client) ListRules(ctx context.Context) ([]entity.DLPRule, error) {
	var raw []ruleJSON
	if !c.fromCache(ctx, rulesCacheKey, &raw) {
		var resp listResponse[ruleJSON]
		if err := c.get(ctx, "/dlp/rules", nil, &resp); err != nil {
			return nil, fmt.Errorf("list rules: %w", err)
		}
		raw = resp.Value
		c.toCache(ctx, rulesCacheKey, raw)
	}

	rules := make([]entity.DLPRule, 0, len(raw))
	for _, r := range raw {
		rules = append(rules, entity.DLPRule{
			Name:                   r.Name,
			Policy:                 r.Policy,
			Disabled:               r.Disabled,
			SensitiveInfoTypes:     r.SensitiveInfoTypes,
			BlockAccess:            r.BlockAccess,
			NotifyUser:             r.NotifyUser,
			GenerateIncidentReport: r.GenerateIncidentReport,
		})
	}
	return rules, nil
}

// SearchAuditLog pages through the audit log until the cursor is exhausted
// or query.ResultSize records are collected.
func (c *Client) SearchAuditLog(ctx context.Context, query port.AuditQuery) ([]entity.AuditRecord, error) {
	params := map[string]string{
		"start":    query.Window.Start().UTC().Format(time.RFC3339),
		"end":      query.Window.End().UTC().Format(time.RFC3339),
		"pageSize": strconv.Itoa(c.config.PageSize),
	}
	if len(query.Operations) > 0 {
		params["operations"] = strings.Join(query.Operations, ",")
	}

	records := make([]entity.AuditRecord, 0)
	cursor := ""
	for page := 0; ; page++ {
		if cursor != "" {
			params["cursor"] = cursor
		}

		var resp listResponse[auditRecordJSON]
		if err := c.get(ctx, "/audit/search", params, &resp); err != nil {
			return nil, fmt.Errorf("search audit log page %d: %w", page+1, err)
		}

		for _, r := range resp.Value {
			records = append(records, entity.AuditRecord(r))
			if query.ResultSize > 0 && len(records) >= query.ResultSize {
				c.logger.Debug("Audit search result cap reached", "records", len(records))
				return records, nil
			}
		}

		if resp.NextCursor == "" || len(resp.Value) == 0 {
			return records, nil
		}
		cursor = resp.NextCursor
	}
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		Get(path)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", port.ErrComplianceForbidden, resp.StatusCode())
	case resp.IsError():
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	return nil
}

func (c *Client) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if c.cache == nil {
		return false
	}
	if err := c.cache.Get(ctx, key, dest); err != nil {
		if !errors.Is(err, port.ErrCacheMiss) {
			c.logger.Warn("Compliance cache read failed", "key", key, "error", err.Error())
		}
		return false
	}
	return true
}

func (c *Client) toCache(ctx context.Context, key string, value interface{}) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetWithTTL(ctx, key, value, c.config.CacheTTL); err != nil {
		c.logger.Warn("Compliance cache write failed", "key", key, "error", err.Error())
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
