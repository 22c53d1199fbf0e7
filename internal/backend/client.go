// Package backend adapts the metrics-backend tool-invocation protocol
// (health_check, get_targets, execute_query, the qos/config resource) onto
// a single MCP session, narrowed to one backend server per CLI process
// instead of a registry of many.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
)

const (
	initTimeout    = 10 * time.Second
	opTimeout      = 15 * time.Second
	retryBackoffMin = 200 * time.Millisecond
	retryBackoffMax = 800 * time.Millisecond

	// KBResourceURI is the URI of the QoS knowledge base resource.
	KBResourceURI = "qos/config"

	toolHealthCheck  = "health_check"
	toolGetTargets   = "get_targets"
	toolExecuteQuery = "execute_query"
)

// Client manages one long-lived MCP session to the metrics backend.
// Safe for concurrent use: CallTool may be invoked from multiple
// goroutines during a fan-out stage.
type Client struct {
	transport mcpsdk.Transport

	mu      sync.RWMutex
	session *mcpsdk.ClientSession
	client  *mcpsdk.Client

	logger *slog.Logger
}

// NewClient builds a Client for the given transport config without
// connecting. Call Connect before use.
func NewClient(cfg TransportConfig) (*Client, error) {
	transport, err := createTransport(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{transport: transport, logger: slog.Default()}, nil
}

// Connect establishes the MCP session.
func (c *Client) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "qos-advisor",
		Version: "dev",
	}, nil)

	session, err := client.Connect(ctx, c.transport, nil)
	if err != nil {
		return fmt.Errorf("connect to metrics backend: %w", err)
	}

	c.mu.Lock()
	c.client = client
	c.session = session
	c.mu.Unlock()
	return nil
}

// Close shuts down the session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

// HealthCheck invokes health_check and reports failure if the response
// contains "error", "unhealthy", or "down" (case-insensitive substring).
func (c *Client) HealthCheck(ctx context.Context) error {
	text, err := c.callToolText(ctx, toolHealthCheck, nil)
	if err != nil {
		return fmt.Errorf("health_check: %w", err)
	}
	lower := strings.ToLower(text)
	for _, bad := range []string{"error", "unhealthy", "down"} {
		if strings.Contains(lower, bad) {
			return fmt.Errorf("backend reported unhealthy: %s", text)
		}
	}
	return nil
}

// GetTargets invokes get_targets and returns the raw JSON body.
func (c *Client) GetTargets(ctx context.Context) ([]byte, error) {
	return c.callToolBytes(ctx, toolGetTargets, nil)
}

// ExecuteQuery invokes execute_query with the given query string and
// returns the raw JSON envelope.
func (c *Client) ExecuteQuery(ctx context.Context, query string) ([]byte, error) {
	return c.callToolBytes(ctx, toolExecuteQuery, map[string]any{"query": query})
}

// ReadKB reads the qos/config resource and returns its body.
func (c *Client) ReadKB(ctx context.Context) ([]byte, error) {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	if session == nil {
		return nil, fmt.Errorf("no active session")
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := session.ReadResource(opCtx, &mcpsdk.ReadResourceParams{URI: KBResourceURI})
	if err != nil {
		return nil, fmt.Errorf("read resource %q: %w", KBResourceURI, err)
	}
	for _, content := range result.Contents {
		if content.Text != "" {
			return []byte(content.Text), nil
		}
		if len(content.Blob) > 0 {
			return content.Blob, nil
		}
	}
	return nil, nil
}

// QueryJob is one named query to run as part of a concurrent batch.
type QueryJob struct {
	Label string // caller-defined identity, e.g. metric name or "<metric>:avg"
	Query string
}

// QueryResult is the outcome of one QueryJob: exactly one of Body/Err is
// set.
type QueryResult struct {
	Label string
	Body  []byte
	Err   error
}

// ExecuteQueryBatch runs every job concurrently (scatter-gather with
// per-task error isolation): one job's failure never cancels its
// siblings. Results preserve no particular order; callers key off Label.
// Built on errgroup purely for its goroutine bookkeeping — the group
// functions never return a non-nil error, since a failing query must not
// cancel the others.
func (c *Client) ExecuteQueryBatch(ctx context.Context, jobs []QueryJob) []QueryResult {
	results := make([]QueryResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			body, err := c.ExecuteQuery(gctx, job.Query)
			results[i] = QueryResult{Label: job.Label, Body: body, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// callToolText calls a tool and concatenates its text content.
func (c *Client) callToolText(ctx context.Context, name string, args map[string]any) (string, error) {
	body, err := c.callToolBytes(ctx, name, args)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// callToolBytes executes a tool call with at most one retry on transient
// failure, with a small jittered backoff between attempts.
func (c *Client) callToolBytes(ctx context.Context, name string, args map[string]any) ([]byte, error) {
	body, err := c.callOnce(ctx, name, args)
	if err == nil {
		return body, nil
	}

	backoff := retryBackoffMin + time.Duration(rand.Int64N(int64(retryBackoffMax-retryBackoffMin)))
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.logger.Debug("metrics backend call failed, retrying", "tool", name, "error", err)
	body, err = c.callOnce(ctx, name, args)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	return body, nil
}

func (c *Client) callOnce(ctx context.Context, name string, args map[string]any) ([]byte, error) {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	if session == nil {
		return nil, fmt.Errorf("no active session")
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := session.CallTool(opCtx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return nil, fmt.Errorf("tool returned error content")
	}

	var sb strings.Builder
	for _, item := range result.Content {
		if tc, ok := item.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return []byte(sb.String()), nil
}
