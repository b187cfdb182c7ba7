package beo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"go-der-dashboard/internal/metrics"
	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/optimistic"
	"go-der-dashboard/internal/parsing"
	"go-der-dashboard/internal/poller"
)

// DefaultPageSize is used for listings when the caller does not ask for one
const DefaultPageSize = 50

// Collection paths on the BEO, relative to the base URL
var collectionPaths = map[model.Type]string{
	model.TypeScenario:         "v1/cost/scenario/",
	model.TypeMeterGroup:       "v1/load/meter_group/",
	model.TypeRatePlan:         "v1/cost/utility_rate/",
	model.TypeDERConfiguration: "v1/der/configuration/",
	model.TypeDERStrategy:      "v1/der/strategy/",
}

// Some endpoints wrap the result list in an object under these keys
var resultKeys = map[model.Type]string{
	model.TypeScenario:         "scenarios",
	model.TypeMeterGroup:       "meter_groups",
	model.TypeRatePlan:         "rate_plans",
	model.TypeDERConfiguration: "der_configurations",
	model.TypeDERStrategy:      "der_strategies",
}

type sessionKey struct{}

// WithSession makes requests made with ctx carry cookie instead of the configured one
func WithSession(ctx context.Context, cookie string) context.Context {
	return context.WithValue(ctx, sessionKey{}, cookie)
}

// Options configure a Client
type Options struct {
	HTTPClient    *http.Client
	SessionCookie string
	Timeout       time.Duration
	PageSize      int
	Log           *zap.SugaredLogger
}

// Client talks to the BEO REST API
type Client struct {
	base     *url.URL
	hc       *http.Client
	cookie   string
	pageSize int
	log      *zap.SugaredLogger
}

// New creates a client for the BEO at baseURL
func New(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: beo url %q: %v", model.ErrInvalidArgument, baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: beo url %q needs scheme and host", model.ErrInvalidArgument, baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Client{base: base, hc: hc, cookie: opts.SessionCookie, pageSize: pageSize, log: log}, nil
}

// BaseURL returns the BEO root the client talks to
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// ListQuery narrows a collection listing
type ListQuery struct {
	IDs      []string
	Include  []string
	Page     int
	PageSize int
}

func (q ListQuery) values(defaultPageSize int) url.Values {
	v := url.Values{}
	if len(q.IDs) > 0 {
		v.Set("filter{id}", strings.Join(q.IDs, ","))
	}
	if len(q.Include) > 0 {
		v.Set("include", strings.Join(q.Include, ","))
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	size := q.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	v.Set("page", strconv.Itoa(page))
	v.Set("page_size", strconv.Itoa(size))
	return v
}

func (c *Client) resourceURL(t model.Type, id string, query url.Values) (string, error) {
	p, ok := collectionPaths[t]
	if !ok {
		return "", fmt.Errorf("%w: no BEO collection for %s", model.ErrInvalidArgument, t)
	}
	if id != "" {
		p += url.PathEscape(id) + "/"
	}
	u := c.base.ResolveReference(&url.URL{Path: p})
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, target string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", method, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie, ok := ctx.Value(sessionKey{}).(string); ok && cookie != "" {
		req.Header.Set("Cookie", cookie)
	} else if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.BEORequests.WithLabelValues(method, "error").Inc()
		return nil, &model.NetworkError{Op: method + " " + req.URL.Path, Err: err}
	}
	metrics.BEORequests.WithLabelValues(method, StatusCodeRangeOf(resp).Label()).Inc()
	c.log.Debugw("BEO request", "method", method, "path", req.URL.Path, "status", resp.StatusCode)
	return resp, nil
}

// unmarshalJSONResponse decodes a 2xx body into v, or turns the response into a NetworkError
func unmarshalJSONResponse[T any](resp *http.Response, op string, v *T) error {
	defer resp.Body.Close()
	if StatusCodeRangeOf(resp) == Status2xx {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return &model.NetworkError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}
	return responseError(resp, op)
}

func responseError(resp *http.Response, op string) error {
	scr := StatusCodeRangeOf(resp)
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return &model.NetworkError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%s: cannot read server message: %w", scr, err)}
	}
	if detail := parseErrorMessage(body); detail != "" {
		return &model.NetworkError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%s: %s", scr, detail)}
	}
	return &model.NetworkError{Op: op, Status: resp.StatusCode, Err: errors.New(scr.String())}
}

// parseErrorMessage extracts the server's "detail" message, if any
func parseErrorMessage(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Detail
}

// listAs fetches one page of collection t and converts the wire rows with convert
func listAs[W any, T any](ctx context.Context, c *Client, t model.Type, q ListQuery, convert func(W) ([]T, error)) (model.PaginationSet[T], error) {
	target, err := c.resourceURL(t, "", q.values(c.pageSize))
	if err != nil {
		return model.PaginationSet[T]{}, err
	}
	op := http.MethodGet + " /" + collectionPaths[t]

	resp, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return model.PaginationSet[T]{}, err
	}
	var env parsing.Envelope
	if err := unmarshalJSONResponse(resp, op, &env); err != nil {
		return model.PaginationSet[T]{}, err
	}

	rows, err := parsing.Normalize(env, parsing.Extractor[W, W]{Key: resultKeys[t]})
	if err != nil {
		return model.PaginationSet[T]{}, fmt.Errorf("%s: %w", op, err)
	}
	out := model.PaginationSet[T]{
		Count:       rows.Count,
		HasNext:     rows.HasNext,
		HasPrevious: rows.HasPrevious,
		Data:        make([]T, 0, len(rows.Data)),
	}
	for _, row := range rows.Data {
		converted, err := convert(row)
		if err != nil {
			return model.PaginationSet[T]{}, fmt.Errorf("%s: %w", op, err)
		}
		out.Data = append(out.Data, converted...)
	}
	return out, nil
}

func (c *Client) ListScenarios(ctx context.Context, q ListQuery) (model.PaginationSet[*model.Scenario], error) {
	return listAs(ctx, c, model.TypeScenario, q, scenarioWire.toModel)
}

func (c *Client) ListMeterGroups(ctx context.Context, q ListQuery) (model.PaginationSet[*model.MeterGroup], error) {
	return listAs(ctx, c, model.TypeMeterGroup, q, meterGroupWire.toModel)
}

func (c *Client) ListRatePlans(ctx context.Context, q ListQuery) (model.PaginationSet[*model.RatePlan], error) {
	return listAs(ctx, c, model.TypeRatePlan, q, ratePlanWire.toModel)
}

func (c *Client) ListDERConfigurations(ctx context.Context, q ListQuery) (model.PaginationSet[*model.DERConfiguration], error) {
	return listAs(ctx, c, model.TypeDERConfiguration, q, derConfigurationWire.toModel)
}

func (c *Client) ListDERStrategies(ctx context.Context, q ListQuery) (model.PaginationSet[*model.DERStrategy], error) {
	return listAs(ctx, c, model.TypeDERStrategy, q, derStrategyWire.toModel)
}

// List fetches one page of any known collection as plain entities
func (c *Client) List(ctx context.Context, t model.Type, q ListQuery) (model.PaginationSet[model.Entity], error) {
	switch t {
	case model.TypeScenario:
		return entities[*model.Scenario](c.ListScenarios(ctx, q))
	case model.TypeMeterGroup:
		return entities[*model.MeterGroup](c.ListMeterGroups(ctx, q))
	case model.TypeRatePlan:
		return entities[*model.RatePlan](c.ListRatePlans(ctx, q))
	case model.TypeDERConfiguration:
		return entities[*model.DERConfiguration](c.ListDERConfigurations(ctx, q))
	case model.TypeDERStrategy:
		return entities[*model.DERStrategy](c.ListDERStrategies(ctx, q))
	default:
		return model.PaginationSet[model.Entity]{}, fmt.Errorf("%w: no BEO collection for %s", model.ErrInvalidArgument, t)
	}
}

func entities[T model.Entity](set model.PaginationSet[T], err error) (model.PaginationSet[model.Entity], error) {
	if err != nil {
		return model.PaginationSet[model.Entity]{}, err
	}
	out := model.PaginationSet[model.Entity]{
		Count:       set.Count,
		HasNext:     set.HasNext,
		HasPrevious: set.HasPrevious,
		Data:        make([]model.Entity, len(set.Data)),
	}
	for i, e := range set.Data {
		out.Data[i] = e
	}
	return out, nil
}

func pollables[T model.Pollable](set model.PaginationSet[T], err error) ([]model.Pollable, error) {
	if err != nil {
		return nil, err
	}
	out := make([]model.Pollable, len(set.Data))
	for i, e := range set.Data {
		out[i] = e
	}
	return out, nil
}

// FetchScenarios is the batch status fetcher for scenarios
func (c *Client) FetchScenarios(ctx context.Context, ids []string) ([]model.Pollable, error) {
	return pollables[*model.Scenario](c.ListScenarios(ctx, ListQuery{IDs: ids, PageSize: len(ids)}))
}

// FetchMeterGroups is the batch status fetcher for meter groups
func (c *Client) FetchMeterGroups(ctx context.Context, ids []string) ([]model.Pollable, error) {
	return pollables[*model.MeterGroup](c.ListMeterGroups(ctx, ListQuery{IDs: ids, PageSize: len(ids)}))
}

// Fetchers returns the batch fetcher of every pollable type
func (c *Client) Fetchers() map[model.Type]poller.BatchFetcher {
	return map[model.Type]poller.BatchFetcher{
		model.TypeScenario:   c.FetchScenarios,
		model.TypeMeterGroup: c.FetchMeterGroups,
	}
}

// ScenarioReport fetches one scenario together with its report frame and summary
func (c *Client) ScenarioReport(ctx context.Context, id string) (*model.Scenario, error) {
	set, err := c.ListScenarios(ctx, ListQuery{IDs: []string{id}, Include: []string{"report", "report_summary"}, PageSize: 1})
	if err != nil {
		return nil, err
	}
	for _, s := range set.Data {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("scenario %s: %w", id, model.ErrNotFound)
}

// Patch sends a partial update of t/id. A refusal by the server is reported in the Result, not as an error.
func (c *Client) Patch(ctx context.Context, t model.Type, id string, body map[string]interface{}) (optimistic.Result, error) {
	return c.mutate(ctx, http.MethodPatch, t, id, body)
}

// Delete removes t/id on the server
func (c *Client) Delete(ctx context.Context, t model.Type, id string) (optimistic.Result, error) {
	return c.mutate(ctx, http.MethodDelete, t, id, nil)
}

func (c *Client) mutate(ctx context.Context, method string, t model.Type, id string, body map[string]interface{}) (optimistic.Result, error) {
	target, err := c.resourceURL(t, id, nil)
	if err != nil {
		return optimistic.Result{}, err
	}
	resp, err := c.do(ctx, method, target, body)
	if err != nil {
		return optimistic.Result{}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return optimistic.Result{
		OK:     StatusCodeRangeOf(resp) == Status2xx,
		Status: resp.StatusCode,
	}, nil
}

// RenameCall is the remote half of a rename: it sends the entity's current name
func (c *Client) RenameCall() optimistic.RemoteCall {
	return func(ctx context.Context, e model.Entity) (optimistic.Result, error) {
		r, ok := e.(model.Renamable)
		if !ok {
			return optimistic.Result{}, fmt.Errorf("%w: %s cannot be renamed", model.ErrInvalidArgument, e.EntityType())
		}
		return c.Patch(ctx, e.EntityType(), e.EntityID(), map[string]interface{}{"name": r.GetName()})
	}
}

// DeleteCall is the remote half of a delete
func (c *Client) DeleteCall() optimistic.RemoteCall {
	return func(ctx context.Context, e model.Entity) (optimistic.Result, error) {
		return c.Delete(ctx, e.EntityType(), e.EntityID())
	}
}
