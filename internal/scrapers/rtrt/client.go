// Package rtrt is a client of the rtrt.me live tracking api that the IRONMAN
// tracker is built on, see https://rtrt.me/docs/api/rest
package rtrt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"raceresults/internal/components/assert"
	"raceresults/internal/components/telemetry"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"golang.org/x/time/rate"
)

const (
	report_client_paginate = "client.paginate"
	report_client_splits   = "client.splits"
)

const DefaultBaseUrl = "https://api.rtrt.me"

// the api allows up to 1000 entries per page for authenticated apps
const defaultPageSize = 100

// splits of up to 10 profiles are requested at once
const SplitGroupSize = 10

type ClientOptions struct {
	// BaseUrl defaults to DefaultBaseUrl.
	BaseUrl     string
	Event       string
	Credentials Credentials
	// PageSize defaults to 100.
	PageSize int
	// RequestsPerSecond defaults to 2.
	RequestsPerSecond float64
}

type Client struct {
	http     *resty.Client
	event    string
	creds    Credentials
	pageSize int
	tel      telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) Client {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Event)

	tel = telemetry.NewScopedAPI("rtrt_client", tel)

	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	perSecond := opts.RequestsPerSecond
	if perSecond <= 0 {
		perSecond = 2
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(baseUrl)
	httpClient.SetTimeout(time.Minute)
	httpClient.SetHeader("accept", "application/json")

	rateLimiter := rate.NewLimiter(rate.Limit(perSecond), 1)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)

	return Client{
		http:     httpClient,
		event:    opts.Event,
		creds:    opts.Credentials,
		pageSize: pageSize,
		tel:      tel,
	}
}

func (c Client) Event() string {
	return c.event
}

// params are the query parameters the web tracker sends with every request.
func (c Client) params(max int) (url.Values, error) {
	cbust, err := random.String(16)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("appid", c.creds.AppId)
	params.Set("token", c.creds.Token)
	params.Set("max", strconv.Itoa(max))
	params.Set("loc", "1")
	params.Set("cbust", cbust)
	params.Set("places", "2")
	params.Set("etimes", "1")
	params.Set("units", "metric")
	params.Set("source", "webtracker")
	return params, nil
}

func (c Client) endpoint(parts ...string) string {
	escaped := []string{"events", url.PathEscape(c.event)}
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return "/" + strings.Join(escaped, "/")
}

func (c Client) get(ctx context.Context, endpoint string, params url.Values) (pageResponse, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(endpoint)
	if err != nil {
		return pageResponse{}, fmt.Errorf("fetch: %w", err)
	}

	var parsed pageResponse
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		if res.IsError() {
			return pageResponse{}, fmt.Errorf("unexpected status %s", res.Status())
		}
		return pageResponse{}, fmt.Errorf("unmarshal json: %w", err)
	}
	if parsed.Error != nil {
		return parsed, &Error{Type: parsed.Error.Type.String(), Msg: parsed.Error.Msg.String()}
	}
	if res.IsError() {
		return pageResponse{}, fmt.Errorf("unexpected status %s", res.Status())
	}
	return parsed, nil
}

// Error is an error reported by the api in its response body.
type Error struct {
	Type string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rtrt: %s: %s", e.Type, e.Msg)
}

// the api answers a start past the last entry with this error type
const errNoResults = "no_results"

// paginateOnce returns the entries starting at start and the index of the last
// entry returned, nil if the api did not report one.
func (c Client) paginateOnce(ctx context.Context, endpoint string, start int) ([]json.RawMessage, *int, error) {
	c.tel.ReportDebug("get entries", endpoint, start, c.pageSize)

	params, err := c.params(c.pageSize)
	if err != nil {
		return nil, nil, err
	}
	params.Set("start", strconv.Itoa(start))

	page, err := c.get(ctx, endpoint, params)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Type == errNoResults {
		return nil, nil, nil
	}
	if err != nil {
		c.tel.ReportBroken(report_client_paginate, err, endpoint, start)
		return nil, nil, err
	}

	if page.Info == nil {
		return page.List, nil, nil
	}
	last, ok := page.Info.Last.Int()
	if !ok {
		return page.List, nil, nil
	}
	return page.List, &last, nil
}

// Paginate fetches every entry of an event endpoint ("profiles", "points").
func (c Client) Paginate(ctx context.Context, endpoint string) ([]json.RawMessage, error) {
	path := c.endpoint(endpoint)

	var all []json.RawMessage
	start := 1
	for {
		entries, last, err := c.paginateOnce(ctx, path, start)
		if err != nil {
			return all, fmt.Errorf("paginate %s from %d: %w", endpoint, start, err)
		}
		all = append(all, entries...)

		if last == nil || len(entries) == 0 {
			break
		}
		if *last < start {
			c.tel.ReportWarning(report_client_paginate, "last entry before start", *last, start)
			break
		}
		start = *last + 1
	}

	c.tel.ReportCount(report_client_paginate, int64(len(all)))
	return all, nil
}

// Profiles fetches every registered participant of the event.
func (c Client) Profiles(ctx context.Context) ([]json.RawMessage, error) {
	return c.Paginate(ctx, "profiles")
}

// Points fetches the split points (waypoints) of every course of the event.
func (c Client) Points(ctx context.Context) ([]json.RawMessage, error) {
	return c.Paginate(ctx, "points")
}

// Splits fetches the splits of the given participants in a single request,
// use Chunk with SplitGroupSize to stay within what the api accepts.
func (c Client) Splits(ctx context.Context, pids []string) ([]json.RawMessage, error) {
	if len(pids) == 0 {
		return nil, nil
	}

	params, err := c.params(2000)
	if err != nil {
		return nil, err
	}

	escaped := make([]string, len(pids))
	for i, pid := range pids {
		escaped[i] = url.PathEscape(pid)
	}
	path := c.endpoint("profiles") + "/" + strings.Join(escaped, ",") + "/splits"
	page, err := c.get(ctx, path, params)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Type == errNoResults {
		return nil, nil
	}
	if err != nil {
		c.tel.ReportBroken(report_client_splits, err, pids)
		return nil, fmt.Errorf("splits of %s: %w", strings.Join(pids, ","), err)
	}
	return page.List, nil
}
