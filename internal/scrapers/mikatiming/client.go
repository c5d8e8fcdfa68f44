package mikatiming

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"raceresults/internal/components/assert"
	"raceresults/internal/components/telemetry"
	"strconv"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_page   = "client.page"
	report_client_scrape = "client.scrape"
)

type ClientOptions struct {
	// BaseUrl is the results host of a race, ex. https://berlin.r.mikatiming.com
	BaseUrl string
	// RequestsPerSecond defaults to 2.
	RequestsPerSecond float64
}

type Client struct {
	http *resty.Client
	tel  telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (Client, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.BaseUrl)

	tel = telemetry.NewScopedAPI("mikatiming_scraper", tel)

	_, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return Client{}, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetTimeout(time.Second * 30)

	perSecond := opts.RequestsPerSecond
	if perSecond <= 0 {
		perSecond = 2
	}
	// max burst >= 1 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(rate.Limit(perSecond), 1)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)

	return Client{http: httpClient, tel: tel}, nil
}

func listQuery(opts ListOptions, sex string, page int) url.Values {
	numResults := opts.NumResults
	if numResults <= 0 {
		numResults = 100
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("event", opts.Event)
	if opts.EventMainGroup != "" {
		query.Set("event_main_group", opts.EventMainGroup)
	}
	query.Set("num_results", strconv.Itoa(numResults))
	query.Set("pid", "list")
	query.Set("search[sex]", sex)
	query.Set("search[age_class]", "%")
	return query
}

// Page fetches and parses a single page of the listing, pages start at 1.
func (c Client) Page(ctx context.Context, opts ListOptions, sex string, page int) ([]Result, error) {
	endpoint := fmt.Sprintf("/%d/", opts.Year)
	query := listQuery(opts, sex, page)

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(endpoint)
	if err != nil {
		c.tel.ReportBroken(
			report_client_page,
			fmt.Errorf("fetch: %w", err),
			endpoint, query.Encode(),
		)
		return nil, err
	}
	if res.IsError() {
		err = fmt.Errorf("fetch listing page %d (%s): unexpected status %s", page, sex, res.Status())
		c.tel.ReportBroken(report_client_page, err, endpoint, query.Encode())
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(
			report_client_page,
			fmt.Errorf("parse: %w", err),
			endpoint,
		)
		return nil, err
	}

	return ParseListing(doc, sex), nil
}

// Scrape walks the listing for every sex until a page comes back without results.
func (c Client) Scrape(ctx context.Context, opts ListOptions) ([]Result, error) {
	var all []Result
	for _, sex := range Sexes {
		for page := 1; ; page++ {
			results, err := c.Page(ctx, opts, sex, page)
			if err != nil {
				return all, fmt.Errorf("scrape %s page %d: %w", sex, page, err)
			}
			if len(results) == 0 {
				break
			}
			c.tel.ReportDebug("scraped page", sex, page, len(results))
			all = append(all, results...)
		}
	}
	c.tel.ReportCount(report_client_scrape, int64(len(all)))
	return all, nil
}
