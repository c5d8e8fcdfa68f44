// Package ironman logs into the IRONMAN results tracker to obtain the rtrt.me
// event name and api credentials it uses.
package ironman

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"raceresults/internal/components/assert"
	"raceresults/internal/components/telemetry"
	"raceresults/internal/scrapers/rtrt"
	"regexp"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	report_login_capture = "login.capture"
	report_login_frame   = "login.frame"
)

type LoginOptions struct {
	// Timeout defaults to 30s.
	Timeout time.Duration
	// PollInterval defaults to 5s.
	PollInterval time.Duration
	// ExecPath is the chrome binary, chromedp looks for one if empty.
	ExecPath string
}

// Session is what the tracker page reveals about the rtrt.me event it shows.
type Session struct {
	Event       string
	Credentials rtrt.Credentials
}

var eventUrlRegex = regexp.MustCompile(`api\.rtrt\.me/events/([^/?#]+)`)

type capturedRequest struct {
	id    network.RequestID
	event string
}

// Login opens eventUrl (ex. https://www.ironman.com/5150-erkner-results) in a
// headless browser and captures the first POST the embedded tracker makes to
// the rtrt.me api.
func Login(ctx context.Context, eventUrl string, opts LoginOptions, tel telemetry.API) (Session, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(eventUrl)

	tel = telemetry.NewScopedAPI("ironman_login", tel)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocatorCtx, cancelAllocator := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAllocator()
	browserCtx, cancelBrowser := chromedp.NewContext(allocatorCtx)
	defer cancelBrowser()

	captured := make(chan capturedRequest, 1)
	chromedp.ListenTarget(browserCtx, func(ev any) {
		req, ok := ev.(*network.EventRequestWillBeSent)
		if !ok || req.Request == nil || req.Request.Method != "POST" {
			return
		}
		event, ok := eventFromApiUrl(req.Request.URL)
		if !ok {
			return
		}
		select {
		case captured <- capturedRequest{id: req.RequestID, event: event}:
		default:
		}
	})

	err := chromedp.Run(browserCtx, network.Enable(), chromedp.Navigate(eventUrl))
	if err != nil {
		return Session{}, fmt.Errorf("navigate to %s: %w", eventUrl, err)
	}

	session, err := waitForApiRequest(browserCtx, captured, timeout, pollInterval, tel)
	if err != nil {
		return Session{}, err
	}
	if session.Event != "" {
		return session, nil
	}

	var src string
	var found bool
	err = chromedp.Run(browserCtx, chromedp.AttributeValue(
		"iframe#rtframe", "src", &src, &found,
		chromedp.ByQuery, chromedp.AtLeast(0),
	))
	if err != nil {
		return Session{}, fmt.Errorf("read tracker frame: %w", err)
	}
	if !found {
		err = errors.New("no api request captured and no tracker frame found")
		tel.ReportBroken(report_login_frame, err, eventUrl)
		return Session{}, err
	}
	session.Event = eventFromFrameSrc(src)
	if session.Event == "" {
		err = fmt.Errorf("no event in tracker frame src %s", src)
		tel.ReportBroken(report_login_frame, err)
		return Session{}, err
	}
	tel.ReportWarning(report_login_frame, "only the event name could be determined", session.Event)
	return session, nil
}

func waitForApiRequest(
	ctx context.Context,
	captured <-chan capturedRequest,
	timeout, pollInterval time.Duration,
	tel telemetry.API,
) (Session, error) {
	deadline := time.After(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	waited := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			return Session{}, ctx.Err()
		case <-deadline:
			return Session{}, nil
		case <-ticker.C:
			waited += pollInterval
			tel.ReportDebug("waiting for tracker", waited.String())
		case req := <-captured:
			var postData string
			err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
				var err error
				postData, err = network.GetRequestPostData(req.id).Do(ctx)
				return err
			}))
			if err != nil {
				tel.ReportBroken(report_login_capture, err, req.event)
				return Session{Event: req.event}, nil
			}

			session := Session{Event: req.event, Credentials: credentialsFromRequest(postData)}
			tel.ReportDebug("captured tracker request", session.Event, session.Credentials.AppId)
			return session, nil
		}
	}
}

func eventFromApiUrl(rawUrl string) (string, bool) {
	match := eventUrlRegex.FindStringSubmatch(rawUrl)
	if match == nil {
		return "", false
	}
	event, err := url.PathUnescape(match[1])
	if err != nil {
		return match[1], true
	}
	return event, true
}

// credentialsFromRequest reads appid and token from the form encoded body of
// a tracker api request.
func credentialsFromRequest(postData string) rtrt.Credentials {
	form, err := url.ParseQuery(postData)
	if err != nil {
		return rtrt.Credentials{}
	}
	return rtrt.Credentials{
		AppId: form.Get("appid"),
		Token: form.Get("token"),
	}
}

var frameEventRegex = regexp.MustCompile(`event=([^&]+)`)

func eventFromFrameSrc(src string) string {
	parsed, err := url.Parse(src)
	if err == nil {
		event := parsed.Query().Get("event")
		if event != "" {
			return event
		}
	}
	match := frameEventRegex.FindStringSubmatch(src)
	if match == nil {
		return ""
	}
	return match[1]
}
