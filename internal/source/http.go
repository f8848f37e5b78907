package source

import (
	"context"
	"fmt"
	"growthwatch/internal/telemetry"
	"growthwatch/lib/restyutil"
	libtelemetry "growthwatch/lib/telemetry"
	"mime"
	"net/http/cookiejar"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type HttpOptions struct {
	Url     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	// Flight requests the React Server Component payload instead of the
	// rendered page.
	Flight bool `json:"flight"`
	// RequestsPerSecond defaults to 2.
	RequestsPerSecond float64 `json:"requests_per_second"`
	// DumpDir, if set, receives a file for every http exchange.
	DumpDir string `json:"dump_dir"`
}

type HttpSource struct {
	url  string
	http *resty.Client
	tel  telemetry.API
}

var tracer = libtelemetry.Tracer("growthwatch.internal.source")

func NewHttpSource(opts HttpOptions, tel telemetry.API) (*HttpSource, error) {
	target, err := url.Parse(opts.Url)
	if err != nil {
		return nil, err
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme '%s'", target.Scheme)
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(target.Hostname()))
	client.SetTimeout(time.Second * 30)
	if opts.Flight {
		client.SetHeader("RSC", "1")
	}
	for k, v := range opts.Headers {
		client.SetHeader(k, v)
	}

	perSecond := opts.RequestsPerSecond
	if perSecond <= 0 {
		perSecond = 2
	}
	rateLimiter := rate.NewLimiter(rate.Limit(perSecond), 2)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	var output restyutil.InstrumentOutput
	if opts.DumpDir != "" {
		fsOutput, err := restyutil.NewFilesystemOutput(opts.DumpDir)
		if err != nil {
			return nil, err
		}
		output = fsOutput
	}
	restyutil.InstrumentClient(client, tracer, output)

	return &HttpSource{
		url:  target.String(),
		http: client,
		tel:  telemetry.NewScopedAPI("http_source", tel),
	}, nil
}

func (s *HttpSource) Name() string {
	return s.url
}

const (
	report_http_fetch = "fetch"
)

func (s *HttpSource) Fetch(ctx context.Context) ([]Blob, error) {
	ctx, span := tracer.Start(ctx, "HttpSource.Fetch")
	defer span.End()

	res, err := s.http.R().
		SetContext(ctx).
		Get(s.url)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("unexpected status %s", res.Status())
	}

	body := res.String()
	mediaType, _, err := mime.ParseMediaType(res.Header().Get("content-type"))
	if err != nil {
		s.tel.ReportWarning(report_http_fetch, fmt.Errorf("parse content-type: %w", err), s.url)
	}
	s.tel.ReportDebug("fetched", s.url, mediaType, len(body))

	if mediaType == "text/html" {
		return SplitHtml(s.url, body), nil
	}
	return []Blob{{Origin: s.url, Text: body}}, nil
}
