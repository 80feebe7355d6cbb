package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	wireerrors "github.com/vango-dev/eventwire/internal/errors"
	"github.com/vango-dev/eventwire/internal/manifest"
	"github.com/vango-dev/eventwire/pkg/dispatch"
	"github.com/vango-dev/eventwire/pkg/dom"
	"github.com/vango-dev/eventwire/pkg/middleware"
	"github.com/vango-dev/eventwire/pkg/route"
)

// bundle is a loaded document and manifest. Engines are built from it on
// demand, each over a fresh parse of the page.
type bundle struct {
	page     []byte
	manifest *manifest.Manifest
}

func (a *app) loadBundle(ctx context.Context) (*bundle, error) {
	if a.cfg.Document == "" {
		return nil, wireerrors.New("E330").
			WithSuggestion("Pass --document or set document in eventwire.yaml")
	}
	page, err := a.opener.Open(ctx, a.cfg.Document)
	if err != nil {
		return nil, err
	}
	b := &bundle{page: page}

	if a.cfg.Manifest != "" {
		data, err := a.opener.Open(ctx, a.cfg.Manifest)
		if err != nil {
			return nil, err
		}
		m, err := manifest.Load(data)
		if err != nil {
			return nil, err
		}
		b.manifest = m
		a.logger.Debug("manifest loaded", "source", a.cfg.Manifest, "manifest", m.String())
	}
	return b, nil
}

// document parses a fresh copy of the page.
func (b *bundle) document() (*dom.Document, error) {
	doc, err := dom.ParseString(string(b.page))
	if err != nil {
		return nil, wireerrors.New("E321").WithDetail("document").Wrap(err)
	}
	return doc, nil
}

// engine builds an engine over a fresh document with the manifest applied.
func (a *app) engine(b *bundle, mw ...dispatch.Middleware) (*dispatch.Engine, error) {
	doc, err := b.document()
	if err != nil {
		return nil, err
	}

	base := a.cfg.BasePath
	if base == "" && b.manifest != nil {
		base = b.manifest.BasePath
	}
	client := &http.Client{
		Timeout:   a.cfg.HTTP.Timeout,
		Transport: &headerTransport{headers: a.cfg.HTTP.Headers, next: http.DefaultTransport},
	}
	routes := route.New(
		route.WithBasePath(base),
		route.WithHTTPClient(client),
		route.WithLogger(a.logger),
	)

	e := dispatch.New(doc, routes,
		dispatch.WithLogger(a.logger),
		dispatch.WithMiddleware(mw...),
	)
	if b.manifest != nil {
		n := b.manifest.Apply(e, a.logger)
		a.logger.Debug("controllers bound", "bindings", n, "routes", routes.Len())
	}
	return e, nil
}

// middlewares returns the invocation middleware enabled by config,
// registering metrics on reg.
func (a *app) middlewares(reg prometheus.Registerer) []dispatch.Middleware {
	var mw []dispatch.Middleware
	if a.cfg.Metrics.Enabled {
		mw = append(mw, middleware.Prometheus(
			middleware.WithNamespace(a.cfg.Metrics.Namespace),
			middleware.WithRegistry(reg),
		))
	}
	if a.cfg.Tracing.Enabled {
		mw = append(mw, middleware.OpenTelemetry(
			middleware.WithTracerName(a.cfg.Tracing.TracerName),
		))
	}
	return mw
}

// headerTransport adds configured headers to outbound route calls that do
// not already carry them.
type headerTransport struct {
	headers map[string]string
	next    http.RoundTripper
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		r = r.Clone(r.Context())
		for k, v := range t.headers {
			if r.Header.Get(k) == "" {
				r.Header.Set(k, v)
			}
		}
	}
	return t.next.RoundTrip(r)
}
