package internal

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/rm-hull/http-service/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RefreshHandler gives the client access to externally owned credential
// storage. An empty token from GetRefreshToken means no refresh is possible.
type RefreshHandler interface {
	GetRefreshToken(ctx context.Context) (string, error)
	SaveSession(ctx context.Context, data jsoniter.RawMessage) error
}

// RefreshFailHandler is optionally implemented by a RefreshHandler to be
// told when a refresh exchange was rejected.
type RefreshFailHandler interface {
	OnRefreshFail(ctx context.Context)
}

// RefreshHandlerFuncs adapts plain functions to RefreshHandler and
// RefreshFailHandler. Nil functions behave as "no token", "discard" and
// "do nothing" respectively.
type RefreshHandlerFuncs struct {
	GetRefreshTokenFunc func(ctx context.Context) (string, error)
	SaveSessionFunc     func(ctx context.Context, data jsoniter.RawMessage) error
	OnRefreshFailFunc   func(ctx context.Context)
}

func (f RefreshHandlerFuncs) GetRefreshToken(ctx context.Context) (string, error) {
	if f.GetRefreshTokenFunc == nil {
		return "", nil
	}
	return f.GetRefreshTokenFunc(ctx)
}

func (f RefreshHandlerFuncs) SaveSession(ctx context.Context, data jsoniter.RawMessage) error {
	if f.SaveSessionFunc == nil {
		return nil
	}
	return f.SaveSessionFunc(ctx, data)
}

func (f RefreshHandlerFuncs) OnRefreshFail(ctx context.Context) {
	if f.OnRefreshFailFunc != nil {
		f.OnRefreshFailFunc(ctx)
	}
}

type Config struct {
	APIBaseURL      string
	RefreshEndpoint string
	RefreshHandler  RefreshHandler

	// StrictPathParams rejects calls whose path has a segment-leading
	// :name placeholder without a matching param, instead of substituting
	// "". Colons inside a segment ("/slots/12:30") are literal.
	StrictPathParams bool

	Logger     *zap.Logger
	Metrics    *Metrics
	HTTPClient *http.Client
}

// HttpService issues credentialed JSON requests against a single API base
// URL and shapes every outcome into a models.Result. It holds no per-call
// state and is safe for concurrent use.
type HttpService struct {
	baseURL         string
	refreshEndpoint string
	handler         RefreshHandler
	strict          bool
	logger          *zap.Logger
	metrics         *Metrics
	client          *resty.Client
}

func NewHttpService(cfg Config) *HttpService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Every call carries the cookies the API has set. resty.New installs its
	// own jar; a caller's client is copied so it is never modified.
	var client *resty.Client
	if cfg.HTTPClient != nil {
		hc := *cfg.HTTPClient
		if hc.Jar == nil {
			hc.Jar, _ = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		}
		client = resty.NewWithClient(&hc)
	} else {
		client = resty.New()
	}
	client.SetRetryCount(0).SetLogger(logger.Sugar())

	return &HttpService{
		baseURL:         cfg.APIBaseURL,
		refreshEndpoint: cfg.RefreshEndpoint,
		handler:         cfg.RefreshHandler,
		strict:          cfg.StrictPathParams,
		logger:          logger,
		metrics:         cfg.Metrics,
		client:          client,
	}
}

func (svc *HttpService) BaseURL() string {
	return svc.baseURL
}

func (svc *HttpService) RefreshEndpoint() string {
	return svc.refreshEndpoint
}

// preparedRequest is one call as sent on the wire; a refresh retry re-sends
// it unchanged.
type preparedRequest struct {
	method      models.Method
	url         string
	headers     map[string]string
	body        []byte
	autoRefresh bool
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (svc *HttpService) prepare(method models.Method, url string, headers map[string]string, body any, autoRefresh bool) (*preparedRequest, error) {
	merged := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		merged[http.CanonicalHeaderKey(k)] = v
	}

	req := &preparedRequest{
		method:      method,
		url:         url,
		headers:     merged,
		autoRefresh: autoRefresh,
	}

	if method != models.MethodGet && body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req.body = data
	}

	return req, nil
}

func (svc *HttpService) execute(ctx context.Context, req *preparedRequest) (*response, error) {
	r := svc.client.R().SetContext(ctx).SetHeaders(req.headers)
	if req.body != nil {
		r.SetBody(req.body)
	}

	start := time.Now()
	resp, err := r.Execute(string(req.method), req.url)
	elapsed := time.Since(start)

	if err != nil {
		svc.metrics.observeRequest(string(req.method), models.StatusTransportFailure, elapsed)
		svc.logger.Warn("httpsvc.http_failed",
			zap.String("method", string(req.method)),
			zap.String("url", req.url),
			zap.Error(err))
		return nil, err
	}

	svc.metrics.observeRequest(string(req.method), resp.StatusCode(), elapsed)
	svc.logger.Debug("httpsvc.http_complete",
		zap.String("method", string(req.method)),
		zap.String("url", req.url),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", elapsed))

	return &response{
		status: resp.StatusCode(),
		header: resp.Header(),
		body:   resp.Body(),
	}, nil
}

func do[T any](ctx context.Context, svc *HttpService, req *preparedRequest) models.Result[T] {
	resp, err := svc.execute(ctx, req)
	if err != nil {
		return models.Failed[T](models.StatusTransportFailure, err.Error(), nil)
	}

	resp, err = svc.refreshIfNeeded(ctx, resp, req)
	if err != nil {
		return models.Failed[T](models.StatusTransportFailure, err.Error(), nil)
	}

	return normalize[T](resp)
}

func send[T any](ctx context.Context, svc *HttpService, method models.Method, path string, opts *models.QueryOptions) models.Result[T] {
	if opts == nil {
		opts = &models.QueryOptions{}
	}

	url, err := BuildURL(svc.baseURL, path, opts.Params, opts.Query, svc.strict)
	if err != nil {
		return models.Failed[T](models.StatusTransportFailure, err.Error(), nil)
	}

	req, err := svc.prepare(method, url, opts.Headers, opts.Body, opts.AutoRefresh)
	if err != nil {
		return models.Failed[T](models.StatusTransportFailure, "failed to marshal request body: "+err.Error(), nil)
	}

	return do[T](ctx, svc, req)
}

// Send dispatches a request with an arbitrary verb.
func (svc *HttpService) Send(ctx context.Context, method models.Method, path string, opts *models.QueryOptions) models.Result[any] {
	return send[any](ctx, svc, method, path, opts)
}

// RefreshToken exchanges refreshToken for a new session at the configured
// refresh endpoint. The call is always refresh-eligible.
func (svc *HttpService) RefreshToken(ctx context.Context, refreshToken string) models.Result[any] {
	req, _ := svc.prepare(models.MethodPost, svc.baseURL+svc.refreshEndpoint,
		map[string]string{"Authorization": "Bearer " + refreshToken}, nil, true)
	return do[any](ctx, svc, req)
}

// Get never transmits opts.Body.
func Get[T any](ctx context.Context, svc *HttpService, path string, opts *models.QueryOptions) models.Result[T] {
	return send[T](ctx, svc, models.MethodGet, path, opts)
}

func Post[T any](ctx context.Context, svc *HttpService, path string, opts *models.QueryOptions) models.Result[T] {
	return send[T](ctx, svc, models.MethodPost, path, opts)
}

func Put[T any](ctx context.Context, svc *HttpService, path string, opts *models.QueryOptions) models.Result[T] {
	return send[T](ctx, svc, models.MethodPut, path, opts)
}

func Patch[T any](ctx context.Context, svc *HttpService, path string, opts *models.QueryOptions) models.Result[T] {
	return send[T](ctx, svc, models.MethodPatch, path, opts)
}

func Delete[T any](ctx context.Context, svc *HttpService, path string, opts *models.QueryOptions) models.Result[T] {
	return send[T](ctx, svc, models.MethodDelete, path, opts)
}
