package actor

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/mapscrape-api/internal/models"
)

const (
	DefaultBaseURL = "https://api.apify.com/v2"
	// DefaultActorID is the Google Maps scraper.
	DefaultActorID = "nwua9Gu5YrADL7ZDj"
)

// Config is fixed for the lifetime of a Client.
type Config struct {
	BaseURL        string
	ActorID        string
	PlatformHeader string
	PlatformValue  string
	AppHeader      string
	AppValue       string
	AIToolHeader   string
	Timeout        time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		ActorID:        DefaultActorID,
		PlatformHeader: "x-apify-integration-platform",
		PlatformValue:  "mapscrape",
		AppHeader:      "x-apify-integration-app-id",
		AppValue:       "google-maps-extractor",
		AIToolHeader:   "x-apify-integration-ai-tool",
		Timeout:        time.Minute,
	}
}

// CallOptions select how a single invocation authenticates and identifies
// itself.
type CallOptions struct {
	AuthMethod AuthMethod
	AIToolCall bool
}

type Client struct {
	cfg    Config
	creds  CredentialResolver
	http   *resty.Client
	call   CallOptions
	logger zerolog.Logger
}

type ClientOpt func(*Client)

// WithHTTPClient replaces the underlying transport, mostly for tests.
func WithHTTPClient(hc *http.Client) ClientOpt {
	return func(c *Client) { c.http = resty.NewWithClient(hc) }
}

func WithLogger(logger zerolog.Logger) ClientOpt {
	return func(c *Client) { c.logger = logger }
}

func NewClient(cfg Config, creds CredentialResolver, opts ...ClientOpt) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.ActorID == "" {
		cfg.ActorID = def.ActorID
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	c := &Client{
		cfg:    cfg,
		creds:  creds,
		http:   resty.New(),
		call:   CallOptions{AuthMethod: AuthAPIKey},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http.
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	c.logger = c.logger.With().Str("component", "actor_client").Logger()
	return c
}

// WithCall returns a copy of the client bound to the given call options.
func (c *Client) WithCall(opts CallOptions) *Client {
	cp := *c
	if opts.AuthMethod == "" {
		opts.AuthMethod = AuthAPIKey
	}
	cp.call = opts
	return &cp
}

func (c *Client) ActorID() string { return c.cfg.ActorID }

type envelope[T any] struct {
	Data *T `json:"data"`
}

// GetDefaultBuild fetches the build currently tagged as default for actorID.
func (c *Client) GetDefaultBuild(ctx context.Context, actorID string) (*models.Build, error) {
	var env envelope[models.Build]
	if err := c.do(ctx, http.MethodGet, "/acts/{actorId}/builds/default", func(r *resty.Request) {
		r.SetPathParam("actorId", actorPathID(actorID))
	}, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, &APIError{Message: "no default build found for actor " + actorID}
	}
	return env.Data, nil
}

// StartRun submits input as a new run without waiting for it to finish.
func (c *Client) StartRun(ctx context.Context, actorID string, input models.Params) (*models.Run, error) {
	var env envelope[models.Run]
	if err := c.do(ctx, http.MethodPost, "/acts/{actorId}/runs", func(r *resty.Request) {
		r.SetPathParam("actorId", actorPathID(actorID)).
			SetQueryParam("waitForFinish", "0").
			SetHeader("Content-Type", "application/json").
			SetBody(input)
	}, &env); err != nil {
		return nil, err
	}
	if env.Data == nil || env.Data.ID == "" {
		return nil, &APIError{Message: "run response did not contain a run ID"}
	}
	return env.Data, nil
}

func (c *Client) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	var env envelope[models.Run]
	if err := c.do(ctx, http.MethodGet, "/actor-runs/{runId}", func(r *resty.Request) {
		r.SetPathParam("runId", runID)
	}, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, &APIError{Message: "run " + runID + " not found in response"}
	}
	return env.Data, nil
}

// ListItems returns every item of a dataset in one call.
func (c *Client) ListItems(ctx context.Context, datasetID string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/datasets/{datasetId}/items", func(r *resty.Request) {
		r.SetPathParam("datasetId", datasetID).
			SetQueryParam("format", "json").
			SetQueryParam("clean", "true")
	}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, method, path string, build func(*resty.Request), out any) error {
	token, err := c.creds.Resolve(ctx, c.call.AuthMethod)
	if err != nil {
		return err
	}

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader(c.cfg.PlatformHeader, c.cfg.PlatformValue).
		SetHeader(c.cfg.AppHeader, c.cfg.AppValue)
	if c.call.AIToolCall && c.cfg.AIToolHeader != "" {
		req.SetHeader(c.cfg.AIToolHeader, "true")
	}
	build(req)

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("Request to actor API failed")
		return &APIError{Message: err.Error(), Description: "request could not be completed", Err: err}
	}
	c.logger.Debug().Str("method", method).Str("url", resp.Request.URL).Int("status", resp.StatusCode()).Msg("Actor API call")

	if resp.IsError() {
		return &APIError{
			StatusCode:  resp.StatusCode(),
			Message:     strings.TrimSpace(string(resp.Body())),
			Description: resp.Status(),
		}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &APIError{
			StatusCode:  resp.StatusCode(),
			Message:     "could not decode response",
			Description: err.Error(),
			Err:         errors.WithStack(err),
		}
	}
	return nil
}

// actorPathID converts "owner/name" into the "owner~name" form used in paths.
func actorPathID(actorID string) string {
	return strings.ReplaceAll(actorID, "/", "~")
}
