// Package domainid resolves student and teacher ids that a token does not carry by asking the
// academic service, with a two-level cache in front.
package domainid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/auth"
)

// Path is the lookup endpoint served by the academic service.
const Path = "/internal/identity/domain-ids"

// Response is the body of the lookup endpoint.
type Response struct {
	StudentID string `json:"studentId,omitempty"`
	TeacherID string `json:"teacherId,omitempty"`
}

// ID returns the id for kind.
func (r Response) ID(kind auth.DomainKind) string {
	switch kind {
	case auth.DomainStudent:
		return r.StudentID
	case auth.DomainTeacher:
		return r.TeacherID
	}
	return ""
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	CacheSize  int
	CacheTTL   time.Duration
	Shared     SharedCache
	HTTPClient *http.Client
	Logger     *zap.Logger
	Now        func() time.Time
}

// Client calls the lookup endpoint. Failures are returned as tagged errors and never panic.
type Client struct {
	baseURL  string
	http     *http.Client
	cache    *cache
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
	parser   *jwt.Parser
}

// New builds a client.
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     httpClient,
		cache:    newCache(opts.CacheSize, opts.CacheTTL, opts.Shared, opts.Logger, opts.Now),
		cacheTTL: opts.CacheTTL,
		logger:   opts.Logger,
		now:      opts.Now,
		parser:   jwt.NewParser(),
	}
}

// Resolve returns the id of the given kind for the caller identified by token. The token must
// already have been verified by the gate.
func (c *Client) Resolve(ctx context.Context, token string, kind auth.DomainKind) (string, error) {
	key := cacheKey(token, kind)
	if id, ok := c.cache.get(ctx, key); ok {
		return id, nil
	}

	resp, err := c.fetch(ctx, token)
	if err != nil {
		return "", err
	}

	ttl := c.entryTTL(token)
	for _, k := range []auth.DomainKind{auth.DomainStudent, auth.DomainTeacher} {
		c.cache.set(ctx, cacheKey(token, k), resp.ID(k), ttl)
	}

	id := strings.TrimSpace(resp.ID(kind))
	if id == "" {
		return "", auth.NewError(auth.KindDomainIDNotFound, fmt.Errorf("directory has no %s for caller", kind))
	}
	return id, nil
}

func (c *Client) fetch(ctx context.Context, token string) (Response, error) {
	if c.baseURL == "" {
		return Response{}, auth.NewInternalError(auth.CauseRemote, errors.New("domain id lookup not configured"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+Path, nil)
	if err != nil {
		return Response{}, auth.NewInternalError(auth.CauseRemote, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("domain id lookup failed", zap.Error(err))
		return Response{}, auth.NewInternalError(auth.CauseRemote, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return Response{}, auth.NewError(auth.KindDomainIDNotFound, errors.New("directory has no entry for caller"))
	case res.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		c.logger.Warn("domain id lookup rejected", zap.Int("status", res.StatusCode))
		return Response{}, auth.NewInternalError(auth.CauseRemote, fmt.Errorf("lookup returned status %d", res.StatusCode))
	}

	var body Response
	if err := json.NewDecoder(io.LimitReader(res.Body, 64<<10)).Decode(&body); err != nil {
		return Response{}, auth.NewInternalError(auth.CauseDecode, fmt.Errorf("decode lookup response: %w", err))
	}
	return body, nil
}

// entryTTL bounds the cache lifetime by the token's remaining validity.
func (c *Client) entryTTL(token string) time.Duration {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := c.parser.ParseUnverified(token, claims); err != nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Time.Sub(c.now())
	if remaining < c.cacheTTL {
		return remaining
	}
	return c.cacheTTL
}
