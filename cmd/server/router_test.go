package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "memberdir/internal/jwt_token"
	memberHandler "memberdir/internal/member/handler"
	"memberdir/internal/member/roles"
	memberService "memberdir/internal/member/service"
	memberStore "memberdir/internal/member/store"
	"memberdir/internal/platform/metrics"
	"memberdir/pkg/testutil"
)

func testRouter(t *testing.T, health map[string]healthCheck) (http.Handler, *jwttoken.JWTService) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	jwt := jwttoken.NewJWTService("k", "iss", "aud")
	members := memberStore.NewInMemory()
	h := newRouter(routerDeps{
		logger:   log,
		metrics:  metrics.New(reg),
		registry: reg,
		verifier: jwt,
		health:   health,
		handlers: []registrar{memberHandler.New(memberService.New(members), roles.New(members), log)},
	})
	return h, jwt
}

func TestHealthz(t *testing.T) {
	h, _ := testRouter(t, map[string]healthCheck{"postgres": func(context.Context) error { return nil }})
	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"OK","checks":{"postgres":"ok"}}`, rr.Body.String())

	h, _ = testRouter(t, map[string]healthCheck{"redis": func(context.Context) error { return errors.New("down") }})
	rr = testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	h, jwt := testRouter(t, nil)

	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/members/me"))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")

	token, err := jwt.GenerateToken("sub-1", "", time.Minute)
	require.NoError(t, err)
	req := testutil.NewRequest(t, http.MethodGet, "/members/me")
	req.Header.Set("Authorization", "Bearer "+token)
	rr = testutil.DoRequest(h, req)
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := testRouter(t, nil)
	testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "memberdir_http_request_duration_seconds")
}
