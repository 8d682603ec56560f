package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vitalsRequest struct {
	Pressure *float64 `json:"pressure" validate:"required"`
	Unit     string   `json:"unit" default:"mmHg" validate:"oneof=mmHg kPa"`
}

func bindRequest(t *testing.T, body string) ValidationErrors {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	return BindAndValidate(c, &vitalsRequest{})
}

func TestBindAndValidate(t *testing.T) {
	assert.Nil(t, bindRequest(t, `{"pressure": 0}`))

	errs := bindRequest(t, `{}`)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "pressure", errs[0].Field)
	assert.Equal(t, "pressure is required", errs[0].Message)

	errs = bindRequest(t, `{"pressure": "high"}`)
	assert.Equal(t, "ERR_TYPE", errs[0].Code)
	assert.Equal(t, "pressure must be a number", errs[0].Message)

	errs = bindRequest(t, `{"pressure": 1, "unit": "psi"}`)
	assert.Equal(t, "ERR_ONEOF", errs[0].Code)
	assert.Equal(t, "unit must be one of: mmHg, kPa", errs[0].Message)
	assert.Equal(t, []string{"mmHg", "kPa"}, errs[0].Params["options"])
	assert.EqualError(t, errs, "unit must be one of: mmHg, kPa")

	errs = bindRequest(t, `{"pressure": `)
	assert.NotEmpty(t, errs)
}

func TestDecodeAndValidate(t *testing.T) {
	var req vitalsRequest
	assert.Nil(t, DecodeAndValidate(context.Background(), []byte(`{"pressure": 12.5}`), &req))
	assert.Equal(t, "mmHg", req.Unit)

	errs := DecodeAndValidate(context.Background(), []byte(`not json`), &vitalsRequest{})
	assert.Equal(t, "ERR_SYNTAX", errs[0].Code)
}

func TestDataResponseUsesStatus(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, BadRequestResponse(c, ValidationErrors{{Code: "ERR_REQUIRED"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, body.Status)
	assert.Equal(t, "Bad Request", body.Message)
}

func TestErrorResponse(t *testing.T) {
	e := echo.New()
	respond := func(err error) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		require.NoError(t, ErrorResponse(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec), err))
		return rec
	}

	rec := respond(BadRequestError("from", "bad"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"from"`)

	rec = respond(fmt.Errorf("query: %w", InternalError("history unavailable").WithError(errors.New("db gone"))))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db gone")

	rec = respond(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeInternal)

	rec = respond(RateLimitedError())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	err := StatusError(http.StatusBadGateway, []byte(strings.Repeat("x", 2000)))
	assert.Equal(t, CodeUpstream, err.Code)
	assert.Less(t, len(err.Message), 600)
}

func TestParseTimeRange(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	r, aerr := ParseTimeRange("", "", time.Hour, now)
	require.Nil(t, aerr)
	assert.Equal(t, now.Add(-time.Hour), r.From)
	assert.Equal(t, now, r.To)

	r, aerr = ParseTimeRange("2026-01-01T00:00:00Z", "1767312000", time.Hour, now)
	require.Nil(t, aerr)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), r.From.UTC())

	r, aerr = ParseTimeRange("2026-01-01", "", time.Hour, now)
	require.Nil(t, aerr)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), r.From)

	_, aerr = ParseTimeRange("yesterday", "", time.Hour, now)
	require.NotNil(t, aerr)
	assert.Equal(t, "from", aerr.Field)

	_, aerr = ParseTimeRange(now.Format(time.RFC3339), now.Add(-time.Minute).Format(time.RFC3339), time.Hour, now)
	require.NotNil(t, aerr)

	assert.Equal(t, 7, ParseIntDefault("x", 7))
	assert.Equal(t, 3, ParseIntDefault("3", 7))
}

var pingHandler = Routes(func(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return DataResponse(c, http.StatusOK, "pong") })
	e.GET("/panic", func(c echo.Context) error { panic("boom") })
})

func TestServerMiddlewareAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer(pingHandler, nil, WithMetrics("/metrics", reg, reg))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/ping",status="200"} 1`)
}

func TestServerStartBindsAndStops(t *testing.T) {
	s := NewServer(pingHandler, nil, WithHost("127.0.0.1"), WithPort(0))
	require.NoError(t, s.Start())
	assert.NotEqual(t, "127.0.0.1:0", s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	taken := NewServer(pingHandler, nil, WithHost("127.0.0.1"), WithPort(s.ln.Addr().(*net.TCPAddr).Port))
	assert.Error(t, taken.Start())

	require.NoError(t, s.Stop(context.Background()))
}

func TestServerCORSPreflight(t *testing.T) {
	s := NewServer(pingHandler, nil)
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost)
}

func TestClientSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/echo":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "1", r.URL.Query().Get("v"))
			var in map[string]float64
			_ = json.NewDecoder(r.Body).Decode(&in)
			_ = json.NewEncoder(w).Encode(in)
		case "/predictions":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":400,"message":"Bad Request","data":[{"code":"ERR_BAD_REQUEST","field":"limit","message":"limit must be in 1..1000"}]}`))
		default:
			assert.Equal(t, "cardiorisk-client", r.Header.Get("User-Agent"))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("down\n"))
		}
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithTimeout(2*time.Second))

	var out map[string]float64
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      http.MethodPost,
		URL:         "/echo",
		QueryParams: map[string][]string{"v": {"1"}},
		Body:        map[string]float64{"age": 58},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 58.0, out["age"])

	err = c.SendAndParse(context.Background(), &RequestOptions{Method: http.MethodGet, URL: "/ready"}, nil)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Status)
	assert.Contains(t, appErr.Message, "down")
	assert.Equal(t, CodeUpstream, appErr.Code)

	err = c.GetJSON(context.Background(), "predictions", url.Values{"limit": {"0"}}, nil)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "limit", appErr.Field)
	assert.Equal(t, "limit must be in 1..1000", appErr.Message)
}
