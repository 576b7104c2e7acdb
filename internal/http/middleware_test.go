package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) HasElevatedRole(ctx context.Context, callerID string) (bool, error) {
	args := m.Called(ctx, callerID)
	return args.Bool(0), args.Error(1)
}

func TestRequireCaller(t *testing.T) {
	s := &Server{log: logger.Mock().With().Logger()}

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		s.RequireCaller(next).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), CallerHeader)
	})

	t.Run("caller stored in context", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(CallerHeader, " acc-1 ")
		rr := httptest.NewRecorder()
		s.RequireCaller(next).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "acc-1", seen)
	})
}

func TestRequireElevated(t *testing.T) {
	authz := new(MockAuthorizer)
	s := &Server{log: logger.Mock().With().Logger(), authz: authz}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	withCaller := func(caller string) *http.Request {
		req := httptest.NewRequest("GET", "/", nil)
		return req.WithContext(context.WithValue(req.Context(), CallerContextKey, caller))
	}

	authz.On("HasElevatedRole", mock.Anything, "mod").Return(true, nil)
	authz.On("HasElevatedRole", mock.Anything, "alice").Return(false, nil)
	authz.On("HasElevatedRole", mock.Anything, "broken").Return(false, errors.New("database is locked"))

	rr := httptest.NewRecorder()
	s.RequireElevated(next).ServeHTTP(rr, withCaller("mod"))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	rr = httptest.NewRecorder()
	s.RequireElevated(next).ServeHTTP(rr, withCaller("alice"))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	s.RequireElevated(next).ServeHTTP(rr, withCaller("broken"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	authz.AssertExpectations(t)
}

func TestLoggerMiddleware(t *testing.T) {
	var buffer strings.Builder
	testLogger := zerolog.New(&buffer).Level(zerolog.DebugLevel)

	handlerCalled := false
	mw := LoggerMiddleware(&testLogger)
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	mw(testHandler).ServeHTTP(rr, httptest.NewRequest("GET", "/testlog", nil))

	assert.True(t, handlerCalled)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, buffer.String(), `"path":"/testlog"`)
}

func TestLoggerMiddleware_RecoversPanic(t *testing.T) {
	var buffer strings.Builder
	testLogger := zerolog.New(&buffer)

	mw := LoggerMiddleware(&testLogger)
	rr := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})).ServeHTTP(rr, httptest.NewRequest("GET", "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, buffer.String(), "Unhandled panic recovered by middleware")
}
