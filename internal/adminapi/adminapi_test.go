package adminapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/adminapi"
	"github.com/arc-self/infosweep/internal/matcher"
	"github.com/arc-self/infosweep/internal/queue"
	"github.com/arc-self/infosweep/internal/ruleengine"
)

type fakeReloader struct {
	err    error
	called bool
}

func (f *fakeReloader) Reload(ctx context.Context) error {
	f.called = true
	return f.err
}

func newTestConsumer(t *testing.T) *matcher.Consumer {
	t.Helper()
	engine, err := ruleengine.Compile(nil, nil)
	require.NoError(t, err)
	return matcher.NewConsumer(queue.NewSimple(1), queue.NewSimple(1), engine, zap.NewNop())
}

func newTestServer(t *testing.T, reloader adminapi.RuleReloader) (*adminapi.Server, *matcher.Consumer, context.CancelFunc) {
	t.Helper()
	consumer := newTestConsumer(t)
	_, cancel := context.WithCancel(context.Background())
	srv := adminapi.New(consumer, reloader, zap.NewNop(), cancel)
	return srv, consumer, cancel
}

func TestHandleHealthz(t *testing.T) {
	srv, _, cancel := newTestServer(t, &fakeReloader{})
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"state":"idle"`)
}

func TestHandleRulesReload_Success(t *testing.T) {
	reloader := &fakeReloader{}
	srv, _, cancel := newTestServer(t, reloader)
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/rules/reload", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, reloader.called)
}

func TestHandleRulesReload_Failure(t *testing.T) {
	reloader := &fakeReloader{err: assertErr{"boom"}}
	srv, _, cancel := newTestServer(t, reloader)
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/rules/reload", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }

func TestHandleShutdown_StopsConsumerAndInvokesCallback(t *testing.T) {
	srv, consumer, cancel := newTestServer(t, &fakeReloader{})
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/shutdown", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		_ = consumer.Run(context.Background())
		close(done)
	}()

	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not terminate after /shutdown")
	}
}
