package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantheonmod/pantheon/internal/engine"
	"github.com/pantheonmod/pantheon/pkg/prayer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubPrayerService struct {
	resp *prayer.Response
	err  error
	last prayer.Request
}

func (s *stubPrayerService) SubmitPrayer(ctx context.Context, req prayer.Request) (*prayer.Response, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func postPrayer(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/prayer", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPrayerHandler_Success(t *testing.T) {
	svc := &stubPrayerService{resp: &prayer.Response{
		InteractionID:     "int-1",
		DisplayText:       "Be at peace.",
		ActionsDispatched: 1,
	}}
	h := NewPrayerHandler(svc, testLogger())

	w := postPrayer(t, h, prayer.Request{
		RequesterID: "steve",
		DeityID:     "grove:sylvan",
		PrayerType:  "blessing",
		Message:     "bless me",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp prayer.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Be at peace.", resp.DisplayText)
	assert.Equal(t, 1, resp.ActionsDispatched)
	assert.Equal(t, "steve", svc.last.RequesterID)
}

func TestPrayerHandler_UnknownDeityIs404(t *testing.T) {
	svc := &stubPrayerService{err: engine.ErrUnknownDeity}
	h := NewPrayerHandler(svc, testLogger())

	w := postPrayer(t, h, prayer.Request{
		RequesterID: "steve", DeityID: "sea:maelka", PrayerType: "blessing", Message: "hi",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	svc.err = engine.ErrUnknownPrayerType
	w = postPrayer(t, h, prayer.Request{
		RequesterID: "steve", DeityID: "grove:sylvan", PrayerType: "storm", Message: "hi",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrayerHandler_BadRequests(t *testing.T) {
	svc := &stubPrayerService{err: errors.New("requester_id cannot be empty")}
	h := NewPrayerHandler(svc, testLogger())

	w := postPrayer(t, h, prayer.Request{DeityID: "grove:sylvan", PrayerType: "blessing"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
	assert.NotEmpty(t, errResp.Error)

	req := httptest.NewRequest(http.MethodPost, "/v1/prayer", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrayerHandler_MethodNotAllowed(t *testing.T) {
	h := NewPrayerHandler(&stubPrayerService{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/prayer", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
