package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRecorder(t *testing.T) {
	t.Run("implicit 200 on write", func(t *testing.T) {
		rec := httptest.NewRecorder()
		sr := newStatusRecorder(rec)

		n, err := sr.Write([]byte(`{"status":"ok"}`))

		assert.NoError(t, err)
		assert.Equal(t, 15, n)
		assert.Equal(t, http.StatusOK, sr.status)
		assert.Equal(t, 15, sr.bytes)
	})

	t.Run("first header wins", func(t *testing.T) {
		rec := httptest.NewRecorder()
		sr := newStatusRecorder(rec)

		sr.WriteHeader(http.StatusServiceUnavailable)
		sr.WriteHeader(http.StatusOK)
		_, _ = sr.Write([]byte("a"))
		_, _ = sr.Write([]byte("bc"))

		assert.Equal(t, http.StatusServiceUnavailable, sr.status)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, 3, sr.bytes)
	})

	t.Run("nested middleware shares one recorder", func(t *testing.T) {
		outer := newStatusRecorder(httptest.NewRecorder())
		inner := newStatusRecorder(outer)

		inner.WriteHeader(http.StatusAccepted)

		assert.Same(t, outer, inner)
		assert.Equal(t, http.StatusAccepted, outer.status)
	})

	t.Run("unwrap", func(t *testing.T) {
		rec := httptest.NewRecorder()
		assert.Equal(t, http.ResponseWriter(rec), newStatusRecorder(rec).Unwrap())
	})
}
