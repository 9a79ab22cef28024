package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mfs "github.com/CageChen/clarvfs/internal/fs"
	"github.com/CageChen/clarvfs/internal/host"
)

func newTestRouter(t *testing.T) (http.Handler, *mfs.LocalFS, *WSHandler) {
	t.Helper()
	m := mfs.NewMemFS("/proj")
	require.NoError(t, m.WriteFile("/proj/Clarinet.toml", []byte("[project]\nname = \"counter\"\n")))
	require.NoError(t, m.WriteFile("/proj/contracts/counter.clar", []byte("(ok u1)")))

	ws := NewWSHandler(host.NewDispatcher(m, nil), nil)
	return NewRouter(m, ws), m, ws
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetExists(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := get(t, r, "/api/exists/proj/contracts/counter.clar")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ExistsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Exists)
	assert.Equal(t, "/proj/contracts/counter.clar", resp.Path)
	assert.Equal(t, int64(7), resp.Size)
	assert.NotNil(t, resp.ModTime)

	rec = get(t, r, "/api/exists/proj/contracts/missing.clar")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = ExistsResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Exists)
	assert.Nil(t, resp.ModTime)

	rec = get(t, r, "/api/exists/etc/passwd")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetRaw(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := get(t, r, "/api/raw/proj/Clarinet.toml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[project]\nname = \"counter\"\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	tests := []struct {
		target string
		code   int
	}{
		{"/api/raw/proj/nope.clar", http.StatusNotFound},
		{"/api/raw/proj/contracts", http.StatusBadRequest},
		{"/api/raw/etc/passwd", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.code, get(t, r, tt.target).Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/raw/proj/Clarinet.toml", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetStatus(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := get(t, r, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusResponse{Root: "/proj", Clients: 0}, resp)
}
