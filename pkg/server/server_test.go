package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/scttfrdmn/genomicarray-go/pkg/genomicarray"
	"github.com/scttfrdmn/genomicarray-go/pkg/genomics"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()

	cfg := genomicarray.NewConfig()
	cfg.Cache = false
	cfg.Conditions = []string{"ctrl", "treated"}
	cfg.Logger = logger

	lengths := genomics.ChromLengths{"chr1": 20}
	store, err := genomicarray.NewMemoryStore[float64](lengths, cfg, func(s genomicarray.Store[float64], _ ...any) error {
		if err := s.Write(genomics.Interval{Chrom: "chr1", Start: 0, End: 3, Strand: genomics.StrandForward}, 1, 2); err != nil {
			return err
		}
		return s.Write(genomics.Interval{Chrom: "chr1", Start: 1, End: 2, Strand: genomics.StrandReverse}, 0, 5)
	})
	require.NoError(t, err)
	return NewRouter[float64](store, logger)
}

func get(router *gin.Engine, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", url, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestInfoRoute(t *testing.T) {
	w := get(setupRouter(t), "/info")
	require.Equal(t, 200, w.Code)

	var info InfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "in_memory", info.Kind)
	assert.True(t, info.Stranded)
	assert.Equal(t, []string{"ctrl", "treated"}, info.Conditions)
	require.Len(t, info.Chromosomes, 1)
	assert.Equal(t, genomicarray.Shape{Rows: 21, Strands: 2, Conditions: 2}, info.Chromosomes[0].Shape)
}

func TestValuesRoute(t *testing.T) {
	router := setupRouter(t)

	w := get(router, "/values?region=chr1:0-4&condition=treated")
	require.Equal(t, 200, w.Code)
	var resp ValuesResponse[float64]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "treated", resp.Condition)
	assert.Equal(t, []float64{2, 2, 2, 0}, resp.Values)

	w = get(router, "/values?region=chr1:0-4:-")
	require.Equal(t, 200, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ctrl", resp.Condition)
	assert.Equal(t, []float64{0, 5, 0, 0}, resp.Values)
}

func TestBlockRoute(t *testing.T) {
	w := get(setupRouter(t), "/block?region=chr1:1-2")
	require.Equal(t, 200, w.Code)

	var resp BlockResponse[float64]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, genomicarray.Shape{Rows: 1, Strands: 2, Conditions: 2}, resp.Shape)
	// (strand, condition): (+, ctrl) (+, treated) (-, ctrl) (-, treated)
	assert.Equal(t, []float64{0, 2, 5, 0}, resp.Data)
}

func TestQueryErrors(t *testing.T) {
	router := setupRouter(t)
	testCases := []struct {
		url  string
		code int
	}{
		{"/values?region=chrX:0-4", http.StatusNotFound},
		{"/values?region=chr1:0-4&condition=7", http.StatusBadRequest},
		{"/values?region=chr1:0-4&condition=missing", http.StatusBadRequest},
		{"/values?region=chr1", http.StatusBadRequest},
		{"/values", http.StatusBadRequest},
		{"/block?region=chr1:5-1", http.StatusBadRequest},
	}
	for _, tc := range testCases {
		w := get(router, tc.url)
		assert.Equal(t, tc.code, w.Code, tc.url)
	}
}
