package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/require"

	"go-metrics-pipeline/internal/model"
)

const observedCSV = "id,category,value\n1,a,2.0\n2,a,\n3,b,5.0\n4,b,12.3\n5,c,9.5\n"

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "observed.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadCSV(t *testing.T, pathOrURL string, chunk int) []arrow.Record {
	t.Helper()
	batches, err := LoadCSV(context.Background(), pathOrURL, chunk)
	require.NoError(t, err)
	t.Cleanup(func() { releaseAll(batches) })
	return batches
}

func TestLoadCSV(t *testing.T) {
	batches := loadCSV(t, writeCSV(t, observedCSV), 0)
	require.Len(t, batches, 1)

	rec := batches[0]
	require.Equal(t, []string{"id", "category", "value"}, fieldNames(rec.Schema()))
	require.EqualValues(t, 5, rec.NumRows())
	require.Equal(t, arrow.INT64, rec.Column(0).DataType().ID())
	require.Equal(t, arrow.STRING, rec.Column(1).DataType().ID())
	require.Equal(t, arrow.FLOAT64, rec.Column(2).DataType().ID())

	values := rec.Column(2).(*array.Float64)
	require.Equal(t, 1, values.NullN())
	require.True(t, values.IsNull(1))
}

func TestLoadCSVChunks(t *testing.T) {
	batches := loadCSV(t, writeCSV(t, observedCSV), 2)

	var sizes []int64
	for _, rec := range batches {
		sizes = append(sizes, rec.NumRows())
	}
	require.Equal(t, []int64{2, 2, 1}, sizes)
}

func TestLoadCSVThenCountNull(t *testing.T) {
	batches := loadCSV(t, writeCSV(t, observedCSV), 2)
	out := execute(t, newTestExecutor(0), batches, NewBuiltInMetricsBuilder().CountNull("value"))
	require.Equal(t, int64(1), out[0].Column(0).(*array.Int64).Value(0))
}

func TestLoadCSVOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/observed.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(observedCSV))
	}))
	defer srv.Close()

	batches := loadCSV(t, srv.URL+"/observed.csv", 0)
	require.EqualValues(t, 5, batches[0].NumRows())

	_, err := LoadCSV(context.Background(), srv.URL+"/missing.csv", 0)
	require.ErrorContains(t, err, "404")
}

func TestLoadCSVErrors(t *testing.T) {
	_, err := LoadCSV(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), 0)
	require.Error(t, err)

	_, err = LoadCSV(context.Background(), writeCSV(t, "id,value\n"), 0)
	require.True(t, errors.Is(err, model.ErrEmptyInput), "got %v", err)

	_, err = LoadSource(context.Background(), model.Source{Type: "parquet", URL: "x"}, 0)
	require.ErrorContains(t, err, "unknown source type")
}
