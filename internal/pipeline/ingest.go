package pipeline

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"

	"go-metrics-pipeline/internal/model"
)

// LoadSource reads the observed batches a run is computed over.
func LoadSource(ctx context.Context, source model.Source, chunk int) ([]arrow.Record, error) {
	switch strings.ToLower(source.Type) {
	case "csv", "":
		return LoadCSV(ctx, source.URL, chunk)
	}
	return nil, errors.Errorf("unknown source type: %s", source.Type)
}

// LoadCSV reads a CSV file with a header row from a local path or an
// http(s) URL. Column types are inferred from the data and empty fields
// are null. Each returned record holds at most chunk rows; chunk <= 0
// reads everything into one record. The caller releases the records.
func LoadCSV(ctx context.Context, pathOrURL string, chunk int) ([]arrow.Record, error) {
	body, err := openSource(ctx, pathOrURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if chunk <= 0 {
		chunk = -1
	}
	r := csv.NewInferringReader(body,
		csv.WithAllocator(memory.DefaultAllocator),
		csv.WithHeader(true),
		csv.WithNullReader(true, ""),
		csv.WithChunk(chunk),
	)
	defer r.Release()

	var batches []arrow.Record
	for r.Next() {
		if err := ctx.Err(); err != nil {
			releaseAll(batches)
			return nil, err
		}
		rec := r.Record()
		rec.Retain()
		batches = append(batches, rec)
	}
	if err := r.Err(); err != nil {
		releaseAll(batches)
		return nil, errors.Wrapf(err, "read csv %s", pathOrURL)
	}
	if len(batches) == 0 {
		return nil, errors.Wrapf(model.ErrEmptyInput, "csv %s has no rows", pathOrURL)
	}
	return batches, nil
}

func openSource(ctx context.Context, pathOrURL string) (io.ReadCloser, error) {
	if !strings.HasPrefix(pathOrURL, "http://") && !strings.HasPrefix(pathOrURL, "https://") {
		f, err := os.Open(pathOrURL)
		if err != nil {
			return nil, errors.Wrap(err, "open csv file")
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pathOrURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build csv request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "get csv")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("get csv %s: unexpected status %s", pathOrURL, resp.Status)
	}
	return resp.Body, nil
}
