package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/docembed/internal/core"
	"github.com/markdave123-py/docembed/internal/models"
)

// ErrEmptyExtraction is reported when a service answers successfully but with no text.
var ErrEmptyExtraction = errors.New("extracted text is empty")

var (
	_ core.DocumentExtractor = (*TikaExtractor)(nil)
	_ core.DocumentExtractor = (*DocconvExtractor)(nil)
)

// TikaExtractor sends each file to an Apache Tika server and reads back plain text.
type TikaExtractor struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	logger   *slog.Logger
}

// NewTikaExtractor targets endpoint (e.g. http://localhost:9998/tika). The
// client is shared with the other outbound callers; timeout bounds one file.
func NewTikaExtractor(endpoint string, client *http.Client, timeout time.Duration) *TikaExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &TikaExtractor{
		endpoint: endpoint,
		client:   client,
		timeout:  timeout,
		logger:   slog.Default().With("component", "tika"),
	}
}

// Extract streams the file body to Tika. Every failure, including a non-2xx
// answer, is returned inside the result.
func (e *TikaExtractor) Extract(ctx context.Context, file models.SourceFile) models.ExtractionResult {
	text, err := e.extract(ctx, file)
	if err != nil {
		return models.ExtractionResult{File: file, Err: err}
	}
	return models.ExtractionResult{File: file, Content: text}
}

func (e *TikaExtractor) extract(ctx context.Context, file models.SourceFile) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	f, err := os.Open(file.Path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.endpoint, f)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.ContentLength = file.Size
	req.Header.Set("Accept", "text/plain")
	if file.ContentType != "" {
		req.Header.Set("Content-Type", file.ContentType)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tika request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("tika returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read tika response: %w", err)
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", ErrEmptyExtraction
	}

	e.logger.Debug("extracted", "path", file.Path, "bytes", len(body), "took", time.Since(start))
	return string(body), nil
}

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// Extract converts the file in-process. docconv is not context aware, so ctx is
// only checked before and after the conversion.
func (e *DocconvExtractor) Extract(ctx context.Context, file models.SourceFile) models.ExtractionResult {
	fail := func(err error) models.ExtractionResult {
		return models.ExtractionResult{File: file, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	f, err := os.Open(file.Path)
	if err != nil {
		return fail(fmt.Errorf("open file: %w", err))
	}
	defer f.Close()

	res, err := docconv.Convert(f, file.ContentType, e.useReadability)
	if err != nil {
		return fail(fmt.Errorf("docconv %s: %w", file.ContentType, err))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if strings.TrimSpace(res.Body) == "" {
		return fail(ErrEmptyExtraction)
	}
	return models.ExtractionResult{File: file, Content: res.Body}
}
