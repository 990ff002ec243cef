package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

const (
	DefaultTimeout = 30 * time.Second
	maxBodyInError = 512
)

// Client calls the remote cervix classification endpoint.
type Client struct {
	http     *resty.Client
	endpoint string
	logger   *zap.Logger
}

// New creates a classifier client. The endpoint is the full predict URL.
func New(endpoint string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// no retries: a retried upload could produce duplicate upstream work
	hc := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: hc, endpoint: endpoint, logger: logger}
}

// Classify posts the image as multipart field "file" and decodes the prediction.
func (c *Client) Classify(ctx context.Context, img screening.Image) (screening.RawPrediction, error) {
	var out screening.RawPrediction

	filename := img.Filename
	if filename == "" {
		filename = "cervix.jpg"
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("file", filename, contentType, bytes.NewReader(img.Data)).
		Post(c.endpoint)
	if err != nil {
		c.logger.Warn("classifier call failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		if isTimeout(err) {
			return out, fmt.Errorf("%w: %v", screening.ErrClassificationTimeout, err)
		}
		if errors.Is(err, context.Canceled) {
			return out, err
		}
		return out, fmt.Errorf("%w: %v", screening.ErrClassificationFailed, err)
	}

	if resp.IsError() {
		body := truncate(strings.TrimSpace(resp.String()))
		c.logger.Warn("classifier returned error status",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", body),
		)
		return out, &screening.UpstreamError{StatusCode: resp.StatusCode(), Body: body}
	}

	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return out, fmt.Errorf("%w: decode response: %v", screening.ErrClassificationFailed, err)
	}

	c.logger.Debug("classifier responded",
		zap.String("prediction", out.Prediction),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func truncate(s string) string {
	if len(s) <= maxBodyInError {
		return s
	}
	// mundur ke awal rune supaya UTF-8 tidak terpotong
	cut := maxBodyInError
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
