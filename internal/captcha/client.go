package captcha

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/srikarv/eduinsights/pkg/logger"
)

// ErrService indicates the OCR service was unreachable, timed out, or
// returned a non-200 response. Callers retry with a refreshed captcha.
var ErrService = errors.New("captcha service unavailable")

// ExpectedLength is the number of characters in a portal captcha.
// The client itself does not enforce it; a caller that receives a
// shorter or longer text refreshes the captcha image and re-solves.
const ExpectedLength = 6

// Client posts captcha screenshots to the truecaptcha OCR endpoint.
type Client struct {
	endpoint   string
	userID     string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// Config holds captcha client configuration
type Config struct {
	Endpoint string
	UserID   string
	APIKey   string
	Timeout  time.Duration
}

// NewClient creates a new OCR service client
func NewClient(cfg Config, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		userID:   cfg.UserID,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.WithComponent("captcha-client"),
	}
}

type solveRequest struct {
	UserID string `json:"userid"`
	APIKey string `json:"apikey"`
	Data   string `json:"data"`
	Tag    string `json:"tag"`
	Mode   string `json:"mode"`
	LenStr string `json:"len_str"`
}

type solveResponse struct {
	Result string `json:"result"`
}

// Solve submits a PNG screenshot of the captcha image and returns the
// recognized text. tag labels the solve for the OCR service's logs.
func (c *Client) Solve(ctx context.Context, image []byte, tag string) (string, error) {
	payload := solveRequest{
		UserID: c.userID,
		APIKey: c.apiKey,
		Data:   base64.StdEncoding.EncodeToString(image),
		Tag:    tag,
		Mode:   "auto",
		LenStr: fmt.Sprintf("%d", ExpectedLength),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal solve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build solve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrService, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ErrService, err)
	}

	var solved solveResponse
	if err := json.Unmarshal(data, &solved); err != nil {
		return "", fmt.Errorf("%w: decoding body: %v", ErrService, err)
	}

	c.logger.Debugf("Solved captcha for tag %s (%d chars)", tag, len(solved.Result))
	return solved.Result, nil
}
