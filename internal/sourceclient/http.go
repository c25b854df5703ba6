package sourceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/rs/zerolog"
)

// resourcePaths maps each interface type to its API resource segment on
// the source service.
var resourcePaths = map[exception.InterfaceType]string{
	exception.InterfaceOrder:        "orders",
	exception.InterfaceCollection:   "collections",
	exception.InterfaceDistribution: "distributions",
}

// HTTPClient is the production source client. Each instance owns its base
// URL and a client-level timeout distinct from the orchestrator's overall
// attempt timeout. Transport failures surface as errors wrapping
// ErrSourceTimeout or ErrSourceUnavailable so callers can classify them;
// HTTP rejections from a reachable source come back as structured
// results.
type HTTPClient struct {
	interfaceType exception.InterfaceType
	baseURL       string
	httpClient    *http.Client
	logger        zerolog.Logger
}

// NewHTTPClient creates an HTTP source client for one interface type.
func NewHTTPClient(it exception.InterfaceType, baseURL string, timeout time.Duration, logger zerolog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		interfaceType: it,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger.With().Str("component", "source_client").Str("interface_type", string(it)).Logger(),
	}
}

func (c *HTTPClient) InterfaceType() exception.InterfaceType {
	return c.interfaceType
}

// GetOriginalPayload fetches the payload of the failed operation from the
// source service.
func (c *HTTPClient) GetOriginalPayload(ctx context.Context, ex *exception.Exception) (*PayloadResult, error) {
	url := fmt.Sprintf("%s/api/v1/%s/%s/payload", c.baseURL, c.resource(), ex.ExternalID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, ex)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("transaction_id", ex.TransactionID).Msg("Payload retrieval failed")
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read payload response: %v: %w", err, domainErrors.ErrPayloadNotRetrieved)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned %d retrieving payload: %w", resp.StatusCode, domainErrors.ErrPayloadNotRetrieved)
	}

	return &PayloadResult{Retrieved: true, Payload: json.RawMessage(body)}, nil
}

// SubmitRetry resubmits the original operation to the source service.
func (c *HTTPClient) SubmitRetry(ctx context.Context, ex *exception.Exception, payload json.RawMessage) (*SubmitResult, error) {
	url := fmt.Sprintf("%s/api/v1/%s/%s/retry", c.baseURL, c.resource(), ex.ExternalID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req, ex)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("transaction_id", ex.TransactionID).Msg("Retry submission failed")
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	result := &SubmitResult{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Success = true
	} else {
		result.ErrorMessage = fmt.Sprintf("source returned %d", resp.StatusCode)
	}
	return result, nil
}

func (c *HTTPClient) resource() string {
	if res, ok := resourcePaths[c.interfaceType]; ok {
		return res
	}
	return "operations"
}

// setHeaders propagates the correlation ID and retry metadata required by
// the source services.
func (c *HTTPClient) setHeaders(req *http.Request, ex *exception.Exception) {
	req.Header.Set(HeaderCorrelationID, ex.TransactionID)
	req.Header.Set(HeaderRetryAttempt, "true")
	req.Header.Set(HeaderRetryCount, strconv.Itoa(ex.RetryCount))
}

// transportError classifies request-level failures: the source never
// answered. Responses with a failure status are not transport errors.
func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domainErrors.ErrSourceTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domainErrors.ErrSourceTimeout
	}
	return fmt.Errorf("%v: %w", err, domainErrors.ErrSourceUnavailable)
}
