package checkbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ansel1/merry"
	"github.com/rs/zerolog/log"
)

// caller is what the workflow layers see of the transport. Tests substitute
// their own implementation to count and script calls.
type caller interface {
	call(ctx context.Context, method, path string, headers map[string]string, body, out any) error
}

type transport struct {
	cfg        Config
	httpClient *http.Client
}

func newTransport(cfg Config) *transport {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &transport{cfg: cfg, httpClient: httpClient}
}

// call runs a single API request, retrying network and 5xx failures with
// exponential backoff. 4xx responses and unparseable bodies are never
// retried. The request body is marshalled once, so every attempt sends the
// same payload.
func (t *transport) call(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return merry.Wrap(err)
		}
	}
	url := t.cfg.APIURL + t.cfg.APIVersion + "/" + strings.TrimPrefix(path, "/")

	for attempt := 0; ; attempt++ {
		err := t.once(ctx, method, url, headers, payload, out)
		if err == nil {
			return nil
		}
		if !merry.Is(err, ErrTransport) || attempt >= t.cfg.MaxRetries {
			return err
		}

		delay := t.cfg.RetryBackoff << uint(attempt)
		log.Debug().
			Err(err).Int("attempt", attempt+1).Dur("delay", delay).
			Str("method", method).Str("path", path).
			Msg("checkbox: retrying after transport failure")
		select {
		case <-ctx.Done():
			return ErrTransport.Here().Append(ctx.Err().Error())
		case <-time.After(delay):
		}
	}
}

func (t *transport) once(ctx context.Context, method, url string, headers map[string]string, payload []byte, out any) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return merry.Wrap(err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Name", t.cfg.ClientName)
	req.Header.Set("X-Client-Version", t.cfg.ClientVersion)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return ErrTransport.Here().Append(err.Error())
	}
	buf, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return ErrTransport.Here().Append(err.Error())
	}

	// Response bodies are not logged: signin responses carry the token.
	log.Debug().
		Int("code", resp.StatusCode).Str("status", resp.Status).
		Str("method", method).Str("url", url).
		Msg("checkbox: response")

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(buf, out); err != nil {
			return ErrProtocol.Here().Append(err.Error())
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return apiFailure(ErrAuth, resp.StatusCode, buf)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return apiFailure(ErrRejected, resp.StatusCode, buf)
	default:
		return apiFailure(ErrTransport, resp.StatusCode, buf)
	}
}

func apiFailure(sentinel merry.Error, status int, body []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return sentinel.Here().Append(apiErr.Error()).WithValue(apiErrorKey, apiErr)
}
