// ABOUTME: The trigger_webhook action handler: HMAC signing, SSRF-safe client, response discard.
// ABOUTME: The http.Client is injected so tests can swap the safeurl client for httptest.
package actions

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/numzhq/automation/internal/engine"
)

// deniedHeaders are param-supplied header keys that rules must not override.
var deniedHeaders = map[string]bool{
	"host":                   true,
	"content-type":           true,
	"content-length":         true,
	"transfer-encoding":      true,
	"connection":             true,
	"x-automation-timestamp": true,
	"x-automation-signature": true,
}

// eventName pulls the trigger event out of the trigger data. The firing
// surface stamps it under "event" before dispatch.
func eventName(tc engine.TriggerContext) string {
	if v, ok := tc.Resolve("event"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// NewWebhookHandler returns the handler for the trigger_webhook action type.
// The payload is the full trigger data plus the event name; it is signed with
// HMAC-SHA256 over "timestamp.body" using signingSecret. Params: url
// (required), header_* entries become request headers after denylist
// filtering.
func NewWebhookHandler(client *http.Client, signingSecret string) engine.Handler {
	return func(ctx context.Context, params map[string]string, tc engine.TriggerContext) error {
		url := strings.TrimSpace(params["url"])
		if url == "" {
			return errors.New("trigger_webhook: url param is required")
		}

		payload, err := json.Marshal(map[string]any{
			"event":     eventName(tc),
			"data":      map[string]any(tc),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("trigger_webhook: marshal payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("trigger_webhook: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		// Apply rule-supplied headers, skipping denied keys.
		for k, v := range params {
			name, ok := strings.CutPrefix(k, "header_")
			if !ok || deniedHeaders[strings.ToLower(name)] {
				continue
			}
			req.Header.Set(name, v)
		}

		// HMAC-SHA256 over "timestamp.body".
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		mac := hmac.New(sha256.New, []byte(signingSecret))
		mac.Write([]byte(ts + "." + string(payload)))
		req.Header.Set("X-Automation-Timestamp", ts)
		req.Header.Set("X-Automation-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))

		resp, err := client.Do(req) //nolint:gosec // G107: SSRF is enforced architecturally by the safeurl-wrapped client injected at startup
		if err != nil {
			return fmt.Errorf("trigger_webhook: POST: %w", err)
		}
		defer resp.Body.Close() //nolint:errcheck
		// Discard response body to allow connection reuse; cap at 4 KiB.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck,gosec // G104: discard errors are irrelevant for io.Discard writes

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("trigger_webhook: unexpected status %d", resp.StatusCode)
		}
		return nil
	}
}
