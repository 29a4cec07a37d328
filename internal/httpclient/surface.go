package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"maple-party/internal/logging"
	"maple-party/internal/notify"
)

const (
	MsgNetworkError     = "A network error occurred."
	MsgUnexpectedServer = "Received an unexpected response from the server."
	MsgEmptyResponse    = "The server response was empty."
	MsgUnprocessable    = "Something went wrong while processing the server response."
	MsgUnknownError     = "An unknown error occurred."
	MsgSignInRequired   = "Please sign in to continue."
	TitleSignIn         = "Sign-in required"
)

// errorMessage picks the text shown for a failed response.
func errorMessage(resp *Response) string {
	if resp.StatusCode >= 500 {
		return MsgUnexpectedServer
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return MsgEmptyResponse
	}
	var decoded any
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return MsgUnprocessable
	}
	if message, ok := messageField(decoded); ok {
		return message
	}
	return MsgUnknownError
}

func messageField(decoded any) (string, bool) {
	object, ok := decoded.(map[string]any)
	if !ok {
		return "", false
	}
	message, ok := object["message"].(string)
	if !ok || strings.TrimSpace(message) == "" {
		return "", false
	}
	return message, true
}

func (c *Client) statusFailure(ctx context.Context, spec requestSpec, resp *Response) error {
	message := errorMessage(resp)
	c.logger.Warn("request rejected",
		logging.Field("method", spec.method),
		logging.Field("path", spec.path),
		logging.Field("status", resp.Status),
		logging.Field("response", logging.FormatHTTPPayload(resp.Body)),
	)
	c.alert(ctx, notify.Message{Text: message, Kind: notify.Error})
	return &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status, Message: message}
}

func (c *Client) transportFailure(ctx context.Context, spec requestSpec, err error) error {
	if ctx.Err() != nil {
		return err
	}
	c.logger.Warn("request failed",
		logging.Field("method", spec.method),
		logging.Field("path", spec.path),
		logging.Field("error", err),
	)
	c.alert(ctx, notify.Message{Text: MsgNetworkError, Kind: notify.Error})
	return fmt.Errorf("%s %s: %w", spec.method, spec.path, err)
}

// surfaceSuccess shows the message of a 2xx JSON body without holding up the
// caller.
func (c *Client) surfaceSuccess(ctx context.Context, resp *Response) {
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return
	}
	var decoded any
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		if len(bytes.TrimSpace(resp.Body)) > 0 {
			c.logger.Debug("failed to parse success response", logging.Field("error", err))
		}
		return
	}
	message, ok := messageField(decoded)
	if !ok {
		return
	}
	go c.alert(context.WithoutCancel(ctx), notify.Message{Text: message, Kind: notify.Success})
}

func (c *Client) alert(ctx context.Context, msg notify.Message) {
	if _, err := c.notifier.Alert(ctx, msg); err != nil {
		c.logger.Debug("notification not delivered", logging.Field("error", err))
	}
}
