package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"maple-party/internal/logging"
	"maple-party/internal/notify"
)

type refreshResponse struct {
	CSRFToken    string `json:"csrfToken"`
	RefreshToken string `json:"refreshToken"`
}

func (c *Client) handleUnauthorized(ctx context.Context, spec requestSpec, resp *Response) (*Response, error) {
	if resp.Header.Get(HeaderRTR) != "Y" {
		c.logger.Info("session rejected without refresh; starting sign-in",
			logging.Field("method", spec.method),
			logging.Field("path", spec.path),
		)
		c.alert(ctx, notify.Message{Title: TitleSignIn, Text: MsgSignInRequired, Kind: notify.Warning})
		if c.login != nil {
			if err := c.login.Open(ctx); err != nil {
				c.logger.Warn("failed to start sign-in", logging.Field("error", err))
			}
		}
		return nil, ErrLoginRequired
	}

	if err := c.refreshTokens(ctx); err != nil {
		return nil, err
	}

	// Replay once. A second 401 is surfaced like any other failure.
	replayed, err := c.sendWithRetry(ctx, spec)
	if err != nil {
		return nil, c.transportFailure(ctx, spec, err)
	}
	return c.finish(ctx, spec, replayed)
}

// refreshTokens runs the refresh call, coalescing concurrent callers onto
// one in-flight request. The store is updated before it returns.
func (c *Client) refreshTokens(ctx context.Context) error {
	result := c.refreshes.DoChan("refresh", func() (any, error) {
		return nil, c.refreshOnce(context.WithoutCancel(ctx))
	})
	select {
	case res := <-result:
		if res.Shared {
			c.logger.Debug("joined in-flight token refresh")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) refreshOnce(ctx context.Context) error {
	current := c.tokens.Get()
	spec := requestSpec{method: http.MethodPost, path: c.endpoints.RefreshPath}
	WithHeader(HeaderCSRF, current.CSRF)(&spec.opts)
	WithHeader(HeaderRefresh, current.Refresh)(&spec.opts)

	c.logger.Debug("refreshing session tokens", logging.Field("refresh_token", current.Refresh))
	resp, err := c.send(ctx, spec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshFailed, c.transportFailure(ctx, spec, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %w", ErrRefreshFailed, c.statusFailure(ctx, spec, resp))
	}

	var next refreshResponse
	if err := resp.Decode(&next); err != nil {
		c.alert(ctx, notify.Message{Text: MsgUnprocessable, Kind: notify.Error})
		return fmt.Errorf("%w: decode response: %w", ErrRefreshFailed, err)
	}
	if next.CSRFToken == "" || next.RefreshToken == "" {
		c.alert(ctx, notify.Message{Text: MsgUnprocessable, Kind: notify.Error})
		return fmt.Errorf("%w: %w", ErrRefreshFailed, errors.New("response is missing tokens"))
	}
	if err := c.tokens.Replace(ctx, next.CSRFToken, next.RefreshToken); err != nil {
		return fmt.Errorf("%w: store tokens: %w", ErrRefreshFailed, err)
	}
	c.logger.Info("session tokens refreshed")
	return nil
}
