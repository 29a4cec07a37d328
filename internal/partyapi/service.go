// Package partyapi wraps the REST endpoints the client calls on behalf of the
// signed-in user and keeps the session containers in step with them.
package partyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"maple-party/internal/hangul"
	"maple-party/internal/httpclient"
	"maple-party/internal/logging"
	"maple-party/internal/session"
)

const (
	pathSignIn       = "api/sign/in"
	pathSignOut      = "api/sign/out"
	pathApplications = "v1/party/application"
	pathResume       = "v1/resume"
	pathParties      = "v1/party"
)

var ErrNotSignedIn = errors.New("sign-in required")

// TokenWriter is the part of the token store the service updates.
type TokenWriter interface {
	Replace(ctx context.Context, csrf, refresh string) error
	Clear(ctx context.Context) error
}

type Service struct {
	client  *httpclient.Client
	tokens  TokenWriter
	session *session.Session
	logger  *logging.Logger
}

func New(client *httpclient.Client, tokens TokenWriter, sess *session.Session, logger *logging.Logger) *Service {
	if client == nil || tokens == nil || sess == nil {
		panic("partyapi.New: client, tokens and session are required")
	}
	return &Service{client: client, tokens: tokens, session: sess, logger: logger.Named("partyapi")}
}

// Login exchanges the browser session cookie for API tokens, records the
// identity and loads the user's resume and applied parties.
func (s *Service) Login(ctx context.Context) (SignIn, error) {
	result, err := httpclient.DoJSON[SignIn](ctx, s.client, http.MethodPost, pathSignIn, nil)
	if err != nil {
		return SignIn{}, fmt.Errorf("sign in: %w", err)
	}
	if err := s.tokens.Replace(ctx, result.CSRFToken, result.RefreshToken); err != nil {
		return SignIn{}, err
	}
	if err := s.session.Identity.SignIn(ctx, result.UserName, result.UserUniqueID); err != nil {
		return SignIn{}, err
	}
	s.logger.Info("signed in", logging.Field("user", result.UserName))
	if err := s.Sync(ctx); err != nil {
		s.logger.Warn("failed to load profile after sign-in", logging.Field("error", err))
	}
	return result, nil
}

// Logout signs out on the server, then forgets the identity and tokens.
func (s *Service) Logout(ctx context.Context) error {
	if _, err := s.client.Do(ctx, http.MethodPost, pathSignOut, nil); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if err := s.session.Identity.SignOut(ctx); err != nil {
		return err
	}
	if err := s.session.Resume.Reset(ctx); err != nil {
		return err
	}
	return s.tokens.Clear(ctx)
}

// Sync reloads the resume and applied parties concurrently.
func (s *Service) Sync(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.FetchResume(gctx)
		return err
	})
	g.Go(func() error {
		_, err := s.FetchAppliedParties(gctx)
		return err
	})
	return g.Wait()
}

// FetchAppliedParties replaces the stored applied list with the server's.
// Signed-out users and failed requests leave an empty list.
func (s *Service) FetchAppliedParties(ctx context.Context) ([]int64, error) {
	if !s.session.Identity.Authenticated() {
		return nil, s.session.Resume.SetApplied(ctx, nil)
	}
	resp, err := httpclient.DoJSON[envelope[[]appliedParty]](ctx, s.client, http.MethodGet, pathApplications, nil)
	if err != nil {
		if saveErr := s.session.Resume.SetApplied(ctx, nil); saveErr != nil {
			s.logger.Warn("failed to clear applied parties", logging.Field("error", saveErr))
		}
		return nil, fmt.Errorf("fetch applied parties: %w", err)
	}
	ids := make([]int64, 0, len(resp.Data))
	for _, item := range resp.Data {
		ids = append(ids, item.PartyRecruitID)
	}
	if err := s.session.Resume.SetApplied(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// FetchResume loads the user's resume. A user without one gets nil.
func (s *Service) FetchResume(ctx context.Context) (*Resume, error) {
	if !s.session.Identity.Authenticated() {
		return nil, ErrNotSignedIn
	}
	resp, err := s.client.Do(ctx, http.MethodGet, pathResume, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch resume: %w", err)
	}
	var raw json.RawMessage
	if resp.StatusCode != http.StatusNoContent && len(bytes.TrimSpace(resp.Body)) > 0 {
		if err := resp.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode resume: %w", err)
		}
	}
	resume, err := decodeResume(raw)
	if err != nil {
		return nil, fmt.Errorf("decode resume: %w", err)
	}
	if err := s.session.Resume.SetDocument(ctx, raw); err != nil {
		return nil, err
	}
	return resume, nil
}

// CreateResume submits a new resume and returns the stored copy.
func (s *Service) CreateResume(ctx context.Context, contents string) (*Resume, error) {
	if !s.session.Identity.Authenticated() {
		return nil, ErrNotSignedIn
	}
	if _, err := s.client.Do(ctx, http.MethodPost, pathResume, resumeRequest{Contents: contents}); err != nil {
		return nil, fmt.Errorf("create resume: %w", err)
	}
	return s.FetchResume(ctx)
}

// FetchParties lists recruiting parties, optionally narrowed server side by
// keyword.
func (s *Service) FetchParties(ctx context.Context, keyword string) ([]Party, error) {
	query := map[string]string{"searchConditions": "ALL"}
	if kw := strings.TrimSpace(keyword); kw != "" {
		query["searchKeyword"] = kw
	}
	resp, err := httpclient.DoJSON[envelope[[]Party]](ctx, s.client, http.MethodGet, pathParties, query)
	if err != nil {
		return nil, fmt.Errorf("fetch parties: %w", err)
	}
	return resp.Data, nil
}

// FilterParties keeps the parties whose title or contents match query.
func FilterParties(parties []Party, query string) []Party {
	query = strings.TrimSpace(query)
	out := make([]Party, 0, len(parties))
	for _, p := range parties {
		if hangul.Search(p.Article.Title, query) || hangul.Search(p.Article.Contents, query) {
			out = append(out, p)
		}
	}
	return out
}
