package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/veridata/consent-server-go/internal/config"
	apperrors "github.com/veridata/consent-server-go/internal/errors"
	"github.com/veridata/consent-server-go/internal/model"
	"github.com/veridata/consent-server-go/internal/pkce"
	"github.com/veridata/consent-server-go/internal/util"
)

// providerEndpoints holds the authorize/token/profile URLs per provider.
// Overridden in tests to point at httptest servers.
type providerEndpoints struct {
	githubAuthorize string
	githubToken     string
	githubUser      string

	googleAuthorize string
	googleToken     string
	googleUser      string

	twitterAuthorize string
	twitterToken     string
	twitterUser      string
}

var defaultEndpoints = providerEndpoints{
	githubAuthorize: "https://github.com/login/oauth/authorize",
	githubToken:     "https://github.com/login/oauth/access_token",
	githubUser:      "https://api.github.com/user",

	googleAuthorize: "https://accounts.google.com/o/oauth2/v2/auth",
	googleToken:     "https://oauth2.googleapis.com/token",
	googleUser:      "https://www.googleapis.com/oauth2/v2/userinfo",

	twitterAuthorize: "https://twitter.com/i/oauth2/authorize",
	twitterToken:     "https://api.twitter.com/2/oauth2/token",
	twitterUser:      "https://api.twitter.com/2/users/me",
}

// CallbackParams carries everything the provider redirect delivered plus the
// flow state that survived the round-trip on the client.
type CallbackParams struct {
	Code       string
	State      string
	ErrorParam string
	// FlowID identifies the PKCE verifier stored when the authorization URL
	// was built. Empty for providers without PKCE.
	FlowID string
	// RedirectURI must be byte-identical to the one used when building the
	// authorization URL; providers validate exact match.
	RedirectURI string
}

// AuthURL is the result of building an authorization URL. FlowID is set only
// for PKCE providers and travels back to the client as a scoped cookie.
type AuthURL struct {
	URL    string
	FlowID string
}

// OAuthService implements the per-provider authorization-code flows. Each
// flow instance is independent: nothing is shared between concurrent flows
// except the PKCE store, and no step is ever retried (authorization codes
// and verifiers are single-use).
type OAuthService struct {
	cfg       *config.Config
	pkceStore pkce.Store
	client    *http.Client
	endpoints providerEndpoints
}

func NewOAuthService(cfg *config.Config, pkceStore pkce.Store) *OAuthService {
	return &OAuthService{
		cfg:       cfg,
		pkceStore: pkceStore,
		client:    &http.Client{Timeout: cfg.ProviderTimeout()},
		endpoints: defaultEndpoints,
	}
}

// GetAuthURL builds the provider authorization URL for the given
// redirect URI. For Twitter/X it also generates a PKCE verifier/challenge
// pair and persists the verifier for the lifetime of the round-trip.
func (s *OAuthService) GetAuthURL(ctx context.Context, provider, redirectURI string) (*AuthURL, error) {
	switch provider {
	case model.OAuthProviderGitHub:
		return s.buildGitHubAuthURL(redirectURI)
	case model.OAuthProviderGoogle:
		return s.buildGoogleAuthURL(redirectURI)
	case model.OAuthProviderTwitter:
		return s.buildTwitterAuthURL(ctx, redirectURI)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// HandleCallback runs the callback half of the flow: provider error check,
// code presence, PKCE verifier consumption, token exchange, profile fetch.
// Every failure is terminal for this flow instance.
func (s *OAuthService) HandleCallback(ctx context.Context, provider string, params CallbackParams) (*model.NormalizedProfile, error) {
	if params.ErrorParam != "" {
		log.Warn().Str("error", params.ErrorParam).Str("provider", provider).Msg("OAuth error from provider")
		return nil, apperrors.ProviderDenied(params.ErrorParam)
	}

	if params.Code == "" {
		return nil, apperrors.MissingCode()
	}

	switch provider {
	case model.OAuthProviderGitHub:
		return s.exchangeGitHubCode(ctx, params)
	case model.OAuthProviderGoogle:
		return s.exchangeGoogleCode(ctx, params)
	case model.OAuthProviderTwitter:
		verifier, err := s.pkceStore.TakeOnce(ctx, params.FlowID)
		if params.FlowID == "" || errors.Is(err, pkce.ErrNotFound) {
			// The verifier is gone: expired, never stored, or already
			// consumed by an earlier callback. The user must restart.
			return nil, apperrors.SessionExpired()
		}
		if err != nil {
			return nil, err
		}
		return s.exchangeTwitterCode(ctx, params, verifier)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// GitHub

func (s *OAuthService) buildGitHubAuthURL(redirectURI string) (*AuthURL, error) {
	if s.cfg.GitHubClientID == "" {
		return nil, apperrors.ProviderNotConfigured("GitHub")
	}

	params := url.Values{
		"client_id":    {s.cfg.GitHubClientID},
		"redirect_uri": {redirectURI},
		"scope":        {"user:email"},
	}

	return &AuthURL{URL: s.endpoints.githubAuthorize + "?" + params.Encode()}, nil
}

func (s *OAuthService) exchangeGitHubCode(ctx context.Context, params CallbackParams) (*model.NormalizedProfile, error) {
	if s.cfg.GitHubClientID == "" || s.cfg.GitHubClientSecret == "" {
		return nil, apperrors.ProviderNotConfigured("GitHub")
	}

	// GitHub's token endpoint takes JSON and returns JSON when asked.
	payload, err := json.Marshal(map[string]string{
		"client_id":     s.cfg.GitHubClientID,
		"client_secret": s.cfg.GitHubClientSecret,
		"code":          params.Code,
		"redirect_uri":  params.RedirectURI,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.endpoints.githubToken, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("create GitHub token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := s.doTokenRequest(req, "GitHub")
	if err != nil {
		return nil, err
	}

	var tokenResp struct {
		AccessToken      string `json:"access_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, apperrors.TokenExchangeFailed("malformed GitHub token response")
	}
	if tokenResp.Error != "" || tokenResp.AccessToken == "" {
		log.Error().Str("error", tokenResp.Error).Msg("GitHub token exchange failed")
		return nil, apperrors.TokenExchangeFailed(tokenResp.ErrorDescription)
	}

	userBody, err := s.fetchProfile(ctx, s.endpoints.githubUser, tokenResp.AccessToken)
	if err != nil {
		return nil, err
	}

	var githubUser struct {
		ID                int64  `json:"id"`
		Login             string `json:"login"`
		Name              string `json:"name"`
		Email             string `json:"email"`
		PublicRepos       int    `json:"public_repos"`
		TotalPrivateRepos int    `json:"total_private_repos"`
	}
	if err := json.Unmarshal(userBody, &githubUser); err != nil {
		return nil, apperrors.ProfileFetchFailed(err)
	}

	return &model.NormalizedProfile{
		Provider:    model.ProviderNameGitHub,
		ExternalID:  fmt.Sprintf("%d", githubUser.ID),
		Handle:      githubUser.Login,
		Name:        firstNonEmpty(githubUser.Name, githubUser.Login),
		Email:       githubUser.Email,
		AccessToken: tokenResp.AccessToken,
		DataCount:   githubUser.PublicRepos + githubUser.TotalPrivateRepos,
	}, nil
}

// Google

func (s *OAuthService) buildGoogleAuthURL(redirectURI string) (*AuthURL, error) {
	if s.cfg.GoogleClientID == "" {
		return nil, apperrors.ProviderNotConfigured("Google")
	}

	state, err := util.GenerateState()
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"client_id":     {s.cfg.GoogleClientID},
		"redirect_uri":  {redirectURI},
		"response_type": {"code"},
		"scope":         {"openid email profile https://www.googleapis.com/auth/drive.readonly"},
		"state":         {state},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
	}

	return &AuthURL{URL: s.endpoints.googleAuthorize + "?" + params.Encode()}, nil
}

func (s *OAuthService) exchangeGoogleCode(ctx context.Context, params CallbackParams) (*model.NormalizedProfile, error) {
	if s.cfg.GoogleClientID == "" || s.cfg.GoogleClientSecret == "" {
		return nil, apperrors.ProviderNotConfigured("Google")
	}

	data := url.Values{
		"code":          {params.Code},
		"client_id":     {s.cfg.GoogleClientID},
		"client_secret": {s.cfg.GoogleClientSecret},
		"redirect_uri":  {params.RedirectURI},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.endpoints.googleToken, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create Google token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := s.doTokenRequest(req, "Google")
	if err != nil {
		return nil, err
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil || tokenResp.AccessToken == "" {
		return nil, apperrors.TokenExchangeFailed("malformed Google token response")
	}

	userBody, err := s.fetchProfile(ctx, s.endpoints.googleUser, tokenResp.AccessToken)
	if err != nil {
		return nil, err
	}

	var userInfo struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(userBody, &userInfo); err != nil {
		return nil, apperrors.ProfileFetchFailed(err)
	}

	return &model.NormalizedProfile{
		Provider:    model.ProviderNameGoogle,
		ExternalID:  userInfo.ID,
		Handle:      userInfo.Email,
		Name:        firstNonEmpty(userInfo.Name, userInfo.Email),
		Email:       userInfo.Email,
		AccessToken: tokenResp.AccessToken,
		// Google exposes no cheap item-count signal; the normalizer's
		// per-provider default applies. A real Drive file count is a
		// pluggable follow-up, not a randomized placeholder.
		DataCount: -1,
	}, nil
}

// Twitter/X (PKCE)

func (s *OAuthService) buildTwitterAuthURL(ctx context.Context, redirectURI string) (*AuthURL, error) {
	if s.cfg.TwitterClientID == "" {
		return nil, apperrors.ProviderNotConfigured("Twitter")
	}

	verifier, err := util.GenerateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("generate code verifier: %w", err)
	}

	state, err := util.GenerateState()
	if err != nil {
		return nil, err
	}

	flowID, err := util.GenerateToken()
	if err != nil {
		return nil, err
	}

	if err := s.pkceStore.Put(ctx, flowID, verifier, s.cfg.PKCETTL()); err != nil {
		return nil, err
	}

	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {s.cfg.TwitterClientID},
		"redirect_uri":          {redirectURI},
		"scope":                 {"tweet.read users.read offline.access"},
		"state":                 {state},
		"code_challenge":        {util.CodeChallengeS256(verifier)},
		"code_challenge_method": {"S256"},
	}

	return &AuthURL{
		URL:    s.endpoints.twitterAuthorize + "?" + params.Encode(),
		FlowID: flowID,
	}, nil
}

func (s *OAuthService) exchangeTwitterCode(ctx context.Context, params CallbackParams, verifier string) (*model.NormalizedProfile, error) {
	if s.cfg.TwitterClientID == "" || s.cfg.TwitterClientSecret == "" {
		return nil, apperrors.ProviderNotConfigured("Twitter")
	}

	data := url.Values{
		"code":          {params.Code},
		"grant_type":    {"authorization_code"},
		"client_id":     {s.cfg.TwitterClientID},
		"redirect_uri":  {params.RedirectURI},
		"code_verifier": {verifier},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.endpoints.twitterToken, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create Twitter token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Twitter requires Basic auth for confidential clients.
	req.SetBasicAuth(s.cfg.TwitterClientID, s.cfg.TwitterClientSecret)

	body, err := s.doTokenRequest(req, "Twitter")
	if err != nil {
		return nil, err
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil || tokenResp.AccessToken == "" {
		return nil, apperrors.TokenExchangeFailed("malformed Twitter token response")
	}

	userBody, err := s.fetchProfile(ctx, s.endpoints.twitterUser+"?user.fields=public_metrics", tokenResp.AccessToken)
	if err != nil {
		return nil, err
	}

	var twitterUser struct {
		Data struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			Username      string `json:"username"`
			PublicMetrics struct {
				TweetCount int `json:"tweet_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	if err := json.Unmarshal(userBody, &twitterUser); err != nil {
		return nil, apperrors.ProfileFetchFailed(err)
	}

	dataCount := twitterUser.Data.PublicMetrics.TweetCount
	if dataCount == 0 {
		dataCount = -1
	}

	return &model.NormalizedProfile{
		Provider:    model.ProviderNameTwitter,
		ExternalID:  twitterUser.Data.ID,
		Handle:      twitterUser.Data.Username,
		Name:        firstNonEmpty(twitterUser.Data.Name, twitterUser.Data.Username),
		AccessToken: tokenResp.AccessToken,
		DataCount:   dataCount,
	}, nil
}

// Shared helpers

// doTokenRequest performs a token exchange request. A non-200 response is a
// terminal TokenExchangeFailed: the authorization code is single-use and
// already consumed, so retrying can never succeed.
func (s *OAuthService) doTokenRequest(req *http.Request, provider string) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.TokenExchangeFailed(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s token response: %w", provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Str("provider", provider).Msg("token exchange failed")
		return nil, apperrors.TokenExchangeFailed(fmt.Sprintf("%s returned status %d", provider, resp.StatusCode))
	}
	return body, nil
}

func (s *OAuthService) fetchProfile(ctx context.Context, endpoint, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, apperrors.ProfileFetchFailed(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.ProfileFetchFailed(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ProfileFetchFailed(err)
	}
	if resp.StatusCode != http.StatusOK {
		// The token was already exchanged, so the flow cannot cleanly
		// restart from here. Logged as an inconsistent state.
		log.Error().Int("status", resp.StatusCode).Str("endpoint", endpoint).
			Msg("profile fetch failed after successful token exchange")
		return nil, apperrors.ProfileFetchFailed(fmt.Errorf("profile endpoint returned status %d", resp.StatusCode))
	}
	return body, nil
}

// FetchDataCount re-reads the provider's usage-count signal for an existing
// connection. Only GitHub and Twitter expose one cheaply.
func (s *OAuthService) FetchDataCount(ctx context.Context, providerName, accessToken string) (int, error) {
	switch providerName {
	case model.ProviderNameGitHub:
		body, err := s.fetchProfile(ctx, s.endpoints.githubUser, accessToken)
		if err != nil {
			return 0, err
		}
		var user struct {
			PublicRepos       int `json:"public_repos"`
			TotalPrivateRepos int `json:"total_private_repos"`
		}
		if err := json.Unmarshal(body, &user); err != nil {
			return 0, err
		}
		return user.PublicRepos + user.TotalPrivateRepos, nil

	case model.ProviderNameTwitter:
		body, err := s.fetchProfile(ctx, s.endpoints.twitterUser+"?user.fields=public_metrics", accessToken)
		if err != nil {
			return 0, err
		}
		var user struct {
			Data struct {
				PublicMetrics struct {
					TweetCount int `json:"tweet_count"`
				} `json:"public_metrics"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &user); err != nil {
			return 0, err
		}
		return user.Data.PublicMetrics.TweetCount, nil

	default:
		return 0, fmt.Errorf("no data count source for provider %s", providerName)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
