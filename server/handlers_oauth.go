package server

import (
	"errors"
	"net/http"
	"net/url"

	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
	"github.com/ESHWARGEEK/CodeLearn/oauth"
	"github.com/ESHWARGEEK/CodeLearn/provider"
	"github.com/ESHWARGEEK/CodeLearn/users"
	"github.com/rs/zerolog/log"
)

type exchangeRequest struct {
	Code string `json:"code" validate:"required"`
}

type exchangeResponse struct {
	User               *users.User             `json:"user"`
	OnboardingComplete bool                    `json:"onboardingComplete"`
	Tokens             *provider.TokenMetadata `json:"tokens"`
}

// OAuthStartHandler records a fresh state in cookies and sends the browser to
// the hosted UI for the requested provider.
func (s *Server) OAuthStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := oauth.ParseProvider(r.PathValue("provider"))
		if err != nil {
			redirectToLogin(w, r, reasonParams(oauth.ReasonInvalidProvider))
			return
		}

		state, err := s.guard.Begin(s.newStateCookieStore(w, r))
		if err != nil {
			log.Ctx(r.Context()).Err(err).Msg("Failed to start OAuth flow")
			redirectToLogin(w, r, reasonParams(oauth.ReasonOAuthFailed))
			return
		}
		http.Redirect(w, r, s.exchanger.AuthorizeURL(p, state.Value), http.StatusSeeOther)
	}
}

// OAuthCallbackHandler completes the authorization code flow. The stored state is
// consumed before anything else so a second delivery of the same callback fails.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		query := r.URL.Query()
		returnedState := query.Get("state")
		stateErr := s.guard.Consume(s.newStateCookieStore(w, r), returnedState)

		if providerErr := query.Get("error"); providerErr != "" {
			log.Ctx(ctx).Warn().
				Str("error", providerErr).
				Str("description", query.Get("error_description")).
				Msg("OAuth provider returned an error")
			redirectToLogin(w, r, url.Values{"error": {providerErr}})
			return
		}

		p, err := oauth.ParseProvider(r.PathValue("provider"))
		if err != nil {
			redirectToLogin(w, r, reasonParams(oauth.ReasonInvalidProvider))
			return
		}
		code := query.Get("code")
		if code == "" {
			redirectToLogin(w, r, reasonParams(oauth.ReasonMissingCode))
			return
		}
		if returnedState == "" {
			redirectToLogin(w, r, reasonParams(oauth.ReasonMissingState))
			return
		}
		if stateErr != nil {
			reason := oauth.ReasonStateNotFound
			var se *oauth.StateError
			if errors.As(stateErr, &se) {
				reason = se.Reason
			}
			log.Ctx(ctx).Warn().Str("reason", string(reason)).Msg("OAuth state rejected")
			redirectToLogin(w, r, reasonParams(reason))
			return
		}

		tokens, user, err := s.completeExchange(r, code, p)
		if err != nil {
			log.Ctx(ctx).Err(err).Str("provider", p.String()).Msg("OAuth callback failed")
			redirectToLogin(w, r, reasonParams(oauth.ReasonOAuthFailed))
			return
		}

		s.cookies.Issue(w, tokens, http.SameSiteLaxMode)
		destination := PageDashboard
		if !user.OnboardingComplete {
			destination = PageOnboarding
		}
		http.Redirect(w, r, destination, http.StatusSeeOther)
	}
}

// OAuthExchangeHandler is the JSON variant used by clients that validate the
// state themselves and post the code back.
func (s *Server) OAuthExchangeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := oauth.ParseProvider(r.PathValue("provider"))
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidProvider, "Invalid provider")
			return
		}

		var req exchangeRequest
		if details := decodeRequest(w, r, &req); len(details) > 0 {
			writeError(w, http.StatusBadRequest, CodeValidationError, "Authorization code is required", details...)
			return
		}

		tokens, user, err := s.completeExchange(r, req.Code, p)
		if err != nil {
			log.Ctx(r.Context()).Err(err).Str("provider", p.String()).Msg("OAuth token exchange failed")
			writeError(w, http.StatusInternalServerError, CodeOAuthFailed, "Failed to exchange authorization code")
			return
		}

		s.cookies.Issue(w, tokens, http.SameSiteLaxMode)
		writeData(w, http.StatusOK, exchangeResponse{
			User:               user,
			OnboardingComplete: user.OnboardingComplete,
			Tokens:             tokens.Metadata(),
		})
	}
}

func (s *Server) completeExchange(r *http.Request, code string, p oauth.Provider) (*provider.TokenSet, *users.User, error) {
	tokens, err := s.exchanger.Exchange(r.Context(), code, p)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.exchanger.FetchProfile(r.Context(), tokens.AccessToken)
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, "fetching %s profile", p)
	}
	return tokens, user, nil
}

func reasonParams(reason oauth.Reason) url.Values {
	return url.Values{"error": {string(reason)}}
}
