package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))

	// ACCOUNT
	s.RegisterRouteHandler("POST "+RouteSignup, ChainMiddleware(s.SignupHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteVerify, ChainMiddleware(s.VerifyHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteResendCode, ChainMiddleware(s.ResendCodeHandler(), s.APIMiddleware()...))

	// SESSION
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))

	// PASSWORD
	s.RegisterRouteHandler("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordHandler(), s.APIMiddleware()...))

	// OAUTH
	s.RegisterRouteFunc("GET "+RouteOAuthStart, s.OAuthStartHandler())
	s.RegisterRouteFunc("GET "+RouteOAuthCallback, s.OAuthCallbackHandler())
	s.RegisterRouteHandler("POST "+RouteOAuthExchange, ChainMiddleware(s.OAuthExchangeHandler(), s.APIMiddleware()...))

	// Preflight for every API route; CorsMiddleware answers OPTIONS itself.
	s.RegisterRouteHandler("OPTIONS "+RouteAPI, ChainMiddleware(s.NotFoundHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler(RouteAPI, ChainMiddleware(s.NotFoundHandler(), s.APIMiddleware()...))

	// Everything else is a page owned by the downstream frontend.
	s.RegisterRouteHandler("/", ChainMiddleware(s.downstream.ServeHTTP, s.PageMiddleware()...))
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": s.config.GetAppName(),
		})
	}
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Route not found")
	}
}
