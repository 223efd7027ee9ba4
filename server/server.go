package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ESHWARGEEK/CodeLearn/internal/config"
	"github.com/ESHWARGEEK/CodeLearn/oauth"
	"github.com/ESHWARGEEK/CodeLearn/provider"
	"github.com/ESHWARGEEK/CodeLearn/ratelimit"
	"github.com/ESHWARGEEK/CodeLearn/session"
	"github.com/ESHWARGEEK/CodeLearn/token"
	"github.com/ESHWARGEEK/CodeLearn/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// OAuthExchanger is the part of oauth.Exchanger the handlers call.
type OAuthExchanger interface {
	AuthorizeURL(p oauth.Provider, state string) string
	Exchange(ctx context.Context, code string, p oauth.Provider) (*provider.TokenSet, error)
	FetchProfile(ctx context.Context, accessToken string) (*users.User, error)
}

var _ OAuthExchanger = (*oauth.Exchanger)(nil)

// Deps are the collaborators the server relays to.
type Deps struct {
	Provider  provider.IdentityProvider
	Verifier  token.Verifier
	Exchanger OAuthExchanger
	Limiter   ratelimit.Limiter
	// Downstream serves every non-API path once the route gate lets it through.
	// Nil answers 404.
	Downstream http.Handler
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type Server struct {
	mux        *http.ServeMux
	handler    http.HandlerFunc
	routes     []string
	config     config.Config
	idp        provider.IdentityProvider
	verifier   token.Verifier
	exchanger  OAuthExchanger
	limiter    ratelimit.Limiter
	cookies    *session.Manager
	guard      *oauth.Guard
	downstream http.Handler
	now        func() time.Time
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Provider == nil || deps.Verifier == nil || deps.Exchanger == nil || deps.Limiter == nil {
		return nil, errors.New("[Server New] provider, verifier, exchanger and limiter are required")
	}

	s := &Server{
		mux:        http.NewServeMux(),
		config:     cfg,
		idp:        deps.Provider,
		verifier:   deps.Verifier,
		exchanger:  deps.Exchanger,
		limiter:    deps.Limiter,
		cookies:    session.NewManager(cfg),
		downstream: deps.Downstream,
		now:        deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.downstream == nil {
		s.downstream = http.NotFoundHandler()
	}
	s.guard = oauth.NewGuard(cfg.GetOAuthStateWindow(), oauth.WithGuardClock(s.now))

	s.initRoutes()
	s.handler = ChainMiddleware(s.mux.ServeHTTP, s.RootMiddleware()...)
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if !s.config.IsDevelopment() {
		return
	}
	for _, route := range s.routes {
		method, path, ok := strings.Cut(route, " ")
		if !ok {
			method, path = "ANY", route
		}
		log.Debug().Str("method", method).Str("path", path).Msg("Route registered")
	}
}
