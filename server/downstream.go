package server

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// NewDownstream proxies pages to the frontend. The identity headers set by the
// route gate travel with the proxied request. An empty URL serves 404s.
func NewDownstream(frontendURL string) (http.Handler, error) {
	if frontendURL == "" {
		return http.NotFoundHandler(), nil
	}

	target, err := url.Parse(frontendURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing frontend URL %q", frontendURL)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, errors.Errorf("frontend URL %q must be absolute", frontendURL)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Ctx(r.Context()).Err(err).Str("path", r.URL.Path).Msg("Frontend unavailable")
		http.Error(w, "502 - Frontend Unavailable", http.StatusBadGateway)
	}
	return proxy, nil
}
