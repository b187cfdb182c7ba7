package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

var ErrRewrite = errors.New("rewrite error")

// Rewriter maps a gateway URL onto the upstream URL
type Rewriter func(req *url.URL) (*url.URL, error)

// RewriteWith strips sourcePath from request paths and joins the rest onto proxyTo
func RewriteWith(sourcePath string, proxyTo *url.URL) Rewriter {
	sourcePath = strings.TrimSuffix(sourcePath, "/")

	return func(req *url.URL) (*url.URL, error) {
		dest := *proxyTo
		if p := req.Path; p == sourcePath {
			// no-op
		} else if strings.HasPrefix(p, sourcePath+"/") {
			pp := strings.TrimPrefix(p, sourcePath+"/")
			joined := dest.JoinPath(pp)
			if strings.HasSuffix(p, "/") && !strings.HasSuffix(joined.Path, "/") {
				joined.Path += "/"
			}
			dest = *joined
		} else {
			return nil, fmt.Errorf("%w: path prefix does not match", ErrRewrite)
		}
		dest.Fragment = req.Fragment
		dest.RawQuery = req.RawQuery
		return &dest, nil
	}
}

// NewBEOProxy forwards requests under sourcePath to the BEO, cookies included
func NewBEOProxy(sourcePath string, beoURL *url.URL, log *zap.SugaredLogger) http.Handler {
	rewrite := RewriteWith(sourcePath, beoURL)
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			dest, err := rewrite(pr.In.URL)
			if err != nil {
				// unreachable when mounted under sourcePath
				dest = beoURL
			}
			pr.Out.URL = dest
			pr.Out.Host = dest.Host
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warnw("BEO proxy failed", "path", r.URL.Path, "error", err)
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
		},
	}
	return proxy
}
