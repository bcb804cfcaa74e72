package mock

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

// fasthttpListen binds port (0 = OS-assigned, spec.md §4.7 step 1).
func fasthttpListen(port int) (net.Listener, error) {
	return net.Listen("tcp", ":"+strconv.Itoa(port))
}

// ServerConfig configures the listener wrapping a Dispatcher (spec.md §6
// "Mock HTTP interface").
type ServerConfig struct {
	Port       int // 0 = OS-assigned
	PathPrefix string
	CertFile   string
	KeyFile    string
}

// Server binds a Dispatcher to a TCP listener via valyala/fasthttp, the pack's
// high-throughput HTTP listener (SPEC_FULL.md domain stack: fasthttp serves
// the mock listener the way net/http serves the teacher's dashboard API).
type Server struct {
	cfg  ServerConfig
	disp *Dispatcher
	srv  *fasthttp.Server
}

// NewServer wraps disp with a listener configured by cfg.
func NewServer(cfg ServerConfig, disp *Dispatcher) *Server {
	return &Server{cfg: cfg, disp: disp}
}

// Start binds the configured port and begins serving in a background
// goroutine, mirroring the teacher's web.Start bind/goroutine/shutdown
// lifecycle (pkg/web/server.go), adapted to fasthttp. Returns the actual
// bound port and a shutdown function.
func (s *Server) Start() (actualPort int, shutdown func() error, err error) {
	ln, err := fasthttpListen(s.cfg.Port)
	if err != nil {
		return 0, nil, fmt.Errorf("mock: failed to bind port: %w", err)
	}
	actualPort = ln.Addr().(*net.TCPAddr).Port

	s.srv = &fasthttp.Server{
		Handler:      s.handle,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		var serveErr error
		if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
			serveErr = s.srv.ServeTLS(ln, s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			serveErr = s.srv.Serve(ln)
		}
		if serveErr != nil {
			log.Error().Err(serveErr).Msg("mock server stopped")
		}
	}()

	shutdown = func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return s.srv.ShutdownWithContext(ctx)
	}
	return actualPort, shutdown, nil
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	if s.cfg.PathPrefix != "" {
		path = strings.TrimPrefix(path, s.cfg.PathPrefix)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
	}
	method := string(ctx.Method())

	headers := map[string][]string{}
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		headers[string(k)] = append(headers[string(k)], string(v))
	})
	query := map[string][]string{}
	ctx.QueryArgs().VisitAll(func(k, v []byte) {
		query[string(k)] = append(query[string(k)], string(v))
	})
	body := append([]byte(nil), ctx.PostBody()...)

	res, err := s.disp.Dispatch(ctx, method, path, headers, query, body)
	if err != nil {
		// spec.md §7 kind 6: "Mock handler error — 500 with message in body,
		// log entry, server stays up."
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("mock dispatch failed")
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(err.Error())
		return
	}
	if !res.Matched {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}

	for k, v := range res.Response.Headers {
		ctx.Response.Header.Set(k, v)
	}
	ctx.SetStatusCode(res.Response.Status)
	ctx.SetBody(res.Response.Body)
}
