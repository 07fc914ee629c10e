// Package server is the HTTP front-end of the report pipeline.
//
// It speaks just enough HTTP/1.1 over raw TCP to serve one request per
// connection: POST /upload runs the pipeline on the uploaded file, every
// other request runs it on the default input file. Responses are always
// 200 with the index page followed by a script fragment carrying the report.
package server

import (
	"bufio"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	apperrors "github.com/olegiv/seclog-ai-go/internal/errors"
	"github.com/olegiv/seclog-ai-go/internal/logging"
	"github.com/olegiv/seclog-ai-go/internal/metrics"
	"github.com/olegiv/seclog-ai-go/internal/multipart"
	"github.com/olegiv/seclog-ai-go/internal/report"
)

//go:embed web/index.html
var defaultIndexHTML string

// Route labels used in logs and metrics.
const (
	RouteUpload     = "upload"
	RouteDefault    = "default"
	RouteBadRequest = "bad_request"
)

// Defaults applied by New for zero config values.
const (
	DefaultAddr           = ":8080"
	DefaultMaxConnections = 16
	DefaultReadTimeout    = 5 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultMaxUploadMB    = 10
	DefaultInputPath      = "varied_logs.json"
	DefaultUploadDir      = "./uploads"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
	lingerTimeout  = 500 * time.Millisecond
	lingerMaxBytes = 256 << 10
)

const internalErrorMessage = "internal error while processing the request"

var errEmptyUpload = errors.New("uploaded file is empty")

// Runner executes the report pipeline for one input file.
type Runner interface {
	RunFile(ctx context.Context, path string) (*report.Document, error)
	Deliver(ctx context.Context, doc *report.Document) error
}

// Config holds the server settings.
type Config struct {
	Addr             string
	MaxConnections   int
	AcceptRatePerSec float64 // 0 means unlimited
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxUploadMB      int
	DefaultInputPath string
	UploadDir        string
	IndexHTMLPath    string
}

// Server accepts connections and answers each with exactly one response.
type Server struct {
	cfg       Config
	runner    Runner
	log       *logging.SecureLogger
	metrics   *metrics.Metrics
	indexPage string
	limiter   *rate.Limiter
	slots     chan struct{}

	mu             sync.Mutex
	listener       net.Listener
	acceptCtx      context.Context
	stopAccept     context.CancelFunc
	handlerCtx     context.Context
	cancelHandlers context.CancelFunc
	acceptDone     chan struct{}
	conns          sync.WaitGroup
}

// New creates a server. log and m may be nil.
func New(cfg Config, runner Runner, log *logging.SecureLogger, m *metrics.Metrics) *Server {
	if log == nil {
		log = logging.NewNop()
	}
	log = log.Component("server")

	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = DefaultMaxUploadMB
	}
	if cfg.DefaultInputPath == "" {
		cfg.DefaultInputPath = DefaultInputPath
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = DefaultUploadDir
	}

	s := &Server{
		cfg:       cfg,
		runner:    runner,
		log:       log,
		metrics:   m,
		indexPage: loadIndexPage(cfg.IndexHTMLPath, log),
		slots:     make(chan struct{}, cfg.MaxConnections),
	}
	if cfg.AcceptRatePerSec > 0 {
		burst := int(cfg.AcceptRatePerSec)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRatePerSec), burst)
	}
	return s
}

func loadIndexPage(path string, log *logging.SecureLogger) string {
	if path == "" {
		return defaultIndexHTML
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Str("path", path).Err(err).Msg("Cannot load index page, using built-in page")
		return defaultIndexHTML
	}
	return string(data)
}

// Start binds the listener and launches the accept loop.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	s.listener = ln
	s.acceptCtx, s.stopAccept = context.WithCancel(context.Background())
	s.handlerCtx, s.cancelHandlers = context.WithCancel(context.Background())
	s.acceptDone = make(chan struct{})

	go s.acceptLoop(s.acceptCtx, ln, s.acceptDone)

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Int("max_connections", s.cfg.MaxConnections).
		Float64("accept_rate", s.cfg.AcceptRatePerSec).
		Msg("Server listening")
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and waits for in-flight connections until ctx
// is done. Connections still running at that point have their pipeline
// context cancelled.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	if ln == nil {
		s.mu.Unlock()
		return nil
	}
	s.listener = nil
	s.stopAccept()
	closeErr := ln.Close()
	acceptDone := s.acceptDone
	cancelHandlers := s.cancelHandlers
	s.mu.Unlock()

	<-acceptDone

	drained := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		cancelHandlers()
	case <-ctx.Done():
		cancelHandlers()
		<-drained
		return fmt.Errorf("server shutdown incomplete: %w", ctx.Err())
	}

	s.log.Info().Msg("Server stopped")
	if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		return fmt.Errorf("failed to close listener: %w", closeErr)
	}
	return nil
}

// Serve starts the server and blocks until ctx is done, then stops it
// allowing shutdownTimeout for in-flight connections.
func (s *Server) Serve(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := s.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Stop(stopCtx)
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, done chan struct{}) {
	defer close(done)

	var delay time.Duration
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}

		// Wait for a free slot. Pending connections stay in the backlog.
		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}

		conn, err := ln.Accept()
		if err != nil {
			<-s.slots
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}

			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			s.log.Warn().Err(err).Int64("retry_ms", delay.Milliseconds()).Msg("Accept failed")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			continue
		}
		delay = 0

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			defer func() { <-s.slots }()
			s.handleConn(s.handlerCtx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	start := time.Now()
	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()
	defer conn.Close()

	remote := conn.RemoteAddr().String()

	route := RouteBadRequest
	var fragment string
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().
					Str("remote_addr", remote).
					Str("panic", fmt.Sprint(r)).
					Msg("Recovered from panic while handling request")
				fragment = report.ErrorFragment(internalErrorMessage)
			}
		}()
		route, fragment = s.process(ctx, conn, remote)
	}()

	if err := s.writeResponse(conn, fragment); err != nil {
		s.log.Warn().Str("remote_addr", remote).Err(err).Msg("Failed to write response")
	}

	elapsed := time.Since(start)
	s.metrics.RequestServed(route, elapsed)
	s.log.Info().
		Str("remote_addr", remote).
		Str("route", route).
		DurMs("duration_ms", elapsed).
		Msg("Request served")
}

// process reads and routes one request and returns the report fragment.
func (s *Server) process(ctx context.Context, conn net.Conn, remote string) (string, string) {
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	maxBody := int64(s.cfg.MaxUploadMB) * 1024 * 1024
	req, err := readRequest(bufio.NewReader(conn), maxBody)
	if err != nil {
		s.log.Warn().Str("remote_addr", remote).Err(err).Msg("Unreadable request")
		return RouteBadRequest, report.ErrorFragment(requestErrorMessage(err, s.cfg.MaxUploadMB))
	}

	input := s.cfg.DefaultInputPath
	route := RouteDefault
	if req.Method == "POST" && req.Path == "/upload" {
		route = RouteUpload
		path, err := s.saveUpload(req)
		var ioErr *apperrors.IOError
		if errors.As(err, &ioErr) {
			s.log.Error().Str("remote_addr", remote).Err(err).Msg("Failed to store upload")
			return route, report.ErrorFragment(apperrors.UserMessage(ioErr))
		}
		if err != nil {
			s.metrics.ExtractionFailed(extractionReason(err))
			s.log.Warn().
				Str("remote_addr", remote).
				Err(err).
				Msg("Upload not usable, falling back to default input")
		} else {
			input = path
		}
	}

	doc, runErr := s.runner.RunFile(ctx, input)
	if runErr == nil {
		if err := s.runner.Deliver(ctx, doc); err != nil {
			s.log.Warn().Str("remote_addr", remote).Err(err).Msg("Report delivery incomplete")
		}
	}

	fragment, err := report.RenderHTMLFragment(doc)
	if err != nil {
		s.log.Error().Str("remote_addr", remote).Err(err).Msg("Failed to render report")
		return route, report.ErrorFragment(internalErrorMessage)
	}
	return route, fragment
}

// saveUpload extracts the uploaded file and writes it to a unique path.
func (s *Server) saveUpload(req *Request) (string, error) {
	data, err := multipart.ExtractFromRequest(req.Header.Get("Content-Type"), req.Body)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errEmptyUpload
	}
	s.metrics.Uploaded(len(data))

	if err := os.MkdirAll(s.cfg.UploadDir, 0750); err != nil {
		return "", apperrors.NewIOError("create", s.cfg.UploadDir, err)
	}

	path := filepath.Join(s.cfg.UploadDir, "upload-"+uuid.NewString()+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", apperrors.NewIOError("write", path, err)
	}
	return path, nil
}

func (s *Server) writeResponse(conn net.Conn, fragment string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))

	body := s.indexPage + fragment
	w := bufio.NewWriter(conn)
	fmt.Fprintf(w, "HTTP/1.1 200 OK\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"Content-Length: %d\r\n"+
		"Connection: close\r\n\r\n", len(body))
	if _, err := w.WriteString(body); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	lingerClose(conn)
	return nil
}

// lingerClose half-closes the connection and drains unread request bytes
// so the peer sees the response instead of a reset.
func lingerClose(conn net.Conn) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tcp.CloseWrite(); err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, lingerMaxBytes))
}

func requestErrorMessage(err error, maxUploadMB int) string {
	if errors.Is(err, ErrBodyTooLarge) {
		return fmt.Sprintf("upload exceeds maximum size of %dMB", maxUploadMB)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out reading the request"
	}
	if errors.Is(err, ErrMalformedRequest) {
		return "malformed request"
	}
	return "could not read the request"
}

func extractionReason(err error) string {
	var extErr *multipart.ExtractionError
	switch {
	case errors.As(err, &extErr):
		return extErr.Kind.String()
	case errors.Is(err, errEmptyUpload):
		return "empty"
	default:
		return "other"
	}
}
