// Package httpapi serves the upload, simulate and plot web front end.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	epaview "github.com/smileynet/epaview"
	"github.com/smileynet/epaview/internal/config"
	"github.com/smileynet/epaview/internal/geom"
	"github.com/smileynet/epaview/internal/metrics"
	"github.com/smileynet/epaview/internal/network"
	"github.com/smileynet/epaview/internal/render"
)

const (
	limiterIdle     = 10 * time.Minute
	shutdownTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	Config  config.Server
	Logger  logrus.FieldLogger
	Metrics *metrics.Registry // nil disables /metrics and request metrics
	Web     fs.FS             // holds index.html; defaults to the embedded page
}

// Server owns one network wrapper and serialises access to it.
type Server struct {
	mu      sync.Mutex
	net     *network.Wrapper
	cfg     config.Server
	log     logrus.FieldLogger
	metrics *metrics.Registry
	limiter *limiter
	index   *template.Template
	router  *mux.Router
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// New builds a Server around net. The page template is parsed eagerly.
func New(net *network.Wrapper, opts Options) (*Server, error) {
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	if opts.Web == nil {
		opts.Web = epaview.Web
	}
	index, err := template.ParseFS(opts.Web, "index.html")
	if err != nil {
		return nil, fmt.Errorf("httpapi: parsing page: %w", err)
	}

	s := &Server{
		net:     net,
		cfg:     opts.Config,
		log:     opts.Logger,
		metrics: opts.Metrics,
		index:   index,
	}
	if s.cfg.RateLimit > 0 {
		s.limiter = newLimiter(s.cfg.RateLimit, s.cfg.Burst)
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, s.observe, s.recoverPanics)
	if s.limiter != nil {
		r.Use(s.rateLimit)
	}

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/run_simulation", s.handleRunSimulation).Methods(http.MethodPost)
	r.HandleFunc("/plot_network", s.handlePlotNetwork).Methods(http.MethodGet)
	r.HandleFunc("/plot_time_series", s.handlePlotTimeSeries).Methods(http.MethodGet)
	r.HandleFunc("/statistics", s.handleStatistics).Methods(http.MethodGet)
	r.HandleFunc("/hit", s.handleHit).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, response{Message: "Not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, response{Message: "Method not allowed"})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.Addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	var prune <-chan time.Time
	if s.limiter != nil {
		t := time.NewTicker(limiterIdle)
		defer t.Stop()
		prune = t.C
	}

	for {
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("httpapi: %w", err)
		case <-prune:
			if n := s.limiter.prune(limiterIdle); n > 0 {
				s.log.WithField("clients", n).Debug("pruned idle rate limiters")
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			s.log.Info("http server shutting down")
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("httpapi: shutdown: %w", err)
			}
			return nil
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	data := struct {
		Loaded    bool
		File      string
		Engine    string
		Simulated bool
	}{
		Loaded:    s.net.IsLoaded(),
		File:      s.net.FileName(),
		Engine:    s.net.EngineName(),
		Simulated: s.net.Simulated(),
	}
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := s.index.Execute(&buf, data); err != nil {
		s.log.WithError(err).Error("rendering page")
		writeJSON(w, http.StatusInternalServerError, response{Message: "Internal server error"})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadMB<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			writeJSON(w, http.StatusRequestEntityTooLarge, response{
				Message: fmt.Sprintf("File exceeds %d MB", s.cfg.MaxUploadMB),
			})
		case errors.Is(err, http.ErrMissingFile):
			writeJSON(w, http.StatusBadRequest, response{Message: "No file provided"})
		default:
			writeJSON(w, http.StatusBadRequest, response{Message: "Error: " + err.Error()})
		}
		return
	}
	defer func() { _ = file.Close() }()

	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(header.Filename, `\`, "/")))
	if name == "/" || name == "." {
		writeJSON(w, http.StatusBadRequest, response{Message: "No file selected"})
		return
	}
	if !strings.EqualFold(filepath.Ext(name), ".inp") {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid file type"})
		return
	}

	path, err := s.store(name, file)
	if err != nil {
		s.log.WithError(err).Error("storing upload")
		writeJSON(w, http.StatusInternalServerError, response{Message: "Error: " + err.Error()})
		return
	}

	s.mu.Lock()
	err = s.net.LoadFile(r.Context(), path)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "File loaded: " + name})
}

// store copies an upload into the upload directory.
func (s *Server) store(name string, src io.Reader) (string, error) {
	dir := s.cfg.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", err
	}
	return path, dst.Close()
}

func (s *Server) handleRunSimulation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.net.RunSimulation(r.Context())
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Simulation completed!"})
}

func (s *Server) handlePlotNetwork(w http.ResponseWriter, r *http.Request) {
	q, err := parsePlotQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: err.Error()})
		return
	}

	var buf bytes.Buffer
	s.mu.Lock()
	if q.Attribute == "" {
		err = s.net.PlotNetwork(&buf, network.PlotOptions{Labels: q.Labels, Format: q.Format})
	} else {
		err = s.net.PlotNetworkAttributes(&buf, network.AttributeOptions{
			Attribute: q.Attribute,
			Period:    q.Period,
			Labels:    q.Labels,
			Format:    q.Format,
		})
	}
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeImage(w, s.net.PlotFormat(q.Format), &buf)
}

func (s *Server) handlePlotTimeSeries(w http.ResponseWriter, r *http.Request) {
	q, err := parseSeriesQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: err.Error()})
		return
	}

	var buf bytes.Buffer
	s.mu.Lock()
	err = s.net.PlotTimeSeries(&buf, network.SeriesOptions{
		Kind:      q.Kind,
		Selection: q.IDs,
		Seconds:   q.Seconds,
		Format:    q.Format,
	})
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeImage(w, s.net.PlotFormat(q.Format), &buf)
}

func (s *Server) handleStatistics(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	summary, err := s.net.Summary()
	stats := s.net.Statistics()
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		response
		Statistics network.Statistics `json:"statistics"`
		Summary    network.Summary    `json:"summary"`
	}{
		response:   response{Success: true, Message: fmt.Sprintf("%d nodes, %d links", stats.NodeCount, stats.LinkCount)},
		Statistics: stats,
		Summary:    summary,
	})
}

func (s *Server) handleHit(w http.ResponseWriter, r *http.Request) {
	q, err := parseHitQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: err.Error()})
		return
	}

	s.mu.Lock()
	hit, err := s.net.HitTest(geom.Point{X: *q.X, Y: *q.Y})
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}

	msg := "Nothing here"
	if hit.ID != "" {
		msg = fmt.Sprintf("%s %s", hit.Kind, hit.ID)
	}
	writeJSON(w, http.StatusOK, struct {
		response
		Kind     string     `json:"kind"`
		ID       string     `json:"id,omitempty"`
		Index    int        `json:"index,omitempty"`
		Distance float64    `json:"distance"`
		Anchor   geom.Point `json:"anchor"`
	}{
		response: response{Success: true, Message: msg},
		Kind:     hit.Kind.String(),
		ID:       hit.ID,
		Index:    hit.Index,
		Distance: hit.Distance,
		Anchor:   hit.Anchor,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Success: true, Message: "ok"})
}

func writeImage(w http.ResponseWriter, format string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", render.ContentType(format))
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps wrapper failures to a status code and JSON body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, network.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, network.ErrNotLoaded),
		errors.Is(err, network.ErrNotSimulated),
		errors.Is(err, network.ErrInvalidFormat),
		errors.Is(err, network.ErrUnknownAttribute),
		errors.Is(err, render.ErrNoSeries):
		status = http.StatusBadRequest
	case errors.Is(err, network.ErrUnsupported):
		status = http.StatusNotImplemented
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response{Message: "Error: " + err.Error()})
}
