// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/rigrun-setup/internal/execx"
	"github.com/jeranaias/rigrun-setup/internal/logging"
)

// Server defaults.
const (
	// DefaultHost uses an explicit IPv4 address instead of localhost to
	// avoid IPv6 resolution issues on Windows.
	DefaultHost     = "127.0.0.1:11434"
	DefaultAttempts = 2
	DefaultBackoff  = 3 * time.Second
	checkTimeout    = 2 * time.Second
)

// Server checks and starts the local ollama server.
type Server struct {
	BaseURL    string
	HTTPClient *http.Client
	// Binary is the ollama executable used for `ollama serve`.
	Binary string
	// Attempts is how many health checks follow a start; Backoff is the
	// fixed wait before each of them.
	Attempts int
	Backoff  time.Duration
	// Start launches a detached process. Defaults to execx.Start.
	Start func(execx.Cmd) error
}

// NewServer returns a server for host ("127.0.0.1:11434" or a URL).
func NewServer(host string) *Server {
	return &Server{
		BaseURL:    BaseURL(host),
		HTTPClient: &http.Client{Timeout: checkTimeout},
		Binary:     "ollama",
		Attempts:   DefaultAttempts,
		Backoff:    DefaultBackoff,
		Start:      execx.Start,
	}
}

// BaseURL turns an OLLAMA_HOST value into the URL probed for health.
// A bind-all address is probed on loopback.
func BaseURL(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	host = strings.Replace(host, "://0.0.0.0", "://127.0.0.1", 1)
	return strings.TrimRight(host, "/")
}

// CheckRunning verifies that Ollama is reachable and answering.
func (s *Server) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}
	return nil
}

// EnsureServing returns nil when the server answers. Otherwise it starts
// `ollama serve` in the background and checks health Attempts times,
// waiting Backoff before each check. It never assumes the start worked.
// A server that accepts the connection but does not answer in time is
// left alone, since a second `ollama serve` could not bind its port.
func (s *Server) EnsureServing(ctx context.Context) error {
	err := s.CheckRunning(ctx)
	if err == nil {
		return nil
	}
	if IsTimeout(err) {
		return &ClientError{Type: ErrTypeTimeout, Message: "Ollama at " + s.BaseURL + " is not answering", Cause: err}
	}

	log := logging.Log.WithFields(logrus.Fields{"url": s.BaseURL, "attempts": s.Attempts})
	if err := s.Start(execx.Cmd{Name: s.Binary, Args: []string{"serve"}}); err != nil {
		return &ClientError{Type: ErrTypeStartFailed, Message: "failed to start ollama serve", Cause: err}
	}
	log.Debug("started ollama serve")

	var lastErr error
	for attempt := 1; attempt <= s.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return &ClientError{Type: ErrTypeConnection, Message: "Ollama startup cancelled", Cause: ctx.Err()}
		case <-time.After(s.Backoff):
		}

		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		lastErr = s.CheckRunning(checkCtx)
		cancel()
		if lastErr == nil {
			log.WithField("attempt", attempt).Debug("ollama is serving")
			return nil
		}
		log.WithField("attempt", attempt).WithError(lastErr).Debug("ollama not ready")
	}

	return &ClientError{
		Type:    ErrTypeNotRunning,
		Message: fmt.Sprintf("ollama serve started but not responding after %d checks", s.Attempts),
		Cause:   lastErr,
	}
}
