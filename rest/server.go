package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// shutdownTimeout bounds how long 'Close' waits for in-flight requests to drain before aborting them.
const shutdownTimeout = 10 * time.Second

// ListenerMode indicates whether a listener for an IP family should be skipped, attempted, or must succeed.
type ListenerMode int

const (
	ListenerModeSkip ListenerMode = iota
	ListenerModeTry
	ListenerModeMust
)

// GetListenersOptions encapsulates the options available when using the 'GetListeners' function.
type GetListenersOptions struct {
	IPv4Mode, IPv6Mode ListenerMode
	Port               uint16
	LocalOnly          bool
	LogPrefix          string
}

// GetListeners returns an TCP4 and/or TCP6 net listener for the given address.
func GetListeners(opts GetListenersOptions) (net.Listener, net.Listener, error) {
	if opts.LogPrefix != "" {
		opts.LogPrefix += " "
	}

	ln4, err := getListener(opts.IPv4Mode, "tcp4", opts.Port, opts.LocalOnly, opts.LogPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("could not start IPv4 listener: %w", err)
	}

	ln6, err := getListener(opts.IPv6Mode, "tcp6", opts.Port, opts.LocalOnly, opts.LogPrefix)
	if err == nil {
		return ln4, ln6, nil
	}

	if ln4 != nil {
		if err := ln4.Close(); err != nil {
			slog.Error(opts.LogPrefix+"Could not close ipv4 listener", "err", err)
		}
	}

	return nil, nil, fmt.Errorf("could not start IPv6 listener: %w", err)
}

func getListener(mode ListenerMode, family string, port uint16, localOnly bool, prefix string) (net.Listener, error) {
	if mode == ListenerModeSkip {
		return nil, nil
	}

	address := listenAddress(family, strconv.FormatUint(uint64(port), 10), localOnly)

	ln, err := net.Listen(family, address)
	if err == nil {
		return ln, nil
	}

	slog.Warn(prefix+"Could not start listener", "family", family, "address", address, "err", err)

	if mode == ListenerModeMust {
		return nil, fmt.Errorf("could not start listener: %w", err)
	}

	return nil, nil
}

func listenAddress(family, port string, localOnly bool) string {
	if !localOnly {
		return net.JoinHostPort("", port)
	}

	localhost := "localhost"
	if family == "tcp6" {
		localhost = "::1"
	}

	return net.JoinHostPort(localhost, port)
}

// ServerOptions encapsulates the options available when creating a new server.
type ServerOptions struct {
	// Handler is what will handle the requests, usually a 'Responder'.
	Handler http.Handler

	// Port is the port the emulated service is served on.
	Port uint16

	// IPv4Mode/IPv6Mode specify which IP families to listen on.
	IPv4Mode, IPv6Mode ListenerMode

	// LocalOnly binds the listeners to the loopback address(es) only.
	LocalOnly bool

	// LogPrefix is printed at the beginning of each log message the server outputs.
	LogPrefix string
}

// Server serves the emulated blob storage surface on the configured families/port.
//
// NOTE: Not thread-safe.
type Server struct {
	options    ServerOptions
	httpServer *http.Server
	wg         sync.WaitGroup
}

// NewServer constructs a 'Server'.
func NewServer(options ServerOptions) *Server {
	if options.LogPrefix != "" {
		options.LogPrefix += " "
	}

	return &Server{options: options}
}

// Start begins serving the handler, returning once the listeners are bound; serving happens on background goroutines.
func (s *Server) Start() error {
	if s.httpServer != nil {
		return fmt.Errorf("server already started")
	}

	ln4, ln6, err := GetListeners(GetListenersOptions{
		IPv4Mode:  s.options.IPv4Mode,
		IPv6Mode:  s.options.IPv6Mode,
		Port:      s.options.Port,
		LocalOnly: s.options.LocalOnly,
		LogPrefix: s.options.LogPrefix,
	})
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{Handler: s.options.Handler}

	for _, ln := range []net.Listener{ln4, ln6} {
		if ln == nil {
			continue
		}

		s.wg.Add(1)

		go func(ln net.Listener) {
			defer s.wg.Done()

			addr := ln.Addr()

			slog.Info(s.options.LogPrefix+"HTTP server started on", "address", addr)

			if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error(s.options.LogPrefix+"HTTP server stopped", "err", err, "address", addr)
			}

			slog.Debug(s.options.LogPrefix+"HTTP server closed", "address", addr)
		}(ln)
	}

	return nil
}

// Close stops the server, allowing in-flight requests to complete, and waits for the serving goroutines to wind
// down. Requests still running once the shutdown timeout expires are aborted.
func (s *Server) Close() error {
	if s.httpServer == nil {
		return fmt.Errorf("server already closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		err = errors.Join(err, s.httpServer.Close())
	}

	s.wg.Wait()
	s.httpServer = nil

	return err
}
