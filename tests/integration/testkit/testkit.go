package testkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/sha1n/vraagbaak/internal/app"
)

// Service represents a test service that can be started and stopped
type Service interface {
	Start() (map[string]any, error)
	Stop() error
	GetName() string
}

// TestEnvContext provides access to properties collected during environment startup
type TestEnvContext interface {
	GetProperties() map[string]any
	GetProperty(name string) (any, bool)
}

// TestEnv manages the lifecycle of test services
type TestEnv interface {
	Start() (map[string]any, error)
	Stop() error
	GetContext() TestEnvContext
}

type testEnvContextImpl struct {
	properties map[string]any
}

func (c *testEnvContextImpl) GetProperties() map[string]any {
	return c.properties
}

func (c *testEnvContextImpl) GetProperty(name string) (any, bool) {
	val, ok := c.properties[name]
	return val, ok
}

type testEnvImpl struct {
	services []Service
	context  *testEnvContextImpl
}

// NewTestEnv creates a new test environment with the given services
func NewTestEnv(services ...Service) TestEnv {
	return &testEnvImpl{
		services: services,
		context:  &testEnvContextImpl{properties: make(map[string]any)},
	}
}

func (e *testEnvImpl) Start() (map[string]any, error) {
	for _, s := range e.services {
		props, err := s.Start()
		if err != nil {
			return nil, err
		}
		for k, v := range props {
			e.context.properties[k] = v
		}
	}
	return e.context.properties, nil
}

func (e *testEnvImpl) Stop() error {
	var lastErr error
	// Stop in reverse order
	for i := len(e.services) - 1; i >= 0; i-- {
		if err := e.services[i].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (e *testEnvImpl) GetContext() TestEnvContext {
	return e.context
}

// GetFreePort returns a free port from the kernel
func GetFreePort() (int, error) {
	return getFreePortWithAddr("localhost:0")
}

// MustGetFreePort returns a free port or fails the test
func MustGetFreePort(t testing.TB) int {
	t.Helper()
	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	return port
}

func getFreePortWithAddr(addrStr string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", addrStr)
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	Port      int    // Uses free port if 0
	Transport string // Defaults to "http"
	Host      string // Defaults to "localhost"
	Source    string // Optional source document
	IndexDir  string // Optional index directory
	Extra     map[string]string
}

// NewTestFlags creates a configured pflag.FlagSet for testing
func NewTestFlags(t testing.TB, opts *FlagOptions) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)

	port := 0
	transport := "http"
	host := "localhost"

	if opts != nil {
		if opts.Port != 0 {
			port = opts.Port
		}
		if opts.Transport != "" {
			transport = opts.Transport
		}
		if opts.Host != "" {
			host = opts.Host
		}
	}

	if port == 0 {
		port = MustGetFreePort(t)
	}

	mustSet(t, flags, "port", fmt.Sprintf("%d", port))
	mustSet(t, flags, "transport", transport)
	mustSet(t, flags, "host", host)

	if opts != nil {
		if opts.Source != "" {
			mustSet(t, flags, "source", opts.Source)
		}
		if opts.IndexDir != "" {
			mustSet(t, flags, "index-dir", opts.IndexDir)
		}
		for name, value := range opts.Extra {
			mustSet(t, flags, name, value)
		}
	}

	return flags
}

func mustSet(t testing.TB, flags *pflag.FlagSet, name, value string) {
	t.Helper()
	if err := flags.Set(name, value); err != nil {
		t.Fatalf("Failed to set flag %q: %v", name, err)
	}
}

// ServerService runs the HTTP server in-process as a test Service
type ServerService struct {
	name    string
	params  app.RunParams
	flags   *pflag.FlagSet
	version string

	cancel context.CancelFunc
	done   chan error
}

// NewServerService creates a service that runs app.RunWithDeps with the given flags
func NewServerService(name string, params app.RunParams, flags *pflag.FlagSet) *ServerService {
	return &ServerService{
		name:    name,
		params:  params,
		flags:   flags,
		version: "test",
	}
}

// Start runs the server and waits for its health endpoint.
// The "base_url" property holds the server URL.
func (s *ServerService) Start() (map[string]any, error) {
	host, err := s.flags.GetString("host")
	if err != nil {
		return nil, err
	}
	port, err := s.flags.GetInt("port")
	if err != nil {
		return nil, err
	}
	baseURL := fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(port)))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() {
		s.done <- app.RunWithDeps(ctx, s.params, s.flags, s.version)
	}()

	if err := s.waitHealthy(baseURL, 10*time.Second); err != nil {
		cancel()
		s.cancel = nil
		return nil, err
	}

	return map[string]any{"base_url": baseURL}, nil
}

func (s *ServerService) waitHealthy(baseURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		select {
		case err := <-s.done:
			return fmt.Errorf("server %s exited early: %w", s.name, err)
		default:
		}

		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("server %s not healthy after %v", s.name, timeout)
}

// Stop cancels the server and waits for it to shut down
func (s *ServerService) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	select {
	case err := <-s.done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-time.After(15 * time.Second):
		return fmt.Errorf("server %s did not stop", s.name)
	}
}

// GetName returns the service name
func (s *ServerService) GetName() string {
	return s.name
}
