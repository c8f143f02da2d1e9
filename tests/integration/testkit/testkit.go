package testkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sha1n/mcp-sitesearch-server/internal/app"
	"github.com/sha1n/mcp-sitesearch-server/internal/config"
	"github.com/spf13/pflag"
)

// Properties published by ServerService
const (
	PropBaseURL   = "base_url"
	PropIndexPath = "index_path"
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
	started  int
	context  *testEnvContextImpl
}

// NewTestEnv creates a new test environment with the given services
func NewTestEnv(services ...Service) TestEnv {
	return &testEnvImpl{
		services: services,
		context:  &testEnvContextImpl{properties: make(map[string]any)},
	}
}

// Start starts services in order. If one fails, the ones already running are stopped.
func (e *testEnvImpl) Start() (map[string]any, error) {
	for _, s := range e.services {
		props, err := s.Start()
		if err != nil {
			startErr := fmt.Errorf("failed to start %s: %w", s.GetName(), err)
			return nil, errors.Join(startErr, e.Stop())
		}
		e.started++
		for k, v := range props {
			e.context.properties[k] = v
		}
	}
	return e.context.properties, nil
}

// Stop stops started services in reverse order and joins their errors
func (e *testEnvImpl) Stop() error {
	var errs []error
	for i := e.started - 1; i >= 0; i-- {
		if err := e.services[i].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", e.services[i].GetName(), err))
		}
	}
	e.started = 0
	return errors.Join(errs...)
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
	Port      int      // Uses free port if 0
	Transport string   // Defaults to "sse"
	AuthType  string   // Defaults to "none"
	Host      string   // Defaults to "localhost"
	APIKeys   []string // Sets auth-api-keys when not empty
	IndexPath string   // Sets index when not empty
	Watch     bool
}

// NewTestFlags creates a configured pflag.FlagSet for testing
func NewTestFlags(t testing.TB, opts *FlagOptions) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)

	o := FlagOptions{Transport: "sse", AuthType: "none", Host: "localhost"}
	if opts != nil {
		o.Port = opts.Port
		o.APIKeys = opts.APIKeys
		o.IndexPath = opts.IndexPath
		o.Watch = opts.Watch
		if opts.Transport != "" {
			o.Transport = opts.Transport
		}
		if opts.AuthType != "" {
			o.AuthType = opts.AuthType
		}
		if opts.Host != "" {
			o.Host = opts.Host
		}
	}

	if o.Port == 0 {
		o.Port = MustGetFreePort(t)
	}

	_ = flags.Set("port", fmt.Sprintf("%d", o.Port))
	_ = flags.Set("transport", o.Transport)
	_ = flags.Set("auth-type", o.AuthType)
	_ = flags.Set("host", o.Host)
	if len(o.APIKeys) > 0 {
		_ = flags.Set("auth-api-keys", strings.Join(o.APIKeys, ","))
	}
	if o.IndexPath != "" {
		_ = flags.Set("index", o.IndexPath)
	}
	if o.Watch {
		_ = flags.Set("watch", "true")
		_ = flags.Set("watch-debounce", "50ms")
	}

	return flags
}

// WaitForHTTP polls url until it answers with any status or timeout elapses
func WaitForHTTP(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(timeout)
	for {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s not reachable after %v: %w", url, timeout, err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// ServerService runs the site search server over SSE, as the CLI would
type ServerService struct {
	t    testing.TB
	opts FlagOptions
	srv  *http.Server
	done chan error
}

// NewServerService creates a ServerService serving the payload at opts.IndexPath
func NewServerService(t testing.TB, opts FlagOptions) *ServerService {
	return &ServerService{t: t, opts: opts}
}

func (s *ServerService) GetName() string {
	return "sitesearch-server"
}

func (s *ServerService) Start() (map[string]any, error) {
	flags := NewTestFlags(s.t, &s.opts)
	host, _ := flags.GetString("host")
	port, _ := flags.GetInt("port")

	started := make(chan *http.Server, 1)
	params := app.DefaultRunParams()
	params.StartSSEServer = func(instance *app.Instance, settings *config.Settings) error {
		srv, err := app.NewSSEServer(instance, settings)
		if err != nil {
			return err
		}
		started <- srv
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	s.done = make(chan error, 1)
	go func() {
		s.done <- app.RunWithDeps(context.Background(), params, flags, "test")
	}()

	select {
	case s.srv = <-started:
	case err := <-s.done:
		return nil, fmt.Errorf("server exited during startup: %w", err)
	case <-time.After(10 * time.Second):
		return nil, errors.New("timed out waiting for server to start")
	}

	baseURL := fmt.Sprintf("http://%s:%d", host, port)
	if err := WaitForHTTP(baseURL+"/health", 5*time.Second); err != nil {
		return nil, errors.Join(err, s.Stop())
	}

	indexPath, _ := flags.GetString("index")
	return map[string]any{
		PropBaseURL:   baseURL,
		PropIndexPath: indexPath,
	}, nil
}

// Stop closes the HTTP server and waits for the run loop to release the index
func (s *ServerService) Stop() error {
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Close(); err != nil {
		return err
	}
	s.srv = nil

	select {
	case err := <-s.done:
		return err
	case <-time.After(10 * time.Second):
		return errors.New("timed out waiting for server to stop")
	}
}
