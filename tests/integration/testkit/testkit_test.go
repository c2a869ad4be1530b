package testkit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sha1n/vraagbaak/internal/app"
)

// Mock service for testing
type mockService struct {
	name       string
	startProps map[string]any
	startErr   error
	stopErr    error
	started    bool
	stopped    bool
	onStop     func() // Optional callback when Stop is called
}

func (m *mockService) Start() (map[string]any, error) {
	m.started = true
	return m.startProps, m.startErr
}

func (m *mockService) Stop() error {
	m.stopped = true
	if m.onStop != nil {
		m.onStop()
	}
	return m.stopErr
}

func (m *mockService) GetName() string {
	return m.name
}

func TestNewTestEnv(t *testing.T) {
	svc := &mockService{name: "test-service"}
	env := NewTestEnv(svc)
	require.NotNil(t, env)

	ctx := env.GetContext()
	require.NotNil(t, ctx)

	props := ctx.GetProperties()
	require.NotNil(t, props)
	assert.Empty(t, props)
}

func TestTestEnvStart(t *testing.T) {
	t.Run("single service success", func(t *testing.T) {
		svc := &mockService{
			name:       "svc1",
			startProps: map[string]any{"port": 8080},
		}
		env := NewTestEnv(svc)

		props, err := env.Start()
		require.NoError(t, err)
		assert.True(t, svc.started)
		assert.Equal(t, 8080, props["port"])
	})

	t.Run("multiple services merge properties", func(t *testing.T) {
		svc1 := &mockService{
			name:       "svc1",
			startProps: map[string]any{"key1": "value1"},
		}
		svc2 := &mockService{
			name:       "svc2",
			startProps: map[string]any{"key2": "value2"},
		}
		env := NewTestEnv(svc1, svc2)

		props, err := env.Start()
		require.NoError(t, err)
		assert.Equal(t, "value1", props["key1"])
		assert.Equal(t, "value2", props["key2"])
	})

	t.Run("start error", func(t *testing.T) {
		svc := &mockService{
			name:     "failing-svc",
			startErr: errors.New("start failed"),
		}
		env := NewTestEnv(svc)

		_, err := env.Start()
		assert.EqualError(t, err, "start failed")
	})
}

func TestTestEnvStop(t *testing.T) {
	t.Run("stops in reverse order", func(t *testing.T) {
		stopOrder := []string{}
		svc1 := &mockService{
			name: "svc1",
			onStop: func() {
				stopOrder = append(stopOrder, "svc1")
			},
		}
		svc2 := &mockService{
			name: "svc2",
			onStop: func() {
				stopOrder = append(stopOrder, "svc2")
			},
		}

		env := NewTestEnv(svc1, svc2)
		_, _ = env.Start()
		_ = env.Stop()

		assert.Equal(t, []string{"svc2", "svc1"}, stopOrder)
	})

	t.Run("returns last error", func(t *testing.T) {
		svc1 := &mockService{name: "svc1", stopErr: errors.New("error1")}
		svc2 := &mockService{name: "svc2", stopErr: errors.New("error2")}
		env := NewTestEnv(svc1, svc2)

		err := env.Stop()
		// svc2 stops first (reverse order), then svc1 - so svc1's error is "last"
		assert.EqualError(t, err, "error1")
	})
}

func TestTestEnvContext(t *testing.T) {
	svc := &mockService{
		name:       "svc",
		startProps: map[string]any{"key": "value"},
	}
	env := NewTestEnv(svc)
	_, _ = env.Start()

	ctx := env.GetContext()

	t.Run("GetProperty found", func(t *testing.T) {
		val, ok := ctx.GetProperty("key")
		assert.True(t, ok)
		assert.Equal(t, "value", val)
	})

	t.Run("GetProperty not found", func(t *testing.T) {
		_, ok := ctx.GetProperty("nonexistent")
		assert.False(t, ok)
	})
}

func TestGetFreePort(t *testing.T) {
	port, err := GetFreePort()
	require.NoError(t, err)
	assert.Positive(t, port)

	// Ports may repeat across calls; only validity is checked
	port2, err := GetFreePort()
	require.NoError(t, err)
	assert.Positive(t, port2)
}

func TestMustGetFreePort(t *testing.T) {
	assert.Positive(t, MustGetFreePort(t))
}

func TestGetFreePortWithAddr_InvalidAddr(t *testing.T) {
	_, err := getFreePortWithAddr("invalid:address:format")
	assert.Error(t, err)
}

func TestNewTestFlags(t *testing.T) {
	t.Run("default options", func(t *testing.T) {
		flags := NewTestFlags(t, nil)

		transport, _ := flags.GetString("transport")
		assert.Equal(t, "http", transport)

		host, _ := flags.GetString("host")
		assert.Equal(t, "localhost", host)

		port, _ := flags.GetInt("port")
		assert.Positive(t, port)

		assert.False(t, flags.Changed("source"), "source is left unset")
	})

	t.Run("custom options", func(t *testing.T) {
		flags := NewTestFlags(t, &FlagOptions{
			Port:      9999,
			Transport: "stdio",
			Host:      "127.0.0.1",
			Source:    "/tmp/doc.txt",
			IndexDir:  "/tmp/idx",
			Extra:     map[string]string{"embedding-provider": "local"},
		})

		port, _ := flags.GetInt("port")
		assert.Equal(t, 9999, port)

		transport, _ := flags.GetString("transport")
		assert.Equal(t, "stdio", transport)

		host, _ := flags.GetString("host")
		assert.Equal(t, "127.0.0.1", host)

		source, _ := flags.GetString("source")
		assert.Equal(t, "/tmp/doc.txt", source)

		indexDir, _ := flags.GetString("index-dir")
		assert.Equal(t, "/tmp/idx", indexDir)

		provider, _ := flags.GetString("embedding-provider")
		assert.Equal(t, "local", provider)
	})

	t.Run("auto-assign port when zero", func(t *testing.T) {
		flags := NewTestFlags(t, &FlagOptions{Port: 0})

		port, _ := flags.GetInt("port")
		assert.Positive(t, port)
	})
}

func TestServerService_StartFailure(t *testing.T) {
	flags := NewTestFlags(t, &FlagOptions{Transport: "invalid"})
	svc := NewServerService("broken", app.DefaultRunParams(), flags)

	assert.Equal(t, "broken", svc.GetName())

	_, err := svc.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited early")
	assert.NoError(t, svc.Stop())
}

func TestServerService_StopBeforeStart(t *testing.T) {
	svc := NewServerService("idle", app.DefaultRunParams(), NewTestFlags(t, nil))
	assert.NoError(t, svc.Stop())
}
