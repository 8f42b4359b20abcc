package rig_test

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/extbuild-go/rig"
)

// listener hands a prepared listener to the rig.
type listener struct{ lr net.Listener }

func (l listener) Listen(context.Context) (net.Listener, error) { return l.lr, nil }

func listen(t *testing.T) (rig.Option, string) {
	t.Helper()
	lr, err := net.Listen(`tcp`, `127.0.0.1:0`)
	require.NoError(t, err)
	return func(cfg *rig.Config) error {
		cfg.Hook(listener{lr})
		return nil
	}, `http://` + lr.Addr().String()
}

func TestServeRequiresListener(t *testing.T) {
	err := rig.Serve(context.Background())
	assert.Error(t, err)
}

func TestApplyAfterServe(t *testing.T) {
	cfg, err := rig.New()
	require.NoError(t, err)
	_ = cfg.Serve(context.Background())
	assert.Error(t, cfg.Apply())
	assert.Error(t, cfg.Watch(t.TempDir(), `*.js`))
}

// refused is a listener hook that cannot listen.
type refused struct{}

func (refused) Listen(context.Context) (net.Listener, error) {
	return nil, errors.New(`address already in use`)
}

func TestServeReturnsListenerFailure(t *testing.T) {
	dist := t.TempDir()
	done := make(chan error, 1)
	go func() {
		done <- rig.Serve(context.Background(),
			func(cfg *rig.Config) error { cfg.Hook(refused{}); return nil },
			func(cfg *rig.Config) error { return cfg.Watch(filepath.Join(dist, `web`), `*.js`) },
			func(cfg *rig.Config) error { return cfg.Watch(filepath.Join(dist, `desktop`), `*.js`) },
		)
	}()
	select {
	case err := <-done:
		assert.ErrorContains(t, err, `address already in use`)
	case <-time.After(3 * time.Second):
		t.Fatal(`Serve hung after the listener failed`)
	}
}

func TestServeReturnsWatchFailure(t *testing.T) {
	option, _ := listen(t)
	blocked := filepath.Join(t.TempDir(), `file`)
	require.NoError(t, os.WriteFile(blocked, nil, 0o644))
	done := make(chan error, 1)
	go func() {
		done <- rig.Serve(context.Background(), option,
			func(cfg *rig.Config) error { return cfg.Watch(t.TempDir(), `*.js`) },
			func(cfg *rig.Config) error { return cfg.Watch(filepath.Join(blocked, `web`), `*.js`) },
		)
	}()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal(`Serve hung after a watch failed`)
	}
}

func TestBuildNotifications(t *testing.T) {
	dist := filepath.Join(t.TempDir(), `dist`, `web`) // created by the rig
	option, base := listen(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- rig.Serve(ctx, option, func(cfg *rig.Config) error { return cfg.Watch(dist, `*.js`) })
	}()

	var seen atomic.Bool
	go func() {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, base+rig.BuildPath, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return
		}
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		var event, data string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == ``:
				if event == rig.BuildEvent && strings.HasSuffix(data, `/extension.js`) {
					seen.Store(true)
				}
				event, data = ``, ``
			case strings.HasPrefix(line, `event:`):
				event = strings.TrimSpace(strings.TrimPrefix(line, `event:`))
			case strings.HasPrefix(line, `data:`):
				data = strings.TrimSpace(strings.TrimPrefix(line, `data:`))
			}
		}
	}()

	// the subscription may start after the first write, so keep writing
	bundle := filepath.Join(dist, `extension.js`)
	require.Eventually(t, func() bool {
		_ = os.WriteFile(bundle, []byte(time.Now().String()), 0o644)
		return seen.Load()
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal(`rig did not stop`)
	}
}

func TestNoWatchNoBuildEndpoint(t *testing.T) {
	option, base := listen(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rig.Serve(ctx, option) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = http.Get(base + rig.BuildPath)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
}
