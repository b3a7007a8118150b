package chrome

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice2pdf/internal/config"
	"invoice2pdf/internal/domain"
)

func fakeBinary(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755))
	return p
}

func devResolver(platform Platform, exes map[Platform]string) *Resolver {
	return &Resolver{
		development: true,
		executables: exes,
		platform:    platform,
		fetchBundled: func() (string, error) {
			return "", errors.New("must not download in development")
		},
	}
}

func TestResolve_DevelopmentUsesPlatformPath(t *testing.T) {
	linux := fakeBinary(t, "chromium-browser")
	darwin := fakeBinary(t, "Google Chrome")

	r := devResolver(Darwin, map[Platform]string{Linux: linux, Darwin: darwin})
	lc, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, darwin, lc.ExecPath)
	assert.False(t, lc.Headless)
	assert.Empty(t, lc.Args)
}

func TestResolve_DevelopmentUnknownPlatformFallsBackToLinux(t *testing.T) {
	linux := fakeBinary(t, "chromium-browser")

	r := devResolver(Platform("plan9"), map[Platform]string{Linux: linux})
	lc, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, linux, lc.ExecPath)
}

func TestResolve_DevelopmentMissingBinary(t *testing.T) {
	r := devResolver(Linux, map[Platform]string{Linux: "/definitely/missing/chrome"})
	_, err := r.Resolve()
	assert.ErrorIs(t, err, domain.ErrBrowserNotFound)

	r = devResolver(Linux, map[Platform]string{Linux: t.TempDir()})
	_, err = r.Resolve()
	assert.ErrorIs(t, err, domain.ErrBrowserNotFound)
}

func TestResolve_ProductionBundledPath(t *testing.T) {
	bin := fakeBinary(t, "chromium")
	r := &Resolver{
		bundledPath: bin,
		args:        []string{"--no-sandbox"},
		fetchBundled: func() (string, error) {
			t.Fatalf("must not download when a bundled path is pinned")
			return "", nil
		},
	}
	lc, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, bin, lc.ExecPath)
	assert.True(t, lc.Headless)
	assert.Equal(t, []string{"--no-sandbox"}, lc.Args)
}

func TestResolve_ProductionDownloadsBrowser(t *testing.T) {
	bin := fakeBinary(t, "chrome")
	calls := 0
	r := &Resolver{fetchBundled: func() (string, error) {
		calls++
		return bin, nil
	}}
	lc, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, bin, lc.ExecPath)
	assert.Equal(t, 1, calls)

	r.fetchBundled = func() (string, error) { return "", errors.New("offline") }
	_, err = r.Resolve()
	assert.ErrorIs(t, err, domain.ErrBrowserNotFound)
}

func TestNewResolver_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Runtime.Development = true
	cfg.Browser.Executables = map[string]string{"LINUX": "/a", "darwin": "/b"}

	r := NewResolver(cfg)
	assert.True(t, r.development)
	assert.Equal(t, "/a", r.executables[Linux])
	assert.Equal(t, "/b", r.executables[Darwin])
	assert.Equal(t, cfg.Browser.ServerlessArgs, r.args)
	assert.NotNil(t, r.fetchBundled)
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		in    string
		name  string
		value interface{}
	}{
		{"--no-sandbox", "no-sandbox", true},
		{"--use-gl=swiftshader", "use-gl", "swiftshader"},
		{"  --window-size=1280,720 ", "window-size", "1280,720"},
		{"--", "", nil},
	}
	for _, tc := range tests {
		name, value := parseArg(tc.in)
		assert.Equal(t, tc.name, name, tc.in)
		assert.Equal(t, tc.value, value, tc.in)
	}
}

func TestAllocatorOptions_HeadfulAddsFlag(t *testing.T) {
	headless := LaunchConfig{ExecPath: "/x", Args: []string{"--no-sandbox", "--"}, Headless: true}
	headful := LaunchConfig{ExecPath: "/x"}

	// defaults + exec path + profile dir + one parsed arg
	assert.Len(t, headless.allocatorOptions("/tmp/p"), len(chromedp.DefaultExecAllocatorOptions)+3)
	assert.Len(t, headful.allocatorOptions("/tmp/p"), len(chromedp.DefaultExecAllocatorOptions)+3)
}
