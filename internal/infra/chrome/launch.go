package chrome

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"

	"invoice2pdf/internal/config"
	"invoice2pdf/internal/domain"
)

// Platform identifies an operating system with a known browser location.
type Platform string

const (
	Linux   Platform = "linux"
	Windows Platform = "windows"
	Darwin  Platform = "darwin"
)

// CurrentPlatform maps runtime.GOOS onto a Platform. Unrecognized systems are
// returned as-is and resolve through the Linux entry.
func CurrentPlatform() Platform {
	return Platform(runtime.GOOS)
}

// LaunchConfig is everything needed to start one browser process.
type LaunchConfig struct {
	ExecPath string
	Args     []string
	Headless bool
}

// Resolver decides which browser binary to launch for the current runtime.
type Resolver struct {
	development bool
	executables map[Platform]string
	bundledPath string
	args        []string
	platform    Platform

	// fetchBundled downloads (or finds in cache) the production browser.
	fetchBundled func() (string, error)
}

// NewResolver builds a Resolver from the browser configuration.
func NewResolver(cfg config.Config) *Resolver {
	exes := make(map[Platform]string, len(cfg.Browser.Executables))
	for k, v := range cfg.Browser.Executables {
		exes[Platform(strings.ToLower(k))] = v
	}
	bundleDir := cfg.Browser.BundleDir
	return &Resolver{
		development: cfg.Runtime.Development,
		executables: exes,
		bundledPath: cfg.Browser.BundledPath,
		args:        append([]string(nil), cfg.Browser.ServerlessArgs...),
		platform:    CurrentPlatform(),
		fetchBundled: func() (string, error) {
			b := launcher.NewBrowser()
			if bundleDir != "" {
				b.RootDir = bundleDir
			}
			return b.Get()
		},
	}
}

// Resolve returns the launch configuration. Errors are not retried.
func (r *Resolver) Resolve() (LaunchConfig, error) {
	if r.development {
		path, ok := r.executables[r.platform]
		if !ok {
			path = r.executables[Linux]
		}
		if err := checkExecutable(path); err != nil {
			return LaunchConfig{}, err
		}
		return LaunchConfig{ExecPath: path, Headless: false}, nil
	}

	path := r.bundledPath
	if path == "" {
		p, err := r.fetchBundled()
		if err != nil {
			return LaunchConfig{}, fmt.Errorf("%w: downloading bundled browser: %v", domain.ErrBrowserNotFound, err)
		}
		path = p
	}
	if err := checkExecutable(path); err != nil {
		return LaunchConfig{}, err
	}
	return LaunchConfig{
		ExecPath: path,
		Args:     append([]string(nil), r.args...),
		Headless: true,
	}, nil
}

func checkExecutable(path string) error {
	if path == "" {
		return fmt.Errorf("%w: no path configured", domain.ErrBrowserNotFound)
	}
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBrowserNotFound, err)
	}
	if st.IsDir() {
		return fmt.Errorf("%w: %s is a directory", domain.ErrBrowserNotFound, path)
	}
	return nil
}

// allocatorOptions turns a LaunchConfig into chromedp exec allocator options.
func (lc LaunchConfig) allocatorOptions(userDataDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(lc.ExecPath),
		chromedp.UserDataDir(userDataDir),
	)
	if !lc.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	for _, a := range lc.Args {
		name, value := parseArg(a)
		if name == "" {
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// parseArg splits "--name=value" into a chromedp flag. Bare switches map to true.
func parseArg(arg string) (string, interface{}) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if arg == "" {
		return "", nil
	}
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return name, true
	}
	return name, value
}
