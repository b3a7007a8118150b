package domain

import "errors"

var (
	// ErrInvalidTarget signals that the browser could not navigate to the
	// render target: the URL is malformed or the host cannot be reached.
	ErrInvalidTarget = errors.New("invalid navigation target")
	// ErrBadRenderResponse signals that the render target answered the
	// navigation with an error-range status.
	ErrBadRenderResponse = errors.New("cannot render the page correctly")
	// ErrBrowserNotFound signals that no browser executable could be resolved.
	ErrBrowserNotFound = errors.New("browser executable not found")
)
