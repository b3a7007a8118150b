// Package domain contains the core business concepts for the invoice service:
// the order record rendered into an invoice and the error taxonomy of the
// conversion pipeline.
// Keep this package free of transport (HTTP) and infrastructure (Chrome/Redis) concerns.
package domain
