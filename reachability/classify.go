package reachability

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// StatusCategory describes why a probe attempt ended the way it did.
// It is used for logs and metric labels; the verdict only depends on
// whether the status code was 200.
type StatusCategory string

const (
	// StatusOK means the endpoint answered 200.
	StatusOK StatusCategory = "ok"
	// StatusTimeout means the attempt exceeded its deadline.
	StatusTimeout StatusCategory = "timeout"
	// StatusConnectionError means the connection was refused or reset.
	StatusConnectionError StatusCategory = "connection_error"
	// StatusDNSError means the host name could not be resolved.
	StatusDNSError StatusCategory = "dns_error"
	// StatusTLSError means a TLS handshake or certificate error occurred.
	StatusTLSError StatusCategory = "tls_error"
	// StatusUnhealthy means the endpoint answered with a status other than 200.
	StatusUnhealthy StatusCategory = "unhealthy"
	// StatusCanceled means the engine was stopped while the attempt ran.
	StatusCanceled StatusCategory = "canceled"
	// StatusError means an unclassified failure.
	StatusError StatusCategory = "error"
)

// AllStatusCategories lists every category, in label order.
var AllStatusCategories = []StatusCategory{
	StatusOK,
	StatusTimeout,
	StatusConnectionError,
	StatusDNSError,
	StatusTLSError,
	StatusUnhealthy,
	StatusCanceled,
	StatusError,
}

// StatusError is the failure recorded when the endpoint answered with a
// status code other than 200.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// classifyError maps a probe failure to a StatusCategory.
// Order: typed status error, context errors, DNS, refused/timeout
// inside net.OpError, TLS, fallback.
func classifyError(err error) StatusCategory {
	if err == nil {
		return StatusOK
	}

	var se *StatusError
	if errors.As(err, &se) {
		return StatusUnhealthy
	}

	if errors.Is(err, context.Canceled) {
		return StatusCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return StatusDNSError
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) || errors.Is(opErr.Err, syscall.ECONNRESET) {
			return StatusConnectionError
		}
		if opErr.Timeout() {
			return StatusTimeout
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeout
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) || isTLSError(err) {
		return StatusTLSError
	}

	return StatusError
}

// isTLSError checks if the error message indicates a TLS error.
func isTLSError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "tls:") ||
		strings.Contains(msg, "x509:") ||
		strings.Contains(msg, "certificate")
}
