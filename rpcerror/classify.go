package rpcerror

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/0glabs/0g-wallet-rpc/common/rpc"
	"github.com/afex/hystrix-go/hystrix"
	"github.com/pkg/errors"
)

// Non-standard JSON-RPC code used by several providers for request throttling.
const codeLimitExceeded = -32005

// ClassifiedError is a raw transport or JSON-RPC error mapped into a Kind.
type ClassifiedError struct {
	Kind    Kind
	Code    int
	Message string
	ChainID uint64
	URL     string
	Cause   error
}

func (e *ClassifiedError) Error() string {
	if e.Kind == Unknown {
		return fmt.Sprintf("%v(%v, %v)", e.Kind, e.Code, e.Message)
	}

	return fmt.Sprintf("%v: %v", e.Kind, e.Message)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// messagePatterns are matched in order. A revert comes first since the text after it
// is the reason of contract, which may contain any other pattern.
var messagePatterns = []struct {
	kind     Kind
	patterns []string
}{
	{ExecutionReverted, []string{"execution reverted"}},
	{InsufficientFunds, []string{"insufficient funds", "insufficient balance"}},
	{NonceTooLow, []string{"nonce too low", "nonce is too low", "invalid nonce"}},
	{GasPriceTooLow, []string{"underpriced", "gas price too low", "max fee per gas less than block base fee", "fee too low"}},
	{GasLimitTooLow, []string{"intrinsic gas too low", "gas too low", "out of gas"}},
	{GasLimitTooHigh, []string{"exceeds block gas limit", "gas limit too high", "gas limit reached"}},
	{PossibleChainIDMismatch, []string{"invalid sender", "invalid chain id", "chain id mismatch", "incorrect chain id"}},
	{RateLimited, []string{"rate limit", "too many requests", "exceeded the quota", "limit exceeded"}},
	{InvalidAPIKey, []string{"invalid api key", "invalid project id", "unauthorized", "api key"}},
	{ExecutionReverted, []string{"reverted"}},
}

// HTTP status codes which indicate the endpoint itself is unavailable.
var rotationStatusCodes = map[int]struct{}{
	http.StatusNotFound:            {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// Classify maps err into a ClassifiedError, or returns nil if err is nil or unrecognized.
// Matching on messages is case insensitive. Classifying an already classified error
// returns it as is.
func Classify(err error, chainID uint64, url string) *ClassifiedError {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	result := ClassifiedError{ChainID: chainID, URL: url, Cause: err}

	var httpErr *rpc.HTTPError
	if errors.As(err, &httpErr) {
		if len(result.URL) == 0 {
			result.URL = httpErr.URL
		}

		result.Code = httpErr.StatusCode
		result.Message = httpErr.Status
		if len(httpErr.Body) > 0 {
			result.Message = httpErr.Body
		}

		switch httpErr.StatusCode {
		case http.StatusTooManyRequests:
			result.Kind = RateLimited
		case http.StatusUnauthorized, http.StatusForbidden:
			result.Kind = InvalidAPIKey
		case http.StatusRequestTimeout:
			result.Kind = RequestTimedOut
		default:
			result.Kind, _ = matchMessage(httpErr.Body)
		}

		return &result
	}

	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		result.Code = rpcErr.Code
		result.Message = rpcErr.Message

		if rpcErr.Code == codeLimitExceeded {
			result.Kind = RateLimited
		} else if kind, ok := matchMessage(rpcErr.Message); ok {
			result.Kind = kind
		} else if kind, ok := matchMessage(string(rpcErr.Data)); ok {
			result.Kind = kind
		}

		return &result
	}

	result.Message = err.Error()

	if kind, ok := classifyTransport(err); ok {
		result.Kind = kind
		return &result
	}

	if kind, ok := matchMessage(result.Message); ok {
		result.Kind = kind
		return &result
	}

	return nil
}

// IsRotationEligible returns true if the failure indicates the endpoint is unavailable,
// so that the same request could be delivered to another endpoint. Rate limiting,
// invalid API key and any error answered by the node are not eligible.
func IsRotationEligible(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *rpc.HTTPError
	if errors.As(err, &httpErr) {
		_, ok := rotationStatusCodes[httpErr.StatusCode]
		return ok
	}

	if errors.Is(err, rpc.ErrProtocol) {
		return true
	}

	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		return false
	}

	if classified := Classify(err, 0, ""); classified != nil {
		return classified.Kind.IsTransport()
	}

	return false
}

// KindOf returns the kind of err, or false if err is not recognized.
func KindOf(err error) (Kind, bool) {
	if classified := Classify(err, 0, ""); classified != nil {
		return classified.Kind, true
	}

	return Unknown, false
}

func matchMessage(message string) (Kind, bool) {
	if len(message) == 0 {
		return Unknown, false
	}

	lower := strings.ToLower(message)

	for _, v := range messagePatterns {
		for _, pattern := range v.patterns {
			if strings.Contains(lower, pattern) {
				return v.kind, true
			}
		}
	}

	return Unknown, false
}

func classifyTransport(err error) (Kind, bool) {
	switch {
	case errors.Is(err, hystrix.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return RequestTimedOut, true
	case errors.Is(err, hystrix.ErrCircuitOpen), errors.Is(err, hystrix.ErrMaxConcurrency):
		return NetworkConnectionLost, true
	}

	if isCertificateError(err) {
		return InvalidCertificate, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return RequestTimedOut, true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, net.ErrClosed) {
		return NetworkConnectionLost, true
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return NetworkConnectionLost, true
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "x509:"), strings.Contains(lower, "tls:"):
		return InvalidCertificate, true
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "no such host"), strings.Contains(lower, "network is unreachable"):
		return NetworkConnectionLost, true
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"):
		return RequestTimedOut, true
	}

	return Unknown, false
}

func isCertificateError(err error) bool {
	var unknownAuthority x509.UnknownAuthorityError
	var invalid x509.CertificateInvalidError
	var hostname x509.HostnameError
	var verification *tls.CertificateVerificationError

	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &invalid) ||
		errors.As(err, &hostname) ||
		errors.As(err, &verification)
}
