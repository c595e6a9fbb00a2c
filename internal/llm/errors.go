package llm

import (
	"errors"
	"net/http"

	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// ProviderError carries the classified failure reason for one provider
// call, so the Chain can decide retry-same-provider vs advance-to-next-
// provider vs fail-the-task (spec §4.3, §7).
type ProviderError struct {
	Kind       types.ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status code to an ErrorKind (spec §4.3's
// failure classes: rate-limited, transient-5xx/timeout, auth, unavailable).
func classifyStatus(status int, err error) *ProviderError {
	switch {
	case status == http.StatusTooManyRequests:
		return &ProviderError{Kind: types.ErrRateLimited, StatusCode: status, Err: err}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ProviderError{Kind: types.ErrAuth, StatusCode: status, Err: err}
	case status >= 500:
		return &ProviderError{Kind: types.ErrTransientNetwork, StatusCode: status, Err: err}
	case status == 0:
		return &ProviderError{Kind: types.ErrTransientNetwork, StatusCode: status, Err: err}
	default:
		return &ProviderError{Kind: types.ErrUnavailable, StatusCode: status, Err: err}
	}
}

// asProviderError extracts a *ProviderError from err, defaulting to
// ErrTransientNetwork (a network-level error that never reached the HTTP
// layer, e.g. DNS failure or connection refused) if err is not already
// classified.
func asProviderError(err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Kind: types.ErrTransientNetwork, Err: err}
}

// retryableWithinProvider reports whether the chain should retry the same
// provider (rate-limited, transient-5xx, timeout) rather than advance to
// the next one (spec §4.3 algorithm).
func retryableWithinProvider(kind types.ErrorKind) bool {
	switch kind {
	case types.ErrRateLimited, types.ErrTransientNetwork:
		return true
	default:
		return false
	}
}
