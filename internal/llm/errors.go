package llm

import "fmt"

// ErrOracleUnavailable indicates the backend could not produce a completion
// (network failure, timeout, quota, empty reply).
type ErrOracleUnavailable struct {
	Err error
}

func (e *ErrOracleUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oracle unavailable: %v", e.Err)
	}
	return "oracle unavailable"
}

func (e *ErrOracleUnavailable) Unwrap() error { return e.Err }

// ErrRateLimit indicates the backend rejected the call with HTTP 429.
type ErrRateLimit struct {
	Err error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates a completion that could not be decoded into
// the expected JSON shape.
type ErrInvalidResponse struct {
	Raw string
	Err error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid oracle response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }
