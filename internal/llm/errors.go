package llm

import "fmt"

// GatewayError reports a failed model request: a transport error, an auth
// failure, or a non-2xx response.
type GatewayError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s gateway: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s gateway: %v", e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// EmptyOutputError reports a successful model response with no generated
// text in any known output location.
type EmptyOutputError struct {
	Provider string
}

func (e *EmptyOutputError) Error() string {
	return fmt.Sprintf("%s gateway: response contained no output text", e.Provider)
}

// MalformedResponseError reports model text from which no JSON document
// could be parsed. Chunk retains the offending text for diagnostics.
type MalformedResponseError struct {
	Chunk string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("no JSON document recoverable from model output: %v (chunk: %s)", e.Err, truncateForLog(e.Chunk))
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// SchemaViolationError reports a recovered JSON value that is not an
// object, such as a bare string or number.
type SchemaViolationError struct {
	Value string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("model output is valid JSON but not an object: %s", truncateForLog(e.Value))
}

func truncateForLog(s string) string {
	const limit = 256
	if len(s) > limit {
		return fmt.Sprintf("%s... [truncated, total_length=%d]", s[:limit], len(s))
	}
	return s
}
