package factors

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors, comparable with errors.Is().
var (
	// ErrFactorNotFound indicates no active factor record matched the
	// query and the row carried no override. The caller decides whether
	// to flag or reject the row.
	ErrFactorNotFound = constError("no matching emission factor")

	// ErrEmptySnapshot indicates a resolver was queried against a
	// snapshot with no active records.
	ErrEmptySnapshot = constError("factor snapshot is empty")
)
