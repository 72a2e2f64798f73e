// Package errs defines the domain error taxonomy shared by every storage
// and query component, replacing the original engine's habit of aliasing
// errno into a BOLO_E* range. Callers should match on Kind via errors.As,
// not on error strings.
package errs

import "fmt"

// Kind discriminates the domain errors a bolodb operation can fail with.
// OS-level errors (disk full, permission denied) are wrapped, not folded
// into this enum.
type Kind int

const (
	// NotSet means a hash/catalog lookup missed.
	NotSet Kind = iota
	// BadHash means main.db is corrupt or its HMAC trailer is invalid.
	BadHash
	// BadTree means a btree node's header, magic, or size is invalid.
	BadTree
	// BadSlab means a slab header is invalid.
	BadSlab
	// BlockFull means the target block has no room for another cell.
	BlockFull
	// BlockRange means a timestamp falls outside a block's representable range.
	BlockRange
	// NoMainDb means main.db is missing.
	NoMainDb
	// NoDbRoot means the database root directory is missing.
	NoDbRoot
	// BadHmac means a trailer HMAC failed to verify.
	BadHmac
	// EndianMismatch means a slab's endian sentinel doesn't match this host.
	EndianMismatch
	// NoSlab means a referenced slab id isn't present.
	NoSlab
	// NoBlock means a referenced block id isn't present.
	NoBlock
	// NoSuchRef means a query references an undefined series.
	NoSuchRef
	// Invalid means malformed input (a submission line, a query, a tag set).
	Invalid
)

func (k Kind) String() string {
	switch k {
	case NotSet:
		return "NotSet"
	case BadHash:
		return "BadHash"
	case BadTree:
		return "BadTree"
	case BadSlab:
		return "BadSlab"
	case BlockFull:
		return "BlockFull"
	case BlockRange:
		return "BlockRange"
	case NoMainDb:
		return "NoMainDb"
	case NoDbRoot:
		return "NoDbRoot"
	case BadHmac:
		return "BadHmac"
	case EndianMismatch:
		return "EndianMismatch"
	case NoSlab:
		return "NoSlab"
	case NoBlock:
		return "NoBlock"
	case NoSuchRef:
		return "NoSuchRef"
	case Invalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carried by Kind-tagged failures.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New constructs an *Error of the given kind with a formatted message.
func New(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Is lets errors.Is(err, errs.Sentinel(errs.NotSet)) work by kind rather
// than identity, via the Sentinel wrapper defined below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel returns a comparable *Error carrying only a Kind, suitable as
// the target of errors.Is(err, errs.Sentinel(errs.NotSet)).
func Sentinel(k Kind) error {
	return &Error{Kind: k}
}
