package dyncc

import (
	"errors"
	"strings"
)

// Kind categorizes a failure of a Compile call.
type Kind string

const (
	KindToolchainUnavailable        Kind = "toolchain_unavailable"
	KindUnsupportedToolchainVersion Kind = "unsupported_toolchain_version"
	KindInvalidSourceLocation       Kind = "invalid_source_location"
	KindMalformedPackage            Kind = "malformed_package_declaration"
	KindCompilationFailed           Kind = "compilation_failed"
	KindClassResolutionFailed       Kind = "class_resolution_failed"
)

var (
	// ErrToolchainUnavailable occurs when no go command can be found or executed.
	ErrToolchainUnavailable = errors.New("toolchain unavailable")
	// ErrUnsupportedToolchainVersion occurs when the toolchain is older than required or does not match the host runtime.
	ErrUnsupportedToolchainVersion = errors.New("unsupported toolchain version")
	// ErrInvalidSourceLocation occurs when a location can't name a go source file.
	ErrInvalidSourceLocation = errors.New("invalid source location")
	// ErrMalformedPackageDeclaration occurs when a package clause names an invalid package.
	ErrMalformedPackageDeclaration = errors.New("malformed package declaration")
	// ErrCompilationFailed occurs when the toolchain rejects a source unit.
	ErrCompilationFailed = errors.New("compilation failed")
	// ErrClassResolutionFailed occurs when a compiled unit can't be located or linked.
	ErrClassResolutionFailed = errors.New("class resolution failed")
	// ErrClassNotFound occurs when a Loader knows nothing about a name.
	ErrClassNotFound = errors.New("class not found")
	// ErrIncompatible occurs when a constructed value lacks the expected capability.
	ErrIncompatible = errors.New("incompatible class")
	// ErrMissingSymbol occurs when can't found a symbol.
	ErrMissingSymbol = errors.New("missing symbol")
	// ErrFreed occurs when use a Class after it was freed.
	ErrFreed = errors.New("class already freed")
)

var sentinels = map[Kind]error{
	KindToolchainUnavailable:        ErrToolchainUnavailable,
	KindUnsupportedToolchainVersion: ErrUnsupportedToolchainVersion,
	KindInvalidSourceLocation:       ErrInvalidSourceLocation,
	KindMalformedPackage:            ErrMalformedPackageDeclaration,
	KindCompilationFailed:           ErrCompilationFailed,
	KindClassResolutionFailed:       ErrClassResolutionFailed,
}

// Error is the failure of one Compile call.
//
// It matches the sentinel of its Kind with [errors.Is]:
//
//	if errors.Is(err, dyncc.ErrCompilationFailed) {
//		var e *dyncc.Error
//		errors.As(err, &e)
//		for _, d := range e.Diagnostics { ... }
//	}
type Error struct {
	Kind        Kind
	Location    string
	Detail      string
	Diagnostics []Diagnostic
	Cause       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(string(e.Kind))
	b.WriteByte(']')
	if e.Location != "" {
		b.WriteString(" ")
		b.WriteString(e.Location)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

func newError(kind Kind, location, detail string, cause error) *Error {
	return &Error{Kind: kind, Location: location, Detail: detail, Cause: cause}
}
