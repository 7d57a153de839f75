package dyncc

import (
	"bufio"
	"bytes"
	"go/parser"
	"go/token"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Extension of go source files.
const Extension = ".go"

// DefaultPackage governs source units without a package clause.
const DefaultPackage = "dynamicunit"

var (
	classNamePattern = regexp.MustCompile(`(?:^|.*/)(\w+)\.go$`)
	packagePattern   = regexp.MustCompile(`^\s*package ([\w.]+);?$`)
)

// SourceUnit is a single in memory compilation unit.
type SourceUnit struct {
	Name    string // fully qualified name: Package.Simple
	Package string
	Simple  string
	Text    []byte
}

// NewSourceUnit for the simple name inside pkg.
func NewSourceUnit(pkg, simple string, text []byte) *SourceUnit {
	return &SourceUnit{Name: pkg + "." + simple, Package: pkg, Simple: simple, Text: text}
}

// URI is a synthetic location of the unit, it does not exist anywhere.
func (u *SourceUnit) URI() string {
	return "string:///" + u.Path()
}

// Path of the unit relative to any root it may be materialized under.
func (u *SourceUnit) Path() string {
	return strings.ReplaceAll(u.Name, ".", "/") + Extension
}

// Content is the source text as is.
func (u *SourceUnit) Content() []byte {
	return u.Text
}

// Constructor is the symbol of the function that creates instances of the unit.
func (u *SourceUnit) Constructor() string {
	return u.Package + ".New" + u.Simple
}

// ResolveLocation turns a path or file URL into a local path.
func ResolveLocation(location string) (string, error) {
	if location == "" {
		return "", ErrInvalidSourceLocation
	}
	if !strings.Contains(location, "://") && !strings.HasPrefix(location, "file:") {
		return filepath.Clean(location), nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", ErrInvalidSourceLocation
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", ErrInvalidSourceLocation
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if p == "" {
		return "", ErrInvalidSourceLocation
	}
	return filepath.FromSlash(p), nil
}

// ClassName extracts the simple name from a location shaped as .../<word characters>.go
func ClassName(location string) (string, error) {
	m := classNamePattern.FindStringSubmatch(filepath.ToSlash(location))
	if m == nil {
		return "", ErrInvalidSourceLocation
	}
	return m[1], nil
}

// DeclarePackage find the package clause of text.
//
// The first line shaped as 'package name' governs the unit and text is returned untouched,
// a name that is not an identifier, such as a.b.c, fails with ErrMalformedPackageDeclaration.
// Without such line, a clause of the fallback package is prepended.
func DeclarePackage(text []byte, fallback string) (code []byte, pkg string, err error) {
	sc := bufio.NewScanner(bytes.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), len(text)+1)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		m := packagePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if !token.IsIdentifier(m[1]) {
			return nil, "", ErrMalformedPackageDeclaration
		}
		return text, m[1], nil
	}
	if err = sc.Err(); err != nil {
		return
	}
	code = make([]byte, 0, len(text)+len(fallback)+9)
	code = append(code, "package "...)
	code = append(code, fallback...)
	code = append(code, '\n')
	code = append(code, text...)
	return code, fallback, nil
}

// ImportsOf the unit, in declaration order.
func ImportsOf(u *SourceUnit) (v []string, err error) {
	f, err := parser.ParseFile(token.NewFileSet(), u.Path(), u.Text, parser.ImportsOnly)
	if f == nil {
		return nil, err
	}
	for _, spec := range f.Imports {
		p, e := strconv.Unquote(spec.Path.Value)
		if e != nil {
			continue
		}
		v = append(v, p)
	}
	return v, err
}
