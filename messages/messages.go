// Package messages resolves message keys to localized templates.
//
// Templates live in embedded UTF-8 TOML tables, one per locale:
// locales/messages.toml is the root table and locales/messages.<tag>.toml
// overrides it for a BCP 47 tag. Tables are always read as UTF-8,
// whatever the encoding of the platform is.
//
// A key is the dotted path of its value:
//
//	[compile]
//	failed = "..."   # compile.failed
package messages

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

//go:embed locales/*.toml
var locales embed.FS

// Store is an immutable mapping from key to template for one locale.
type Store struct {
	tag     language.Tag
	table   map[string]string
	printer *message.Printer
}

var defaultStore = sync.OnceValue(func() *Store {
	s, err := Load(ProcessLocale())
	if err != nil {
		return &Store{tag: language.English, table: map[string]string{}, printer: message.NewPrinter(language.English)}
	}
	return s
})

// Default store of the process locale, loaded once.
func Default() *Store {
	return defaultStore()
}

// Load the store of tag. Keys missing for tag are taken from its parents down to the root table.
func Load(tag language.Tag) (*Store, error) {
	all, err := tables()
	if err != nil {
		return nil, err
	}
	var chain []language.Tag
	for t := tag; ; t = t.Parent() {
		chain = append(chain, t)
		if t == language.Und {
			break
		}
	}
	merged := make(map[string]string)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range all[chain[i]] {
			merged[k] = v
		}
	}
	if tag == language.Und {
		tag = language.English
	}
	b := catalog.NewBuilder()
	for k, v := range merged {
		if err = b.SetString(tag, k, v); err != nil {
			return nil, fmt.Errorf("message %s: %w", k, err)
		}
	}
	return &Store{tag: tag, table: merged, printer: message.NewPrinter(tag, message.Catalog(b))}, nil
}

// Tag the store was loaded for.
func (s *Store) Tag() language.Tag {
	return s.tag
}

// Has reports whether key has a template.
func (s *Store) Has(key string) bool {
	_, ok := s.table[key]
	return ok
}

// Keys dump all keys, sorted.
func (s *Store) Keys() []string {
	v := make([]string, 0, len(s.table))
	for k := range s.table {
		v = append(v, k)
	}
	sort.Strings(v)
	return v
}

// Get renders the template of key with args. An unknown key renders as itself.
func (s *Store) Get(key string, args ...any) string {
	if !s.Has(key) {
		return key
	}
	return s.printer.Sprintf(key, args...)
}

// ProcessLocale reads the locale of the process from LC_ALL, LC_MESSAGES and LANG.
// Unset, C and POSIX locales are the root locale.
func ProcessLocale() language.Tag {
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(env); v != "" {
			return ParseLocale(v)
		}
	}
	return language.Und
}

// ParseLocale parses POSIX locale names such as ja_JP.UTF-8 as well as BCP 47 tags.
func ParseLocale(v string) language.Tag {
	if i := strings.IndexAny(v, ".@"); i >= 0 {
		v = v[:i]
	}
	if v == "" || v == "C" || v == "POSIX" {
		return language.Und
	}
	t, err := language.Parse(strings.ReplaceAll(v, "_", "-"))
	if err != nil {
		return language.Und
	}
	return t
}

func tables() (map[language.Tag]map[string]string, error) {
	files, err := fs.Glob(locales, "locales/messages*.toml")
	if err != nil {
		return nil, err
	}
	v := make(map[language.Tag]map[string]string, len(files))
	for _, f := range files {
		tag, err := tagOf(path.Base(f))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		raw := make(map[string]any)
		if _, err = toml.DecodeFS(locales, f, &raw); err != nil {
			return nil, fmt.Errorf("%s: failed to parse TOML: %w", f, err)
		}
		t := make(map[string]string)
		flatten("", raw, t)
		v[tag] = t
	}
	return v, nil
}

func tagOf(name string) (language.Tag, error) {
	name = strings.TrimSuffix(strings.TrimPrefix(name, "messages"), ".toml")
	if name == "" {
		return language.Und, nil
	}
	return language.Parse(strings.TrimPrefix(name, "."))
}

func flatten(prefix string, raw map[string]any, out map[string]string) {
	for k, v := range raw {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch x := v.(type) {
		case map[string]any:
			flatten(key, x, out)
		case string:
			out[key] = x
		default:
			out[key] = fmt.Sprint(x)
		}
	}
}
