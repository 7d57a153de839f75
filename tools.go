package dyncc

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZenLiuCN/fn"
	"github.com/pkujhd/goloader"
)

// CopyFile from src to dest with optional src file info
func CopyFile(src string, dest string, si fs.FileInfo) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer fn.IgnoreClose(sf)
	df, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer fn.IgnoreClose(df)
	if _, err = io.Copy(df, sf); err != nil {
		return
	}
	if si == nil {
		if si, err = os.Stat(src); err != nil {
			return
		}
	}
	return os.Chmod(dest, si.Mode())
}

// CopyDir from src to dest with optional src file info
func CopyDir(src string, dest string, si fs.FileInfo) (err error) {
	if si == nil {
		if si, err = os.Stat(src); err != nil {
			return err
		}
	}
	if err = os.MkdirAll(dest, si.Mode()); err != nil {
		return err
	}
	return filepath.Walk(src, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		dp := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(dp, info.Mode())
		}
		return CopyFile(path, dp, info)
	})
}

// Infos is a stringer slice of Info
type Infos []*Info

func (i Infos) String() string {
	s := strings.Builder{}
	for _, v := range i {
		s.WriteString(v.String())
	}
	return s.String()
}

// Info contains the import information of one package inside a linkable artifact
type Info struct {
	PkgPath string
	Imports map[string]string // with pairs of package import path and version
}

func (i Info) String() string {
	s := strings.Builder{}
	s.WriteString(i.PkgPath)
	s.WriteByte('\n')
	k := fn.MapKeys(i.Imports)
	sort.Strings(k)
	for _, p := range k {
		if v := i.Imports[p]; v != "" {
			s.WriteString(fmt.Sprintf("\t%s@%s\n", p, v))
		} else {
			s.WriteString(fmt.Sprintf("\t%s\n", p))
		}
	}
	return s.String()
}

// ArtifactImports resolve all packages imported by a linkable artifact, with the version of those from modules.
func ArtifactImports(a *Artifact) (infos Infos, err error) {
	if a.Kind() != KindLinkable {
		return nil, fmt.Errorf("imports of %s: unsupported artifact kind %s", a.Name(), a.Kind())
	}
	var lk *goloader.Linker
	if lk, err = goloader.UnSerialize(a.Reader()); err != nil {
		return
	}
	for _, pkg := range lk.Packages {
		info := &Info{PkgPath: pkg.PkgPath, Imports: importsOf(pkg.ImportPkgs, pkg.CUFiles)}
		infos = append(infos, info)
	}
	return
}

// importsOf pairs each imported package with the module version found in the compilation unit file names.
func importsOf(imports, files []string) map[string]string {
	v := make(map[string]string, len(imports))
	for _, pkg := range imports {
		v[pkg] = ""
	}
	for _, f := range files {
		f = strings.TrimPrefix(f, "gofile..")
		if strings.HasPrefix(f, "$GOROOT") {
			continue
		}
		if strings.IndexByte(f, '!') >= 0 {
			f = unescapeModulePath(f)
		}
		for _, s := range imports {
			x := strings.Index(f, s+"@")
			if x < 0 || v[s] != "" {
				continue
			}
			ver := f[x+len(s)+1:]
			if y := strings.IndexByte(ver, '/'); y >= 0 {
				ver = ver[:y]
			}
			v[s] = ver
		}
	}
	return v
}

// unescapeModulePath reverts the module cache escaping of upper case letters, !x for X.
func unescapeModulePath(f string) string {
	v := strings.Builder{}
	x := false
	for _, i := range []byte(f) {
		switch {
		case i == '!':
			x = true
		case x:
			x = false
			v.WriteByte(i - 32)
		default:
			v.WriteByte(i)
		}
	}
	return v.String()
}
