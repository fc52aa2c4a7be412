package rotatefile

import (
	"fmt"
	"path/filepath"
)

// CurrentInfix is the infix used by the file that is currently open for
// writing. When rotation is configured, the active file's on-disk name
// always carries exactly this infix (invariant 2).
const CurrentInfix = "_rCURRENT"

// FileSpec determines a sink's on-disk namespace: directory, basename, an
// optional discriminant (to disambiguate concurrent sinks sharing a
// directory), and a suffix (extension, without the leading dot).
//
// FileSpec methods are pure: they compute paths and glob patterns without
// touching the filesystem.
type FileSpec struct {
	Directory    string
	Basename     string
	Discriminant string
	Suffix       string // defaults to "log" when empty
}

func (fs FileSpec) suffix() string {
	if fs.Suffix == "" {
		return "log"
	}
	return fs.Suffix
}

func (fs FileSpec) stem() string {
	if fs.Discriminant == "" {
		return fs.Basename
	}
	return fs.Basename + "_" + fs.Discriminant
}

// AsPath renders the canonical output path for the given infix. An empty
// infix renders the plain "{stem}.{suffix}" path, used only when rotation is
// not configured at all.
func (fs FileSpec) AsPath(infix string) string {
	name := fs.stem() + infix + "." + fs.suffix()
	return filepath.Join(fs.Directory, name)
}

// CurrentPath is a convenience for AsPath(CurrentInfix).
func (fs FileSpec) CurrentPath() string {
	return fs.AsPath(CurrentInfix)
}

// AsGlob renders a glob pattern for the given infix pattern and suffix
// override (empty means "use fs.Suffix"). It is used to enumerate rotated
// siblings of the active file.
func (fs FileSpec) AsGlob(infixPattern, suffixOverride string) string {
	suffix := suffixOverride
	if suffix == "" {
		suffix = fs.suffix()
	}
	name := fs.stem() + infixPattern + "." + suffix
	return filepath.Join(fs.Directory, name)
}

// NumberInfix renders the 5-digit zero-padded infix for a numbered rotated
// file, e.g. NumberInfix(0) == "_r00000".
func NumberInfix(idx uint32) string {
	return fmt.Sprintf("_r%05d", idx)
}
