// Package pathutil holds the POSIX path and file name helpers shared by
// the backends. Paths are '/'-separated with "/" as the root; nothing
// here touches the filesystem.
package pathutil

import "strings"

// Join appends child to parent with a single '/'.
// No cleaning is done: Join("/a/", "b") is "/a//b".
func Join(parent, child string) string {
	if parent == "/" {
		return "/" + child
	}
	return parent + "/" + child
}

// RemoveExt truncates name at its last '.'.
// A name without any '.' truncates to the empty string, so callers
// should only pass names known to carry an extension.
func RemoveExt(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[:i]
}

// Ext returns the part of name after its last '.'.
// A leading '.' is not a separator, so ".bashrc" and "." have no
// extension while ".a.b" has "b".
func Ext(name string) (string, bool) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return "", false
	}
	return name[i+1:], true
}

// Base returns the last element of p. Trailing slashes are ignored.
func Base(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Dir returns everything but the last element of p.
func Dir(p string) string {
	if p == "" {
		return "."
	}
	p = strings.TrimRight(p, "/")
	i := strings.LastIndexByte(p, '/')
	switch {
	case p == "":
		return "/"
	case i < 0:
		return "."
	case i == 0:
		return "/"
	}
	return p[:i]
}
