package gzgen

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	protoExt = ".proto"

	// DefaultHeaderExt is the extension of the public header generated by
	// HeaderGenerator.
	DefaultHeaderExt = ".gz.h"
	// IndexExt is the extension of the message type index file.
	IndexExt = ".pb_index"

	generatedHeaderExt = ".pb.h"
	generatedSourceExt = ".pb.cc"
	detailsDir         = "details"
)

// ErrNotProtoFile is returned when a descriptor's file name does not end in
// ".proto", so no output names can be derived from it.
var ErrNotProtoFile = errors.New("file name does not end in " + protoExt)

// Names are the output paths and identifiers derived from the name of a
// .proto file. They are pure functions of that name.
//
// For "gz/msgs/foo.proto":
//
//	Identifier       gz_msgs_foo
//	Header           gz/msgs/foo.gz.h
//	DetailHeader     gz/msgs/details/foo.pb.h
//	GeneratedHeader  gz/msgs/foo.pb.h
//	GeneratedSource  gz/msgs/foo.pb.cc
//	Index            gz_msgs_foo.pb_index
type Names struct {
	// Source is the descriptor's file name.
	Source string
	// Dirs are the directory components of Source, outermost first.
	Dirs []string
	// Stem is the base name of Source without the .proto extension.
	Stem string

	// Identifier is Dirs joined with "_" followed by Stem. It is the include
	// guard of the public header and the name of the index file.
	Identifier string
	// Header is the public header that shadows protoc's header.
	Header string
	// DetailHeader is where protoc's own header lives once it is moved out of
	// the way of Header.
	DetailHeader string
	// GeneratedHeader and GeneratedSource are the files protoc's C++
	// generator creates for Source.
	GeneratedHeader string
	GeneratedSource string
	// Index lists the message types of Source, one per line.
	Index string
}

// DeriveNames computes the output names for the given descriptor file name.
// The name is always split on '/', whatever the host platform, since that is
// the separator protoc uses for descriptor names. A name with no directory
// components yields paths made only of the stem.
func DeriveNames(fileName string) (Names, error) {
	if !strings.HasSuffix(fileName, protoExt) {
		return Names{}, errors.Wrapf(ErrNotProtoFile, "cannot derive output names for %q", fileName)
	}
	parts := strings.Split(fileName, "/")
	stem := strings.TrimSuffix(parts[len(parts)-1], protoExt)
	if stem == "" {
		return Names{}, errors.Errorf("cannot derive output names for %q: empty file stem", fileName)
	}
	dirs := parts[:len(parts)-1]
	for _, d := range dirs {
		if d == "" || d == "." || d == ".." {
			return Names{}, errors.Errorf("cannot derive output names for %q: not a clean relative path", fileName)
		}
	}

	n := Names{
		Source: fileName,
		Dirs:   dirs,
		Stem:   stem,
	}
	n.Identifier = n.identifierPrefix() + stem
	n.Header = n.Path(stem + DefaultHeaderExt)
	n.DetailHeader = n.Path(detailsDir + "/" + stem + generatedHeaderExt)
	n.GeneratedHeader = n.Path(stem + generatedHeaderExt)
	n.GeneratedSource = n.Path(stem + generatedSourceExt)
	n.Index = n.Identifier + IndexExt
	return n, nil
}

// Path returns name placed in the directory of the source file.
func (n Names) Path(name string) string {
	if len(n.Dirs) == 0 {
		return name
	}
	return strings.Join(n.Dirs, "/") + "/" + name
}

func (n Names) identifierPrefix() string {
	if len(n.Dirs) == 0 {
		return ""
	}
	return strings.Join(n.Dirs, "_") + "_"
}

// Namespaces splits a proto package into C++ namespace names, outermost
// first. Empty components are dropped, so an unset package has no
// namespaces.
func Namespaces(pkg string) []string {
	var ns []string
	for _, part := range strings.Split(pkg, ".") {
		if part != "" {
			ns = append(ns, part)
		}
	}
	return ns
}

// ReplaceAll returns a copy of s with every non-overlapping occurrence of old
// replaced by new, scanning left to right. Text produced by a replacement is
// never rescanned. An empty old leaves s unchanged.
func ReplaceAll(s, old, new string) string {
	if old == "" {
		return s
	}
	return strings.ReplaceAll(s, old, new)
}

// cppQualified returns the C++ name of a message declared in pkg.
func cppQualified(pkg, name string) string {
	return ReplaceAll(pkg, ".", "::") + "::" + name
}
