package gzgen

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// File is the read-only view of a file descriptor the generators need.
// protoreflect.FileDescriptor satisfies it.
type File interface {
	Path() string
	Package() protoreflect.FullName
	Messages() protoreflect.MessageDescriptors
}

// FileFacts are what the generators extract from one file descriptor.
type FileFacts struct {
	Names Names
	// Package is the proto package, possibly empty.
	Package string
	// Namespaces are the C++ namespaces for Package, outermost first.
	Namespaces []string
	// Messages are the simple names of the top-level messages in
	// declaration order.
	Messages []string
}

// Walk extracts the facts needed for generation from fd.
func Walk(fd File) (*FileFacts, error) {
	names, err := DeriveNames(fd.Path())
	if err != nil {
		return nil, err
	}
	pkg := string(fd.Package())
	msgs := fd.Messages()
	facts := &FileFacts{
		Names:      names,
		Package:    pkg,
		Namespaces: Namespaces(pkg),
		Messages:   make([]string, msgs.Len()),
	}
	for i := 0; i < msgs.Len(); i++ {
		name := string(msgs.Get(i).Name())
		if name == "" {
			return nil, errors.Errorf("%s: message %d has no name", fd.Path(), i)
		}
		facts.Messages[i] = name
	}
	return facts, nil
}
