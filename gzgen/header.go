package gzgen

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gzmsgs/gzprotoc/internal/logging"
)

// DefaultSupportInclude is included by every generated public header.
const DefaultSupportInclude = "gz/msgs/Export.hh"

// HeaderGenerator generates, for each .proto file, a public header that wraps
// the header protoc generates and declares smart pointer aliases for every
// message in the file. It also writes an index of the file's message names.
//
// protoc writes gz/msgs/foo.pb.h; the build then moves it to
// gz/msgs/details/foo.pb.h and installs the generated gz/msgs/foo.gz.h in its
// place, so downstream code only ever includes the wrapper.
type HeaderGenerator struct {
	// SupportInclude is an extra header included after <memory>. Empty means
	// none.
	SupportInclude string
	// HeaderExt is the extension of the public header.
	HeaderExt string
	// SkipIndex disables the .pb_index output.
	SkipIndex bool
	Logger    *zap.Logger
}

// NewHeaderGenerator returns a HeaderGenerator with the default settings.
func NewHeaderGenerator() *HeaderGenerator {
	return &HeaderGenerator{
		SupportInclude: DefaultSupportInclude,
		HeaderExt:      DefaultHeaderExt,
	}
}

// Generate writes the artifacts for fd to out. The parameter is accepted to
// match the protoc generator contract but does not affect the output.
func (g *HeaderGenerator) Generate(fd File, parameter string, out OutputDirectory) error {
	log := logging.OrNop(g.Logger).With(zap.String(logging.FieldFile, fd.Path()))
	arts, err := g.Artifacts(fd)
	if err != nil {
		return err
	}
	log.Debug("generating header", zap.Int(logging.FieldCount, len(arts)))
	return writeArtifacts(out, arts, log)
}

// Artifacts renders the outputs for fd without writing them: the index file
// (unless disabled) followed by the public header.
func (g *HeaderGenerator) Artifacts(fd File) ([]Artifact, error) {
	facts, err := Walk(fd)
	if err != nil {
		return nil, err
	}
	var arts []Artifact
	if !g.SkipIndex {
		arts = append(arts, Artifact{File: facts.Names.Index, Content: renderIndex(facts.Messages)})
	}
	arts = append(arts, Artifact{File: g.headerFile(facts.Names), Content: g.renderHeader(facts)})
	return arts, nil
}

func (g *HeaderGenerator) headerFile(n Names) string {
	if g.HeaderExt == "" || g.HeaderExt == DefaultHeaderExt {
		return n.Header
	}
	return n.Path(n.Stem + g.HeaderExt)
}

func renderIndex(msgs []string) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m)
		b.WriteByte('\n')
	}
	return b.String()
}

func (g *HeaderGenerator) renderHeader(facts *FileFacts) string {
	var b strings.Builder
	guard := facts.Names.Identifier

	fmt.Fprintf(&b, `
// Generated by the protocol buffer compiler.  DO NOT EDIT!
// source: %s

#ifndef %s
#define %s

#include <memory>

`, facts.Names.Source, guard, guard)
	if g.SupportInclude != "" {
		fmt.Fprintf(&b, "#include <%s>\n\n", g.SupportInclude)
	}
	fmt.Fprintf(&b, "#include <%s>\n", facts.Names.DetailHeader)

	for _, ns := range facts.Namespaces {
		fmt.Fprintf(&b, "namespace %s {\n", ns)
	}
	for _, m := range facts.Messages {
		writePointerAliases(&b, m)
	}
	for i := len(facts.Namespaces) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "}  // namespace %s\n", facts.Namespaces[i])
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "#endif  // %s\n", guard)
	return b.String()
}

// PointerAliases returns the names of the four aliases declared for a
// message: unique, const unique, shared and const shared pointer.
func PointerAliases(msg string) [4]string {
	return [4]string{
		msg + "UniquePtr",
		"Const" + msg + "UniquePtr",
		msg + "SharedPtr",
		"Const" + msg + "SharedPtr",
	}
}

func writePointerAliases(b *strings.Builder, msg string) {
	aliases := PointerAliases(msg)
	fmt.Fprintf(b, "typedef std::unique_ptr<%s> %s;\n", msg, aliases[0])
	fmt.Fprintf(b, "typedef std::unique_ptr<const %s> %s;\n", msg, aliases[1])
	fmt.Fprintf(b, "typedef std::shared_ptr<%s> %s;\n", msg, aliases[2])
	fmt.Fprintf(b, "typedef std::shared_ptr<const %s> %s;\n", msg, aliases[3])
}
