package gzgen

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gzmsgs/gzprotoc/internal/logging"
)

// Insertion points of protoc's C++ generator that SpliceGenerator writes to.
const (
	InsertionPointIncludes       = "includes"
	InsertionPointNamespaceScope = "namespace_scope"
	InsertionPointGlobalScope    = "global_scope"
)

const (
	DefaultFactoryInclude = "ignition/messages/Factory.hh"
	DefaultRegisterMacro  = "IGN_REGISTER_STATIC_MSG"
)

var (
	// ErrNoMessages is returned by SpliceGenerator for a file that declares
	// no messages.
	ErrNoMessages = errors.New("file declares no messages")
	// ErrMultipleMessages is returned by SpliceGenerator, with the
	// StrictSingleMessage policy, for a file that declares more than one
	// message.
	ErrMultipleMessages = errors.New("file declares more than one message")
)

// MessagePolicy says what SpliceGenerator does with files that declare more
// than one message. Files with no messages are always rejected.
type MessagePolicy int

const (
	// FirstMessage generates for the first message of the file and ignores
	// the others.
	FirstMessage MessagePolicy = iota
	// StrictSingleMessage rejects files with more than one message.
	StrictSingleMessage
)

func (p MessagePolicy) String() string {
	switch p {
	case FirstMessage:
		return "first"
	case StrictSingleMessage:
		return "strict"
	default:
		return fmt.Sprintf("MessagePolicy(%d)", int(p))
	}
}

// SpliceGenerator adds code to the files protoc's C++ generator creates,
// through its insertion points, instead of generating files of its own. It
// registers the file's primary message with a message factory and declares
// shared pointer aliases for it.
type SpliceGenerator struct {
	// RegistryPrefix is the prefix of the key the message is registered
	// under. Empty means the file's package.
	RegistryPrefix string
	// FactoryInclude is the header declaring RegisterMacro.
	FactoryInclude string
	RegisterMacro  string
	Messages       MessagePolicy
	Logger         *zap.Logger
}

// NewSpliceGenerator returns a SpliceGenerator with the default settings.
func NewSpliceGenerator() *SpliceGenerator {
	return &SpliceGenerator{
		FactoryInclude: DefaultFactoryInclude,
		RegisterMacro:  DefaultRegisterMacro,
	}
}

// Generate writes the insertions for fd to out. The parameter is accepted to
// match the protoc generator contract but does not affect the output.
func (g *SpliceGenerator) Generate(fd File, parameter string, out OutputDirectory) error {
	log := logging.OrNop(g.Logger).With(zap.String(logging.FieldFile, fd.Path()))
	arts, err := g.Artifacts(fd)
	if err != nil {
		return err
	}
	log.Debug("generating insertions", zap.Int(logging.FieldCount, len(arts)))
	return writeArtifacts(out, arts, log)
}

// Artifacts renders the insertions for fd without writing them.
func (g *SpliceGenerator) Artifacts(fd File) ([]Artifact, error) {
	facts, err := Walk(fd)
	if err != nil {
		return nil, err
	}
	switch {
	case len(facts.Messages) == 0:
		return nil, errors.Wrapf(ErrNoMessages, "%s", fd.Path())
	case len(facts.Messages) > 1 && g.Messages == StrictSingleMessage:
		return nil, errors.Wrapf(ErrMultipleMessages, "%s: found %d", fd.Path(), len(facts.Messages))
	}

	msg := facts.Messages[0]
	qualified := cppQualified(facts.Package, msg)
	header := facts.Names.GeneratedHeader
	source := facts.Names.GeneratedSource

	var factoryInclude string
	if g.FactoryInclude != "" {
		factoryInclude = fmt.Sprintf("#include \"%s\"\n", g.FactoryInclude)
	}

	return []Artifact{
		{
			File:           header,
			InsertionPoint: InsertionPointIncludes,
			Content:        "#pragma GCC system_header\n",
		},
		{
			File:           source,
			InsertionPoint: InsertionPointIncludes,
			Content: factoryInclude +
				"#pragma GCC diagnostic ignored \"-Wshadow\"\n" +
				g.RegistrationStatement(facts.Package, msg) + "\n",
		},
		{
			File:           header,
			InsertionPoint: InsertionPointIncludes,
			Content:        "#include <memory>\n",
		},
		{
			File:           header,
			InsertionPoint: InsertionPointNamespaceScope,
			Content:        fmt.Sprintf("typedef std::shared_ptr<%s> %sPtr;\n", qualified, msg),
		},
		{
			File:           header,
			InsertionPoint: InsertionPointGlobalScope,
			Content:        fmt.Sprintf("typedef const std::shared_ptr<%s const> Const%sPtr;\n", qualified, msg),
		},
	}, nil
}

// RegistrationStatement returns the statement registering msg, declared in
// pkg, with the message factory: MACRO("<prefix>.<msg>", msg).
func (g *SpliceGenerator) RegistrationStatement(pkg, msg string) string {
	prefix := g.RegistryPrefix
	if prefix == "" {
		prefix = pkg
	}
	key := msg
	if prefix != "" {
		key = prefix + "." + msg
	}
	macro := g.RegisterMacro
	if macro == "" {
		macro = DefaultRegisterMacro
	}
	return fmt.Sprintf("%s(%q, %s)", macro, key, msg)
}
