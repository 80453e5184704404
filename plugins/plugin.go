package plugins

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Plugin is a code generator that generates code during protoc invocations.
// Multiple plugins can be run during the same protoc invocation.
type Plugin func(*CodeGenRequest, *CodeGenResponse) error

// CodeGenRequest represents the arguments to protoc that describe what code
// protoc has been requested to generate.
type CodeGenRequest struct {
	// Args are the parameters for the plugin.
	Args []string
	// Files are the proto source files for which code should be generated.
	Files []protoreflect.FileDescriptor
	// RawFiles are all files in the request, including dependencies of Files,
	// keyed by name, in the form protoc sent them.
	RawFiles map[string]*descriptorpb.FileDescriptorProto
	// The version of protoc that has invoked the plugin.
	ProtocVersion ProtocVersion
}

// Parameter returns the plugin parameter in the single-string form protoc
// uses on the wire.
func (req *CodeGenRequest) Parameter() string {
	return strings.Join(req.Args, ",")
}

// CodeGenResponse is how the plugin transmits generated code to protoc.
//
// A CodeGenResponse acts as the output directory for generators: files are
// created with Open and snippets are added to files generated by other
// plugins with OpenForInsert.
type CodeGenResponse struct {
	pluginName string
	output     *outputMap
}

type outputMap struct {
	mu    sync.Mutex
	files map[result][]*data
}

type result struct {
	name, insertionPoint string
}

type data struct {
	plugin   string
	contents bytes.Buffer
	closed   bool
}

func (m *outputMap) addSnippet(pluginName, name, insertionPoint string) (*data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := result{name: name, insertionPoint: insertionPoint}
	if m.files == nil {
		m.files = map[result][]*data{}
	}
	if insertionPoint == "" {
		// can only create one file per name, but can create multiple snippets
		// that will be concatenated together
		if d := m.files[key]; len(d) > 0 {
			return nil, errors.Errorf("file %s already opened for writing by plugin %s", name, d[0].plugin)
		}
	}
	d := &data{plugin: pluginName}
	m.files[key] = append(m.files[key], d)
	return d, nil
}

// sortedKeys must be called with m.mu held.
func (m *outputMap) sortedKeys() []result {
	keys := make([]result, 0, len(m.files))
	for k := range m.files {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].insertionPoint < keys[j].insertionPoint
	})
	return keys
}

type sink struct {
	mu   *sync.Mutex
	d    *data
	name string
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.d.closed {
		return 0, errors.Errorf("write to %s after close", s.name)
	}
	return s.d.contents.Write(p)
}

func (s *sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.d.closed {
		return errors.Errorf("%s already closed", s.name)
	}
	s.d.closed = true
	return nil
}

// OpenForInsert returns a writer for creating the snippet to be stored in the
// given file name at the given insertion point. The file must be created by a
// plugin that runs earlier in the same protoc invocation, and its generated
// contents must carry a matching "@@protoc_insertion_point(NAME)" marker. The
// same file and insertion point may be opened more than once; the snippets are
// concatenated in the order they were opened.
//
// The returned writer must be closed before the plugin returns.
func (resp *CodeGenResponse) OpenForInsert(name, insertionPoint string) (io.WriteCloser, error) {
	if insertionPoint == "" {
		return nil, errors.Errorf("insertion point for %s is empty", name)
	}
	return resp.open(name, insertionPoint)
}

// Open returns a writer for creating the file with the given name. A file can
// only be created once per response.
//
// The returned writer must be closed before the plugin returns.
func (resp *CodeGenResponse) Open(name string) (io.WriteCloser, error) {
	return resp.open(name, "")
}

func (resp *CodeGenResponse) open(name, insertionPoint string) (io.WriteCloser, error) {
	if err := checkOutputName(name); err != nil {
		return nil, err
	}
	d, err := resp.output.addSnippet(resp.pluginName, name, insertionPoint)
	if err != nil {
		return nil, err
	}
	return &sink{mu: &resp.output.mu, d: d, name: name}, nil
}

// checkOutputName applies the rules protoc enforces on names in a
// CodeGeneratorResponse: relative, slash-separated and clean.
func checkOutputName(name string) error {
	switch {
	case name == "":
		return errors.New("output file name is empty")
	case strings.Contains(name, "\\"):
		return errors.Errorf("output file name %q must use '/' as the separator", name)
	case path.IsAbs(name):
		return errors.Errorf("output file name %q must be relative", name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return errors.Errorf("output file name %q is not a clean relative path", name)
		}
	}
	return nil
}

// ForEach calls fn for every output in the response, ordered by file name and
// then insertion point (the empty insertion point, meaning the whole file,
// sorts first). Snippets sharing a file and insertion point are visited in
// the order they were opened. It is an error for any output to still be open.
func (resp *CodeGenResponse) ForEach(fn func(name, insertionPoint string, data io.Reader) error) error {
	resp.output.mu.Lock()
	keys := resp.output.sortedKeys()
	type entry struct {
		key      result
		plugin   string
		contents []byte
	}
	entries := make([]entry, 0, len(keys))
	for _, k := range keys {
		for _, d := range resp.output.files[k] {
			if !d.closed {
				resp.output.mu.Unlock()
				return errors.Errorf("plugin %s never closed output %s", d.plugin, describe(k))
			}
			entries = append(entries, entry{key: k, plugin: d.plugin, contents: d.contents.Bytes()})
		}
	}
	resp.output.mu.Unlock()

	for _, e := range entries {
		if err := fn(e.key.name, e.key.insertionPoint, bytes.NewReader(e.contents)); err != nil {
			return err
		}
	}
	return nil
}

func describe(k result) string {
	if k.insertionPoint == "" {
		return k.name
	}
	return fmt.Sprintf("%s@%s", k.name, k.insertionPoint)
}

// ProtocVersion represents a version of the protoc tool.
type ProtocVersion struct {
	Major, Minor, Patch int
	Suffix              string
}

func (v ProtocVersion) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Suffix != "" {
		if v.Suffix[0] != '-' {
			buf.WriteRune('-')
		}
		buf.WriteString(v.Suffix)
	}
	return buf.String()
}

// NewCodeGenResponse creates a new response for the named plugin. If other is
// non-nil, files added to the returned response will be contributed to other.
func NewCodeGenResponse(pluginName string, other *CodeGenResponse) *CodeGenResponse {
	var output *outputMap
	if other != nil {
		output = other.output
	} else {
		output = &outputMap{}
	}
	return &CodeGenResponse{
		pluginName: pluginName,
		output:     output,
	}
}
