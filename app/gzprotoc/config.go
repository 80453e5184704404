package gzprotoc

import (
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config is the format of the file named by --config:
//
//	# optional list of import paths, searched after any -I flags
//	proto_path: ["protos"]
//
//	# optional directories searched for protoc-gen-<name> executables
//	# before PATH
//	plugin_path: ["tools/bin"]
//
//	# optional file to write the compiled descriptors to
//	descriptor_set_out: build/gz_msgs.desc
//	include_imports: true
//
//	# move protoc's headers to details/ and put the generated wrappers
//	# in their place
//	relocate_headers: true
//
//	# outputs keyed by plugin name
//	outputs:
//	  gzmsgs:
//	    out: build/gen
//	    params: ["support_include=gz/msgs/Export.hh"]
//	  ignmsgs: {out: build/gen}
//	  cpp: {out: build/gen}
//	  # external plugins can be given a location; otherwise
//	  # protoc-gen-<name> is searched for in PATH
//	  foo: {out: build/gen, plugin: /usr/local/bin/protoc-gen-foo}
type Config struct {
	ProtoPath        []string           `yaml:"proto_path,omitempty"`
	PluginPath       []string           `yaml:"plugin_path,omitempty"`
	DescriptorSetOut string             `yaml:"descriptor_set_out,omitempty"`
	IncludeImports   bool               `yaml:"include_imports,omitempty"`
	RelocateHeaders  bool               `yaml:"relocate_headers,omitempty"`
	Outputs          map[string]*Output `yaml:"outputs,omitempty"`
}

// Output configures one code generator of a run.
type Output struct {
	// Dir is the output directory. It must already exist.
	Dir string `yaml:"out"`
	// Params are passed to the plugin as its parameter.
	Params []string `yaml:"params,omitempty"`
	// Plugin is the path of the plugin executable. When empty, an in-process
	// plugin registered under the output's name is used if there is one,
	// then protoc itself for its builtin languages, then protoc-gen-<name>
	// from PATH.
	Plugin string `yaml:"plugin,omitempty"`
}

// LoadConfig reads a config file.
func LoadConfig(fileName string) (*Config, error) {
	b, err := os.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config %s", fileName)
	}
	var conf Config
	if err := yaml.UnmarshalStrict(b, &conf); err != nil {
		return nil, errors.Wrapf(err, "failed to load config %s", fileName)
	}
	for name, out := range conf.Outputs {
		if out == nil || out.Dir == "" {
			return nil, errors.Errorf("%s: output %s has empty output path", fileName, name)
		}
		if strings.HasPrefix(name, "protoc-gen-") {
			return nil, errors.Errorf("%s: output %s must be named without the protoc-gen- prefix", fileName, name)
		}
	}
	return &conf, nil
}

// ParseOutputFlag parses the value of a --<name>_out flag: an output
// directory, optionally preceded by comma-separated params and a colon, as
// protoc accepts them.
func ParseOutputFlag(value string) (*Output, error) {
	var params, dest string
	if parts := strings.SplitN(value, ":", 2); len(parts) > 1 {
		params, dest = parts[0], parts[1]
	} else {
		dest = value
	}
	if dest == "" {
		return nil, errors.Errorf("empty output path in %q", value)
	}
	out := &Output{Dir: dest}
	if params != "" {
		out.Params = strings.Split(params, ",")
	}
	return out, nil
}

// Merge adds the settings of other to c. Outputs in other replace outputs of
// the same name; import and plugin paths in other are searched first.
func (c *Config) Merge(other *Config) {
	c.ProtoPath = append(append([]string(nil), other.ProtoPath...), c.ProtoPath...)
	c.PluginPath = append(append([]string(nil), other.PluginPath...), c.PluginPath...)
	if other.DescriptorSetOut != "" {
		c.DescriptorSetOut = other.DescriptorSetOut
	}
	c.IncludeImports = c.IncludeImports || other.IncludeImports
	c.RelocateHeaders = c.RelocateHeaders || other.RelocateHeaders
	if len(other.Outputs) > 0 && c.Outputs == nil {
		c.Outputs = map[string]*Output{}
	}
	for name, out := range other.Outputs {
		c.Outputs[name] = out
	}
}

func (c *Config) outputNames() []string {
	names := make([]string, 0, len(c.Outputs))
	for name := range c.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
