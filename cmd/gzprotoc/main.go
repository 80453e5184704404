// Command gzprotoc compiles .proto files and runs the gz-msgs code generators
// over them without needing the generators installed as protoc plugins.
//
//	gzprotoc -I protos --cpp_out=gen --gzmsgs_out=gen --relocate_headers \
//	    protos/gz/msgs/foo.proto
//
// The gzmsgs and ignmsgs generators run in-process. The cpp output (and the
// other builtin protoc languages) is produced by running protoc with the
// already compiled descriptors. Any other output runs protoc-gen-<name>, or
// the plugin given with --plugin or in the config file, searching
// --plugin_path before PATH.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gzmsgs/gzprotoc/app/gzprotoc"
	"github.com/gzmsgs/gzprotoc/internal/logging"
)

var version = "dev build <no version set>" // can be replaced by -X linker flag

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		configFile      string
		protoPath        []string
		pluginPath       []string
		descriptorSetOut string
		includeImports   bool
		outputs          = map[string]*string{}
		pluginDefs       []string
		relocateHeaders  bool
		verbose          bool
	)

	cmd := &cobra.Command{
		Use:           "gzprotoc [flags] PROTO_FILES...",
		Short:         "Compile .proto files and generate gz-msgs C++ support code",
		Version:       version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(verbose)
			defer func() { _ = log.Sync() }()

			conf := &gzprotoc.Config{}
			if configFile != "" {
				fileConf, err := gzprotoc.LoadConfig(configFile)
				if err != nil {
					return err
				}
				conf = fileConf
			}

			flagConf := &gzprotoc.Config{
				ProtoPath:        protoPath,
				PluginPath:       pluginPath,
				DescriptorSetOut: descriptorSetOut,
				IncludeImports:   includeImports,
				RelocateHeaders:  relocateHeaders,
				Outputs:          map[string]*gzprotoc.Output{},
			}
			for name, value := range outputs {
				if *value == "" {
					continue
				}
				out, err := gzprotoc.ParseOutputFlag(*value)
				if err != nil {
					return errors.Wrapf(err, "--%s_out", name)
				}
				flagConf.Outputs[name] = out
			}
			conf.Merge(flagConf)

			for _, def := range pluginDefs {
				parts := strings.SplitN(def, "=", 2)
				if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
					return errors.Errorf("--plugin: expecting NAME=PATH, got %q", def)
				}
				out, ok := conf.Outputs[parts[0]]
				if !ok {
					return errors.Errorf("--plugin: no output configured for %s", parts[0])
				}
				out.Plugin = parts[1]
			}

			return gzprotoc.Run(cmd.Context(), conf, args, log)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "YAML file configuring import paths and outputs")
	flags.StringSliceVarP(&protoPath, "proto_path", "I", nil, "directory in which to search for imports")
	for _, name := range []string{"gzmsgs", "ignmsgs", "cpp"} {
		outputs[name] = flags.String(name+"_out", "", fmt.Sprintf("generate %s output: [PARAMS:]OUT_DIR", name))
	}
	flags.StringSliceVar(&pluginPath, "plugin_path", nil, "directory searched for protoc-gen-NAME executables before PATH")
	flags.StringVarP(&descriptorSetOut, "descriptor_set_out", "o", "", "write the compiled files as a FileDescriptorSet to this file")
	flags.BoolVar(&includeImports, "include_imports", false, "include all dependencies in --descriptor_set_out")
	flags.StringArrayVar(&pluginDefs, "plugin", nil, "NAME=PATH of the plugin executable for a configured output")
	flags.BoolVar(&relocateHeaders, "relocate_headers", false, "move protoc's headers to details/ and put the gzmsgs headers in their place")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}
