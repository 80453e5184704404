// Package gzprotoc implements the gzprotoc command logic: compile .proto
// sources, run the configured code generators over them, and write what they
// generate, applying insertion points the way protoc does.
package gzprotoc

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bufbuild/protocompile"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/protobuf/reflect/protoreflect"

	// registers the gzmsgs and ignmsgs in-process plugins
	_ "github.com/gzmsgs/gzprotoc/gzgen"
	"github.com/gzmsgs/gzprotoc/internal/logging"
	"github.com/gzmsgs/gzprotoc/plugins"
)

var protocVersionStruct = plugins.ProtocVersion{
	Major:  3,
	Minor:  21,
	Patch:  12,
	Suffix: "gzprotoc",
}

// Run compiles files and generates code for them as conf describes.
func Run(ctx context.Context, conf *Config, files []string, log *zap.Logger) error {
	log = logging.OrNop(log)
	if len(files) == 0 {
		return errors.New("missing input file")
	}
	if len(conf.Outputs) == 0 && conf.DescriptorSetOut == "" {
		return errors.New("missing output directives")
	}
	if err := checkOutputDirs(conf); err != nil {
		return err
	}

	fds, err := compile(ctx, conf.ProtoPath, files)
	if err != nil {
		return err
	}
	log.Info("compiled", zap.Int(logging.FieldCount, len(fds)))

	if conf.DescriptorSetOut != "" {
		if err := saveDescriptorSet(conf.DescriptorSetOut, fds, conf.IncludeImports); err != nil {
			return errors.Wrapf(err, "failed to write %s", conf.DescriptorSetOut)
		}
		log.Debug("wrote", zap.String(logging.FieldOutput, conf.DescriptorSetOut))
	}
	if len(conf.Outputs) == 0 {
		return nil
	}

	req := &plugins.CodeGenRequest{
		Files:         fds,
		ProtocVersion: protocVersionStruct,
	}
	resps, err := runPlugins(ctx, conf, req, log)
	if err != nil {
		return err
	}
	results, err := assembleFileOutputs(conf, resps)
	if err != nil {
		return err
	}
	for _, res := range results {
		if err := writeFileResult(res.path(), res.contents); err != nil {
			return errors.Wrapf(err, "failed to write %s", res.path())
		}
		log.Debug("wrote", zap.String(logging.FieldOutput, res.path()))
	}
	log.Info("generated", zap.Int(logging.FieldCount, len(results)))

	if conf.RelocateHeaders {
		return relocateHeaders(conf, fds, log)
	}
	return nil
}

func checkOutputDirs(conf *Config) error {
	for _, name := range conf.outputNames() {
		dest := conf.Outputs[name].Dir
		fileInfo, err := os.Stat(dest)
		if err != nil {
			if os.IsNotExist(err) {
				return errors.Errorf("%s: no such file or directory", dest)
			}
			return err
		}
		if !fileInfo.IsDir() {
			return errors.Errorf("output for %s is not a directory: %s", name, dest)
		}
	}
	return nil
}

func compile(ctx context.Context, importPaths, files []string) ([]protoreflect.FileDescriptor, error) {
	if len(importPaths) == 0 {
		importPaths = []string{"."}
	}
	names := resolveFilenames(importPaths, files)
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			ImportPaths: importPaths,
		}),
	}
	linked, err := compiler.Compile(ctx, names...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile")
	}
	fds := make([]protoreflect.FileDescriptor, len(linked))
	for i, f := range linked {
		fds[i] = f
	}
	return fds, nil
}

// resolveFilenames turns file paths given on the command line into names
// relative to the import path that contains them, as protoc does. Names not
// under any import path are used as given.
func resolveFilenames(importPaths, files []string) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.ToSlash(f)
		for _, ip := range importPaths {
			if ip == "." {
				continue
			}
			rel, err := filepath.Rel(ip, f)
			if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				continue
			}
			names[i] = filepath.ToSlash(rel)
			break
		}
	}
	return names
}
