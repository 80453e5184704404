package plugins

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"
)

// Exec executes the protoc plugin at the given path, sending it the given
// request and adding its generated code output to the given response.
func Exec(ctx context.Context, pluginPath string, req *CodeGenRequest, resp *CodeGenResponse) error {
	if len(req.Files) == 0 {
		return errors.New("nothing to generate: no files given")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reqpb := req.toPbRequest()
	reqBytes, err := proto.Marshal(reqpb)
	if err != nil {
		return errors.Wrap(err, "failed to marshal code gen request to bytes")
	}

	pluginName := pluginName(path.Base(pluginPath))

	cmd := exec.CommandContext(ctx, pluginPath)
	cmd.Stderr = os.Stderr
	cmd.Stdin = bytes.NewReader(reqBytes)

	respBytes, err := cmd.Output()
	if err != nil {
		return errors.Wrapf(err, "executing plugin %q failed", pluginName)
	}

	var respb pluginpb.CodeGeneratorResponse
	if err := proto.Unmarshal(respBytes, &respb); err != nil {
		return errors.Wrap(err, "failed to unmarshal code gen response from bytes")
	}

	if respb.Error != nil {
		return errors.New(respb.GetError())
	}
	for _, res := range respb.File {
		w, err := resp.open(res.GetName(), res.GetInsertionPoint())
		if err != nil {
			return errors.Wrapf(err, "plugin %q returned invalid output", pluginName)
		}
		if _, err := io.WriteString(w, res.GetContent()); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
	}

	return nil
}

func (req *CodeGenRequest) toPbRequest() *pluginpb.CodeGeneratorRequest {
	var reqpb pluginpb.CodeGeneratorRequest
	vzero := ProtocVersion{}
	if req.ProtocVersion != vzero {
		reqpb.CompilerVersion = &pluginpb.Version{
			Major: proto.Int32(int32(req.ProtocVersion.Major)),
			Minor: proto.Int32(int32(req.ProtocVersion.Minor)),
			Patch: proto.Int32(int32(req.ProtocVersion.Patch)),
		}
		if req.ProtocVersion.Suffix != "" {
			reqpb.CompilerVersion.Suffix = proto.String(req.ProtocVersion.Suffix)
		}
	}

	if len(req.Args) > 0 {
		reqpb.Parameter = proto.String(req.Parameter())
	}

	reqpb.FileToGenerate = make([]string, len(req.Files))
	for i, fd := range req.Files {
		reqpb.FileToGenerate[i] = fd.Path()
	}
	reqpb.ProtoFile = req.allFiles()

	return &reqpb
}

// FileDescriptorSet returns the files in the request and all of their
// dependencies, in an order suitable for protoc's --descriptor_set_in.
func (req *CodeGenRequest) FileDescriptorSet() *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{File: req.allFiles()}
}

// allFiles returns the files to generate along with all of their transitive
// dependencies, dependencies first, as protoc orders them.
func (req *CodeGenRequest) allFiles() []*descriptorpb.FileDescriptorProto {
	var files []*descriptorpb.FileDescriptorProto
	seen := map[string]struct{}{}
	var add func(fd protoreflect.FileDescriptor)
	add = func(fd protoreflect.FileDescriptor) {
		if _, ok := seen[fd.Path()]; ok {
			return
		}
		seen[fd.Path()] = struct{}{}
		imports := fd.Imports()
		for i := 0; i < imports.Len(); i++ {
			add(imports.Get(i).FileDescriptor)
		}
		if raw, ok := req.RawFiles[fd.Path()]; ok {
			files = append(files, raw)
		} else {
			files = append(files, protodesc.ToFileDescriptorProto(fd))
		}
	}
	for _, fd := range req.Files {
		add(fd)
	}
	return files
}

// PluginMain should be called from main functions of protoc plugins that are
// written in Go. This will handle invoking the given plugin function, handling
// any errors, writing the results to the process's stdout, and then exiting the
// process.
func PluginMain(plugin Plugin) {
	output := os.Stdout

	// We need to be strict about what goes to stdout: only the plugin response.
	// So if any code accidentally tries to print to stdout, let's have it go to
	// stderr instead.
	os.Stdout = os.Stderr

	if err := RunPlugin(os.Args[0], plugin, os.Stdin, output); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	// Success!
	os.Exit(0)
}

// RunPlugin runs the given plugin. Errors are reported using the given name.
// The protoc request is read from in and the plugin's results are written to
// out. Under most circumstances, this function will return nil, even if an
// error was encountered. That is because typically errors will be reported to
// out, by writing a code gen response that indicates the error. But if that
// fails, a non-nil error will be returned.
func RunPlugin(name string, plugin Plugin, in io.Reader, out io.Writer) error {
	name = pluginName(path.Base(name))
	finish := func(respb *pluginpb.CodeGeneratorResponse) error {
		b, err := proto.Marshal(respb)
		if err != nil {
			// see if we can serialize an error response
			respb = errResponse(name, errors.Wrap(err, "failed to write code gen response"))
			if b, err = proto.Marshal(respb); err != nil {
				// still no? give up
				return err
			}
		}
		_, err = out.Write(b)
		return err
	}

	reqBytes, err := io.ReadAll(in)
	if err != nil {
		return finish(errResponse(name, errors.Wrap(err, "failed to read code gen request")))
	}
	var reqpb pluginpb.CodeGeneratorRequest
	if err := proto.Unmarshal(reqBytes, &reqpb); err != nil {
		return finish(errResponse(name, errors.Wrap(err, "failed to read code gen request")))
	}
	return finish(runPlugin(name, plugin, &reqpb))
}

func runPlugin(name string, plugin Plugin, reqpb *pluginpb.CodeGeneratorRequest) *pluginpb.CodeGeneratorResponse {
	var req CodeGenRequest

	files, err := protodesc.NewFiles(&descriptorpb.FileDescriptorSet{File: reqpb.ProtoFile})
	if err != nil {
		return errResponse(name, errors.Wrap(err, "failed to process input descriptors"))
	}
	req.Files = make([]protoreflect.FileDescriptor, len(reqpb.FileToGenerate))
	for i, f := range reqpb.FileToGenerate {
		req.Files[i], err = files.FindFileByPath(f)
		if err != nil {
			return errResponse(name, errors.Wrapf(err, "files to generate indicates unresolvable file %q", f))
		}
	}
	req.RawFiles = make(map[string]*descriptorpb.FileDescriptorProto, len(reqpb.ProtoFile))
	for _, file := range reqpb.ProtoFile {
		req.RawFiles[file.GetName()] = file
	}
	if reqpb.Parameter != nil {
		req.Args = strings.Split(reqpb.GetParameter(), ",")
	}
	if reqpb.CompilerVersion != nil {
		req.ProtocVersion.Major = int(reqpb.CompilerVersion.GetMajor())
		req.ProtocVersion.Minor = int(reqpb.CompilerVersion.GetMinor())
		req.ProtocVersion.Patch = int(reqpb.CompilerVersion.GetPatch())
		req.ProtocVersion.Suffix = reqpb.CompilerVersion.GetSuffix()
	}

	resp := NewCodeGenResponse(name, nil)

	if err := plugin(&req, resp); err != nil {
		return errResponse(name, err)
	}

	var respb pluginpb.CodeGeneratorResponse
	respb.SupportedFeatures = proto.Uint64(uint64(pluginpb.CodeGeneratorResponse_FEATURE_PROTO3_OPTIONAL))

	// outputs are already ordered by name and then insertion point; multiple
	// snippets for the same insertion point are merged into one entry
	var last *pluginpb.CodeGeneratorResponse_File
	err = resp.ForEach(func(fileName, insertionPoint string, data io.Reader) error {
		contents, err := io.ReadAll(data)
		if err != nil {
			return err
		}
		if last != nil && last.GetName() == fileName && last.GetInsertionPoint() == insertionPoint {
			last.Content = proto.String(last.GetContent() + string(contents))
			return nil
		}
		genFile := &pluginpb.CodeGeneratorResponse_File{
			Name:    proto.String(fileName),
			Content: proto.String(string(contents)),
		}
		if insertionPoint != "" {
			genFile.InsertionPoint = proto.String(insertionPoint)
		}
		respb.File = append(respb.File, genFile)
		last = genFile
		return nil
	})
	if err != nil {
		return errResponse(name, errors.Wrap(err, "failed to process code gen response"))
	}

	return &respb
}

func errResponse(name string, err error) *pluginpb.CodeGeneratorResponse {
	return &pluginpb.CodeGeneratorResponse{
		Error: proto.String(fmt.Sprintf("%s: %v", name, err)),
	}
}

func pluginName(name string) string {
	return strings.TrimPrefix(name, "protoc-gen-")
}
