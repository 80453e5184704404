package gzprotoc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"

	"github.com/gzmsgs/gzprotoc/internal/logging"
	"github.com/gzmsgs/gzprotoc/plugins"
)

// outputs that protoc generates itself, without a plugin
var protocOutputs = map[string]struct{}{
	"cpp":    {},
	"csharp": {},
	"java":   {},
	"objc":   {},
	"php":    {},
	"python": {},
	"pyi":    {},
	"ruby":   {},
}

// outputFile is a generated file: an output directory plus a file name
// relative to it, using '/' as separator.
type outputFile struct {
	dir      string
	fileName string
}

func (f outputFile) path() string {
	return filepath.Join(f.dir, filepath.FromSlash(f.fileName))
}

func (f outputFile) String() string {
	return f.path()
}

type fileResult struct {
	outputFile
	contents []byte
}

// runPlugins runs every configured output concurrently. Each gets its own
// response.
func runPlugins(ctx context.Context, conf *Config, req *plugins.CodeGenRequest, log *zap.Logger) (map[string]*plugins.CodeGenResponse, error) {
	registered := plugins.GetRegisteredPlugins()
	resps := map[string]*plugins.CodeGenResponse{}

	grp, ctx := errgroup.WithContext(ctx)
	for _, name := range conf.outputNames() {
		name, out := name, conf.Outputs[name]
		plReq := *req
		plReq.Args = out.Params
		resp := plugins.NewCodeGenResponse(name, nil)
		resps[name] = resp
		grp.Go(func() error {
			log.Info("running plugin", zap.String(logging.FieldPlugin, name))
			if err := executePlugin(ctx, &plReq, resp, registered, conf.PluginPath, name, out); err != nil {
				return errors.Wrapf(err, "--%s_out", name)
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return resps, nil
}

func executePlugin(ctx context.Context, req *plugins.CodeGenRequest, resp *plugins.CodeGenResponse, registered map[string]plugins.Plugin, searchPath []string, name string, out *Output) error {
	pluginPath := out.Plugin
	if pluginPath != "" {
		loc, err := resolvePluginLocation(name, pluginPath)
		if err != nil {
			return err
		}
		pluginPath = loc
	} else {
		// no configured plugin path, so first check if we have an in-process plugin
		if p, ok := registered[name]; ok {
			return p(req, resp)
		}
		// maybe it's an output provided by protoc
		if _, ok := protocOutputs[name]; ok {
			return driveProtocAsPlugin(ctx, req, resp, name)
		}
		// otherwise, assume plugin program name by convention
		loc, err := findInPath(name, searchPath)
		if err != nil {
			return err
		}
		pluginPath = loc
	}
	return plugins.Exec(ctx, pluginPath, req, resp)
}

// resolvePluginLocation checks a configured plugin location. A directory is
// searched for the plugin executable.
func resolvePluginLocation(name, location string) (string, error) {
	stat, err := os.Stat(location)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Errorf("configured plugin location does not exist: %s", location)
		}
		return "", errors.Wrap(err, "failed to stat plugin location")
	}
	if !stat.IsDir() {
		return location, nil
	}
	loc, err := findInDirs(name, []string{location})
	if err != nil {
		return "", errors.Wrap(err, "failed to stat plugin location")
	}
	if loc == "" {
		return "", errors.Errorf("no plugin for %s in configured location %s", name, location)
	}
	return loc, nil
}

// findInPath looks for the plugin in the given directories and then in PATH.
// When neither has it, the conventional protoc-gen-<name> is returned so that
// running it reports the failure.
func findInPath(name string, searchPath []string) (string, error) {
	loc, err := findInDirs(name, searchPath)
	if err != nil || loc != "" {
		return loc, err
	}
	if loc, err := exec.LookPath("protoc-gen-" + name); err == nil {
		return loc, nil
	}
	return "protoc-gen-" + name, nil
}

func findInDirs(name string, dirs []string) (string, error) {
	var lastErr error
	for _, dir := range dirs {
		for _, prefix := range []string{"protoc-gen-", ""} {
			loc := filepath.Join(dir, prefix+name)
			stat, err := os.Stat(loc)
			if err == nil && !stat.IsDir() {
				return loc, nil
			} else if err != nil && !os.IsNotExist(err) {
				lastErr = err
			}
		}
	}
	return "", lastErr
}

// driveProtocAsPlugin runs protoc to generate one of its builtin outputs,
// handing it the already compiled descriptors, and adds what it generates to
// resp.
func driveProtocAsPlugin(ctx context.Context, req *plugins.CodeGenRequest, resp *plugins.CodeGenResponse, lang string) (err error) {
	tmpDir, err := os.MkdirTemp("", "gzprotoc")
	if err != nil {
		return err
	}
	defer func() {
		cleanupErr := os.RemoveAll(tmpDir)
		if err == nil {
			err = cleanupErr
		}
	}()

	outDir := filepath.Join(tmpDir, "output")
	if err := os.Mkdir(outDir, 0700); err != nil {
		return err
	}

	descFile := filepath.Join(tmpDir, "descriptors")
	if fdsBytes, err := proto.Marshal(req.FileDescriptorSet()); err != nil {
		return err
	} else if err := os.WriteFile(descFile, fdsBytes, 0666); err != nil {
		return err
	}

	outArg := outDir
	if len(req.Args) > 0 {
		outArg = req.Parameter() + ":" + outDir
	}
	args := make([]string, 0, 2+len(req.Files))
	args = append(args, "--descriptor_set_in="+descFile)
	args = append(args, "--"+lang+"_out="+outArg)
	for _, f := range req.Files {
		args = append(args, f.Path())
	}

	cmd := exec.CommandContext(ctx, "protoc", args...)
	var combinedOutput bytes.Buffer
	cmd.Stdout = &combinedOutput
	cmd.Stderr = &combinedOutput
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return errors.Errorf("protoc failed to produce output for %s: %v\n%s", lang, err, combinedOutput.String())
		}
		return err
	}

	return filepath.Walk(outDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if (info.Mode() & os.ModeType) != 0 {
			// not a regular file
			return nil
		}
		relPath, err := filepath.Rel(outDir, path)
		if err != nil {
			return err
		}
		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		w, err := resp.Open(filepath.ToSlash(relPath))
		if err != nil {
			return err
		}
		if _, err := w.Write(contents); err != nil {
			_ = w.Close()
			return err
		}
		return w.Close()
	})
}

type fileOutput struct {
	contents   []byte
	createdBy  string
	insertions map[string][]insertedContent
}

type insertedContent struct {
	data []byte
	lang string
}

// assembleFileOutputs gathers the files created by all plugins and applies
// the insertions. An insertion into a file that no plugin of the run created
// is applied to the existing file in the output directory.
func assembleFileOutputs(conf *Config, resps map[string]*plugins.CodeGenResponse) ([]fileResult, error) {
	results := map[outputFile]*fileOutput{}
	langs := make([]string, 0, len(resps))
	for lang := range resps {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	for _, lang := range langs {
		dir := filepath.Clean(conf.Outputs[lang].Dir)
		err := resps[lang].ForEach(func(name, insertionPoint string, data io.Reader) error {
			contents, err := io.ReadAll(data)
			if err != nil {
				return err
			}
			fullOutput := outputFile{dir: dir, fileName: name}
			o := results[fullOutput]
			if o == nil {
				o = &fileOutput{}
				results[fullOutput] = o
			}
			if insertionPoint == "" {
				if o.createdBy != "" {
					return errors.Errorf("conflict: both %s and %s tried to create file %s", o.createdBy, lang, fullOutput)
				}
				o.contents = contents
				o.createdBy = lang
			} else {
				if o.insertions == nil {
					o.insertions = map[string][]insertedContent{}
				}
				o.insertions[insertionPoint] = append(o.insertions[insertionPoint], insertedContent{data: contents, lang: lang})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	resultData := make([]fileResult, 0, len(results))
	for file, output := range results {
		fileContents := output.contents
		if output.createdBy == "" {
			existing, err := os.ReadFile(file.path())
			if err != nil {
				if os.IsNotExist(err) {
					return nil, errors.Errorf("tried to insert into file %s, but it was not generated and does not exist", file)
				}
				return nil, err
			}
			fileContents = existing
		}
		if len(output.insertions) > 0 {
			var err error
			fileContents, err = applyInsertions(file.String(), fileContents, output.insertions)
			if err != nil {
				return nil, err
			}
		}
		resultData = append(resultData, fileResult{outputFile: file, contents: fileContents})
	}
	sort.Slice(resultData, func(i, j int) bool {
		return resultData[i].path() < resultData[j].path()
	})
	return resultData, nil
}

func writeFileResult(fileName string, data []byte) (e error) {
	// we've already checked that the output directory exists, but the generated
	// file could be nested inside directories therein, which we want to auto-create
	if err := os.MkdirAll(filepath.Dir(fileName), os.ModePerm); err != nil {
		return err
	}
	w, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := w.Close()
		if closeErr != nil && e == nil {
			e = closeErr
		}
	}()

	_, err = w.Write(data)
	return err
}

var insertionPointMarker = []byte("@@protoc_insertion_point(")

// applyInsertions splices the given insertions into data at their
// "@@protoc_insertion_point(NAME)" markers. A marker inside a "/* ... */"
// comment gets the code inline, right before the comment; otherwise the code
// goes on the lines before the marker's line, indented like it.
func applyInsertions(fileName string, data []byte, insertions map[string][]insertedContent) ([]byte, error) {
	var result bytes.Buffer

	for {
		pos := bytes.Index(data, insertionPointMarker)
		if pos < 0 {
			break
		}
		startPos := pos + len(insertionPointMarker)
		end := bytes.IndexByte(data[startPos:], ')')
		if end < 0 {
			// malformed marker! skip it
			break
		}
		endPos := startPos + end
		point := string(data[startPos:endPos])
		insertedData := insertions[point]
		if len(insertedData) == 0 {
			// returned error is always nil from bytes.Buffer
			// https://golang.org/pkg/bytes/#Buffer.Write
			result.Write(data[:endPos+1])
			data = data[endPos+1:]
			continue
		}

		delete(insertions, point)

		lineStart := bytes.LastIndexByte(data[:pos], '\n') + 1
		prevComment := bytes.LastIndex(data[lineStart:pos], []byte("/*"))
		var insertionIndex int
		var sep, indent []byte
		if prevComment != -1 &&
			len(bytes.TrimSpace(data[lineStart+prevComment+2:pos])) == 0 {
			// insertion point preceded by "/* ", so we insert directly before
			// that with no indentation
			insertionIndex = lineStart + prevComment
			sep = []byte{' '}
		} else {
			// otherwise, insert before the insertion point line, using same
			// indent as observed on insertion point line
			insertionIndex = lineStart
			sep = []byte{'\n'}
			line := data[insertionIndex:pos]
			trimmedLine := bytes.TrimLeftFunc(line, unicode.IsSpace)
			if len(line) > len(trimmedLine) {
				indent = line[:len(line)-len(trimmedLine)]
			}
		}

		result.Write(data[:insertionIndex])
		for _, ins := range insertedData {
			if len(indent) == 0 {
				result.Write(ins.data)
			} else {
				// if there's an indent, prefix each non-empty line with it
				for _, line := range bytes.SplitAfter(ins.data, []byte{'\n'}) {
					if len(line) > 0 && line[0] != '\n' {
						result.Write(indent)
					}
					result.Write(line)
				}
			}

			if !bytes.HasSuffix(result.Bytes(), sep) {
				result.Write(sep)
			}
		}
		result.Write(data[insertionIndex : endPos+1])
		data = data[endPos+1:]
	}

	if len(insertions) > 0 {
		// gather missing insertion points by lang/plugin
		pointsByLang := map[string]map[string]struct{}{}
		for p, data := range insertions {
			for _, insertion := range data {
				points := pointsByLang[insertion.lang]
				if points == nil {
					points = map[string]struct{}{}
					pointsByLang[insertion.lang] = points
				}
				points[p] = struct{}{}
			}
		}
		langs := make([]string, 0, len(pointsByLang))
		for lang := range pointsByLang {
			langs = append(langs, lang)
		}
		sort.Strings(langs)

		var buf bytes.Buffer
		_, _ = fmt.Fprintf(&buf, "missing insertion point(s) in %q: ", fileName)
		for i, lang := range langs {
			pointSlice := make([]string, 0, len(pointsByLang[lang]))
			for p := range pointsByLang[lang] {
				pointSlice = append(pointSlice, p)
			}
			sort.Strings(pointSlice)
			if i > 0 {
				buf.WriteString("; ")
			}
			_, _ = fmt.Fprintf(&buf, "%q wants to insert into %s", lang, strings.Join(pointSlice, ","))
		}

		return nil, errors.New(buf.String())
	}

	result.Write(data)
	return result.Bytes(), nil
}
