package gzgen

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/bufbuild/protocompile"
	"github.com/jhump/protoreflect/desc/builder"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func buildFile(t *testing.T, name, pkg string, msgs ...string) protoreflect.FileDescriptor {
	t.Helper()
	fb := builder.NewFile(name).SetPackageName(pkg)
	for _, m := range msgs {
		fb.AddMessage(builder.NewMessage(m))
	}
	fd, err := fb.Build()
	require.NoError(t, err)
	file, err := protodesc.NewFile(fd.AsFileDescriptorProto(), nil)
	require.NoError(t, err)
	return file
}

func compileFile(t *testing.T, name, source string) protoreflect.FileDescriptor {
	t.Helper()
	compiler := protocompile.Compiler{
		Resolver: &protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(map[string]string{name: source}),
		},
	}
	files, err := compiler.Compile(context.Background(), name)
	require.NoError(t, err)
	require.Len(t, files, 1)
	return files[0]
}

type written struct {
	file, point, content string
}

// memDir is an OutputDirectory that records what is written to it. Opens of
// the names in fail return an error.
type memDir struct {
	fail    map[string]bool
	opened  int
	closed  int
	written []written
}

func (d *memDir) Open(name string) (io.WriteCloser, error) {
	return d.open(name, "")
}

func (d *memDir) OpenForInsert(name, insertionPoint string) (io.WriteCloser, error) {
	return d.open(name, insertionPoint)
}

func (d *memDir) open(name, point string) (io.WriteCloser, error) {
	key := name
	if point != "" {
		key = name + "@" + point
	}
	if d.fail[key] {
		return nil, errors.Errorf("cannot open %s", key)
	}
	d.opened++
	return &memFile{dir: d, file: name, point: point}, nil
}

func (d *memDir) contents(name string) string {
	var b bytes.Buffer
	for _, w := range d.written {
		if w.file == name && w.point == "" {
			b.WriteString(w.content)
		}
	}
	return b.String()
}

type memFile struct {
	dir   *memDir
	file  string
	point string
	buf   bytes.Buffer
}

func (f *memFile) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *memFile) Close() error {
	f.dir.closed++
	f.dir.written = append(f.dir.written, written{file: f.file, point: f.point, content: f.buf.String()})
	return nil
}
