package gzgen

import (
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/gzmsgs/gzprotoc/plugins"
)

const fooHeader = `
// Generated by the protocol buffer compiler.  DO NOT EDIT!
// source: gz/msgs/foo.proto

#ifndef gz_msgs_foo
#define gz_msgs_foo

#include <memory>

#include <gz/msgs/Export.hh>

#include <gz/msgs/details/foo.pb.h>
namespace gz {
namespace msgs {
typedef std::unique_ptr<Foo> FooUniquePtr;
typedef std::unique_ptr<const Foo> ConstFooUniquePtr;
typedef std::shared_ptr<Foo> FooSharedPtr;
typedef std::shared_ptr<const Foo> ConstFooSharedPtr;
}  // namespace msgs
}  // namespace gz

#endif  // gz_msgs_foo
`

func TestHeaderGenerator(t *testing.T) {
	fd := buildFile(t, "gz/msgs/foo.proto", "gz.msgs", "Foo")
	dir := &memDir{}

	err := NewHeaderGenerator().Generate(fd, "", dir)
	require.NoError(t, err)

	require.Equal(t, []written{
		{file: "gz_msgs_foo.pb_index", content: "Foo\n"},
		{file: "gz/msgs/foo.gz.h", content: fooHeader},
	}, dir.written)
	assert.Equal(t, dir.opened, dir.closed)
}

func TestHeaderGenerator_MultipleMessages(t *testing.T) {
	msgs := []string{"Vector3d", "Pose", "Time", "Header"}
	fd := buildFile(t, "gz/msgs/pose.proto", "gz.msgs", msgs...)
	dir := &memDir{}

	require.NoError(t, NewHeaderGenerator().Generate(fd, "", dir))

	// index round-trips the message names in declaration order
	index := dir.contents("gz_msgs_pose.pb_index")
	lines := strings.Split(strings.TrimSuffix(index, "\n"), "\n")
	if diff := cmp.Diff(msgs, lines); diff != "" {
		t.Errorf("unexpected index (-want +got):\n%s", diff)
	}

	header := dir.contents("gz/msgs/pose.gz.h")
	for _, m := range msgs {
		for _, alias := range PointerAliases(m) {
			assert.Equal(t, 1, strings.Count(header, " "+alias+";\n"), "alias %s", alias)
		}
	}
	assert.Equal(t, 4*len(msgs), strings.Count(header, "typedef "))

	// aliases come out in message order
	last := -1
	for _, m := range msgs {
		pos := strings.Index(header, " "+m+"UniquePtr;")
		assert.Greater(t, pos, last, m)
		last = pos
	}
}

func TestHeaderGenerator_NamespacesMirror(t *testing.T) {
	for _, pkg := range []string{"", "gz", "gz.msgs", "gz.sim.components.v1"} {
		t.Run(pkg, func(t *testing.T) {
			fd := buildFile(t, "x/y.proto", pkg, "Y")
			arts, err := NewHeaderGenerator().Artifacts(fd)
			require.NoError(t, err)
			header := arts[len(arts)-1].Content

			var opened, closed []string
			for _, line := range strings.Split(header, "\n") {
				if name := strings.TrimPrefix(line, "namespace "); name != line {
					opened = append(opened, strings.TrimSuffix(name, " {"))
				}
				if name := strings.TrimPrefix(line, "}  // namespace "); name != line {
					closed = append(closed, name)
				}
			}
			require.Len(t, opened, len(Namespaces(pkg)))
			assert.Equal(t, Namespaces(pkg), opened)
			require.Len(t, closed, len(opened))
			for i := range opened {
				assert.Equal(t, opened[i], closed[len(closed)-1-i])
			}
		})
	}
}

func TestHeaderGenerator_TopLevelFileWithoutPackage(t *testing.T) {
	fd := buildFile(t, "empty_pkg.proto", "", "Thing")
	dir := &memDir{}
	require.NoError(t, NewHeaderGenerator().Generate(fd, "", dir))

	header := dir.contents("empty_pkg.gz.h")
	assert.Contains(t, header, "#ifndef empty_pkg\n#define empty_pkg\n")
	assert.Contains(t, header, "#include <details/empty_pkg.pb.h>\n")
	assert.NotContains(t, header, "namespace")
	assert.Contains(t, header, "typedef std::unique_ptr<Thing> ThingUniquePtr;\n")
	assert.Equal(t, "Thing\n", dir.contents("empty_pkg.pb_index"))
}

func TestHeaderGenerator_NoMessages(t *testing.T) {
	fd := buildFile(t, "gz/msgs/empty.proto", "gz.msgs")
	dir := &memDir{}
	require.NoError(t, NewHeaderGenerator().Generate(fd, "", dir))

	assert.Equal(t, "", dir.contents("gz_msgs_empty.pb_index"))
	assert.NotContains(t, dir.contents("gz/msgs/empty.gz.h"), "typedef")
}

func TestHeaderGenerator_Idempotent(t *testing.T) {
	fd := buildFile(t, "gz/msgs/twice.proto", "gz.msgs", "A", "B")
	first, second := &memDir{}, &memDir{}
	g := NewHeaderGenerator()
	require.NoError(t, g.Generate(fd, "", first))
	require.NoError(t, g.Generate(fd, "ignored=param", second))
	assert.Equal(t, first.written, second.written)
}

func TestHeaderGenerator_Settings(t *testing.T) {
	fd := buildFile(t, "gz/msgs/foo.proto", "gz.msgs", "Foo")
	g := &HeaderGenerator{HeaderExt: ".hh", SkipIndex: true}
	dir := &memDir{}
	require.NoError(t, g.Generate(fd, "", dir))

	require.Len(t, dir.written, 1)
	assert.Equal(t, "gz/msgs/foo.hh", dir.written[0].file)
	expected := strings.Replace(fooHeader, "#include <gz/msgs/Export.hh>\n\n", "", 1)
	assert.Equal(t, expected, dir.written[0].content)
}

func TestHeaderGenerator_OpenFailure(t *testing.T) {
	fd := buildFile(t, "gz/msgs/foo.proto", "gz.msgs", "Foo")

	dir := &memDir{fail: map[string]bool{"gz_msgs_foo.pb_index": true}}
	err := NewHeaderGenerator().Generate(fd, "", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gz_msgs_foo.pb_index")
	assert.Empty(t, dir.written)

	dir = &memDir{fail: map[string]bool{"gz/msgs/foo.gz.h": true}}
	err = NewHeaderGenerator().Generate(fd, "", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gz/msgs/foo.gz.h")
	assert.Equal(t, dir.opened, dir.closed)
}

func TestHeaderGenerator_CompiledSource(t *testing.T) {
	fd := compileFile(t, "gz/msgs/scene.proto", `
		syntax = "proto3";
		package gz.msgs;

		message Light {
			string name = 1;
		}
		message Scene {
			message Fog {
				double density = 1;
			}
			repeated Light light = 1;
			Fog fog = 2;
		}
		enum Shading {
			SHADING_UNSPECIFIED = 0;
		}
	`)
	dir := &memDir{}
	require.NoError(t, NewHeaderGenerator().Generate(fd, "", dir))

	// only top-level messages
	assert.Equal(t, "Light\nScene\n", dir.contents("gz_msgs_scene.pb_index"))
	header := dir.contents("gz/msgs/scene.gz.h")
	assert.Contains(t, header, "typedef std::shared_ptr<const Scene> ConstSceneSharedPtr;\n")
	assert.NotContains(t, header, "Fog")
	assert.NotContains(t, header, "Shading")
}

func TestHeaderPlugin(t *testing.T) {
	req := &plugins.CodeGenRequest{
		Args: []string{"support_include=gz/msgs/config.hh", "index=false"},
		Files: []protoreflect.FileDescriptor{
			buildFile(t, "gz/msgs/foo.proto", "gz.msgs", "Foo"),
			buildFile(t, "gz/msgs/bar.proto", "gz.msgs", "Bar"),
		},
	}
	resp := plugins.NewCodeGenResponse(HeaderPluginName, nil)
	require.NoError(t, HeaderPlugin(req, resp))

	outputs := map[string]string{}
	err := resp.ForEach(func(name, insertionPoint string, data io.Reader) error {
		assert.Empty(t, insertionPoint)
		b, err := io.ReadAll(data)
		outputs[name] = string(b)
		return err
	})
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Contains(t, outputs["gz/msgs/foo.gz.h"], "#include <gz/msgs/config.hh>\n")
	assert.Contains(t, outputs["gz/msgs/bar.gz.h"], "typedef std::shared_ptr<Bar> BarSharedPtr;\n")
}

func TestHeaderPlugin_BadArgs(t *testing.T) {
	for _, args := range [][]string{
		{"frobnitz=on"},
		{"index=maybe"},
		{"header_ext=hh"},
	} {
		req := &plugins.CodeGenRequest{
			Args:  args,
			Files: []protoreflect.FileDescriptor{buildFile(t, "gz/msgs/foo.proto", "gz.msgs", "Foo")},
		}
		resp := plugins.NewCodeGenResponse(HeaderPluginName, nil)
		assert.Error(t, HeaderPlugin(req, resp), "args %v", args)
	}
}
