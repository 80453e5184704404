package gzprotoc

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gzmsgs/gzprotoc/plugins"
)

func insertions(lang string, points ...string) map[string][]insertedContent {
	m := map[string][]insertedContent{}
	for i := 0; i+1 < len(points); i += 2 {
		m[points[i]] = append(m[points[i]], insertedContent{data: []byte(points[i+1]), lang: lang})
	}
	return m
}

func TestApplyInsertions(t *testing.T) {
	testCases := []struct {
		name       string
		data       string
		insertions map[string][]insertedContent
		expected   string
	}{
		{
			name: "line marker",
			data: "#include <string>\n" +
				"// @@protoc_insertion_point(includes)\n" +
				"namespace foo {\n",
			insertions: insertions("ignmsgs", "includes", "#include <memory>\n"),
			expected: "#include <string>\n" +
				"#include <memory>\n" +
				"// @@protoc_insertion_point(includes)\n" +
				"namespace foo {\n",
		},
		{
			name: "indented marker",
			data: "class Foo {\n" +
				"  // @@protoc_insertion_point(class_scope:Foo)\n" +
				"};\n",
			insertions: insertions("x", "class_scope:Foo", "int a;\nint b;\n\n"),
			expected: "class Foo {\n" +
				"  int a;\n" +
				"  int b;\n" +
				"\n" +
				"  // @@protoc_insertion_point(class_scope:Foo)\n" +
				"};\n",
		},
		{
			name:       "inline comment marker",
			data:       "enum E { A = 0, /* @@protoc_insertion_point(enum) */ };\n",
			insertions: insertions("x", "enum", "B = 1,"),
			expected:   "enum E { A = 0, B = 1, /* @@protoc_insertion_point(enum) */ };\n",
		},
		{
			name: "snippets keep their order",
			data: "// @@protoc_insertion_point(global_scope)\n",
			insertions: insertions("ignmsgs",
				"global_scope", "typedef int A;\n",
				"global_scope", "typedef int B;"),
			expected: "typedef int A;\n" +
				"typedef int B;\n" +
				"// @@protoc_insertion_point(global_scope)\n",
		},
		{
			name: "unknown markers pass through",
			data: "// @@protoc_insertion_point(other)\n" +
				"x\n" +
				"// @@protoc_insertion_point(namespace_scope)\n" +
				"// @@protoc_insertion_point(namespace_scope)\n",
			insertions: insertions("ignmsgs", "namespace_scope", "y\n"),
			expected: "// @@protoc_insertion_point(other)\n" +
				"x\n" +
				"y\n" +
				"// @@protoc_insertion_point(namespace_scope)\n" +
				"// @@protoc_insertion_point(namespace_scope)\n",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := applyInsertions("test.h", []byte(tc.data), tc.insertions)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(result))
		})
	}
}

func TestApplyInsertions_MissingPoints(t *testing.T) {
	ins := insertions("ignmsgs", "namespace_scope", "a", "global_scope", "b", "includes", "c")
	ins["includes"] = append(ins["includes"], insertedContent{data: []byte("d"), lang: "alpha"})

	_, err := applyInsertions("foo.pb.h", []byte("// @@protoc_insertion_point(includes)\n"), ins)
	require.Error(t, err)
	assert.Equal(t, `missing insertion point(s) in "foo.pb.h": "ignmsgs" wants to insert into global_scope,namespace_scope`, err.Error())
}

func TestAssembleFileOutputs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.h"), []byte("// @@protoc_insertion_point(here)\n"), 0666))

	conf := &Config{Outputs: map[string]*Output{
		"a": {Dir: dir},
		"b": {Dir: dir + "/"},
	}}
	a := plugins.NewCodeGenResponse("a", nil)
	b := plugins.NewCodeGenResponse("b", nil)
	writeOutput(t, a, "gen.h", "", "// @@protoc_insertion_point(here)\n")
	writeOutput(t, b, "gen.h", "here", "from b\n")
	writeOutput(t, b, "existing.h", "here", "also b\n")

	results, err := assembleFileOutputs(conf, map[string]*plugins.CodeGenResponse{"a": a, "b": b})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(dir, "existing.h"), results[0].path())
	assert.Equal(t, "also b\n// @@protoc_insertion_point(here)\n", string(results[0].contents))
	assert.Equal(t, filepath.Join(dir, "gen.h"), results[1].path())
	assert.Equal(t, "from b\n// @@protoc_insertion_point(here)\n", string(results[1].contents))
}

func TestAssembleFileOutputs_Conflicts(t *testing.T) {
	dir := t.TempDir()
	conf := &Config{Outputs: map[string]*Output{"a": {Dir: dir}, "b": {Dir: dir}}}

	a := plugins.NewCodeGenResponse("a", nil)
	b := plugins.NewCodeGenResponse("b", nil)
	writeOutput(t, a, "same.h", "", "a")
	writeOutput(t, b, "same.h", "", "b")
	_, err := assembleFileOutputs(conf, map[string]*plugins.CodeGenResponse{"a": a, "b": b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both a and b tried to create file")

	b = plugins.NewCodeGenResponse("b", nil)
	writeOutput(t, b, "missing.h", "here", "b")
	_, err = assembleFileOutputs(conf, map[string]*plugins.CodeGenResponse{"b": b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not generated and does not exist")
}

func TestWriteFileResult_CreatesDirs(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "a", "b", "c.h")
	require.NoError(t, writeFileResult(fileName, []byte("one")))
	require.NoError(t, writeFileResult(fileName, []byte("x")))
	b, err := os.ReadFile(fileName)
	require.NoError(t, err)
	assert.Equal(t, "x", string(b))
}

func writeOutput(t *testing.T, resp *plugins.CodeGenResponse, name, point, content string) {
	t.Helper()
	var w io.WriteCloser
	var err error
	if point == "" {
		w, err = resp.Open(name)
	} else {
		w, err = resp.OpenForInsert(name, point)
	}
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}
