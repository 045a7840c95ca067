package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g2gml/pg/config"
	"github.com/g2gml/pg/pipeline"
)

const graph = `# sample
alice :Person name:"Ann Lee" age:30
bob :Person name:Bob tag:x tag:y
alice -> bob :KNOWS since:2020
`

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.pg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &stdout, &stderr, args)
	return stdout.String(), stderr.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunWritesTablesNextToInput(t *testing.T) {
	input := writeInput(t, graph)
	_, logs, err := execute(t, input, "-p", "2", "--tmp-dir", t.TempDir())
	require.NoError(t, err)

	dir := filepath.Dir(input)
	nodes := readFile(t, filepath.Join(dir, "graph.neo.nodes"))
	edges := readFile(t, filepath.Join(dir, "graph.neo.edges"))

	assert.Contains(t, nodes, "id:ID\t:LABEL\tname:string\tage:long\ttag:string[]\n")
	assert.Contains(t, nodes, "alice\tPerson\tAnn Lee\t30\t\n")
	assert.Contains(t, nodes, "bob\tPerson\tBob\t\tx;y\n")
	assert.Equal(t, ":START_ID\t:END_ID\t:TYPE\tsince:long\nalice\tbob\tKNOWS\t2020\n", edges)
	assert.Contains(t, logs, "has been created")
}

func TestRunHonorsPrefixAndStagingFlags(t *testing.T) {
	for _, args := range [][]string{
		{"--without-tmp-file"},
		{"--staging", "sqlite"},
		{"--staging", "none", "--batch-lines", "1", "--chunk-bytes", "8"},
	} {
		input := writeInput(t, graph)
		prefix := filepath.Join(t.TempDir(), "out", "g")
		require.NoError(t, os.MkdirAll(filepath.Dir(prefix), 0755))

		_, _, err := execute(t, append([]string{input, "-o", prefix, "--tmp-dir", t.TempDir(), "--log-level", "error"}, args...)...)
		require.NoError(t, err, args)
		assert.FileExists(t, prefix+".neo.nodes")
		assert.FileExists(t, prefix+".neo.edges")
	}
}

func TestRunReadsConfigFile(t *testing.T) {
	input := writeInput(t, graph)
	prefix := filepath.Join(t.TempDir(), "configured")
	cfgPath := filepath.Join(t.TempDir(), "pg2neo.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("parallel: 1\noutput:\n  prefix: "+prefix+"\nlogging:\n  format: json\n"), 0644))

	_, logs, err := execute(t, input, "--config", cfgPath, "--tmp-dir", t.TempDir())
	require.NoError(t, err)
	assert.FileExists(t, prefix+".neo.nodes")
	assert.Contains(t, logs, `"component":"Main"`)
}

func TestRunRemovesOutputsOnGrammarError(t *testing.T) {
	input := writeInput(t, graph+"carol name:\"Ann\n")
	_, _, err := execute(t, input, "--tmp-dir", t.TempDir(), "--log-level", "error")
	require.Error(t, err)

	var lineErr *pipeline.LineError
	require.True(t, errors.As(err, &lineErr), "got %v", err)
	assert.Equal(t, 5, lineErr.Line)

	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))

	dir := filepath.Dir(input)
	assert.NoFileExists(t, filepath.Join(dir, "graph.neo.nodes"))
	assert.NoFileExists(t, filepath.Join(dir, "graph.neo.edges"))
}

func TestRunUsageErrors(t *testing.T) {
	input := writeInput(t, graph)
	for name, args := range map[string][]string{
		"no input":     {},
		"two inputs":   {input, input},
		"unknown flag": {input, "--frobnicate"},
		"bad staging":  {input, "--staging", "redis"},
		"bad level":    {input, "--log-level", "loud"},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := execute(t, args...)
			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr), "got %v", err)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestRunMissingInput(t *testing.T) {
	_, _, err := execute(t, filepath.Join(t.TempDir(), "missing.pg"))
	assert.ErrorContains(t, err, "failed to open input")
}

func TestInspect(t *testing.T) {
	input := writeInput(t, graph)
	_, _, err := execute(t, input, "--tmp-dir", t.TempDir(), "--log-level", "error")
	require.NoError(t, err)

	out, _, err := execute(t, "inspect", filepath.Join(filepath.Dir(input), "graph.neo.nodes"))
	require.NoError(t, err)
	assert.Contains(t, out, "id")
	assert.Contains(t, out, "tag")
	assert.Contains(t, out, "string[]")
	assert.Contains(t, out, "rows: 2\n")

	_, _, err = execute(t, "inspect")
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
}

func TestInitConfigWritesLoadableFile(t *testing.T) {
	t.Setenv("PG2NEO_PARALLEL", "3")
	path := filepath.Join(t.TempDir(), "conf", "pg2neo.yaml")

	out, _, err := execute(t, "init-config", path)
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Parallel)
	assert.Equal(t, config.DefaultConfig().Staging, cfg.Staging)

	_, _, err = execute(t, "init-config")
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
}

func TestInspectQuotesColumnNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.neo.nodes")
	require.NoError(t, os.WriteFile(path, []byte("id:ID\t:LABEL\tsay\"hi:string\nn1\tA\tx\n"), 0644))

	out, _, err := execute(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"say""hi"`)
	assert.Contains(t, out, "rows: 1\n")
}
