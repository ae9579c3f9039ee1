// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/pathspace/lib/config"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := &app{stdout: &stdout, stderr: &stderr}
	err := a.root().execute(&stderr, args)
	return stdout.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runApp(t, args...)
	if err != nil {
		t.Fatalf("pathspace %s: %v", strings.Join(args, " "), err)
	}
	return out
}

// field returns the value printed after label by inspect.
func field(output, label string) string {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == label+":" {
			return fields[1]
		}
	}
	return ""
}

func statePath(t *testing.T) string {
	t.Setenv(config.EnvVar, "")
	return filepath.Join(t.TempDir(), "space.psnp")
}

func TestPutGetAcrossInvocations(t *testing.T) {
	state := statePath(t)

	mustRun(t, "put", "/greeting", "hello", "--state", state)
	mustRun(t, "put", "/count", "42", "--type", "int", "--state", state)
	mustRun(t, "put", "/count", "43", "--type", "int", "--state", state)

	if out := mustRun(t, "get", "/greeting", "--state", state); out != "hello\n" {
		t.Errorf("get /greeting = %q, want hello", out)
	}
	if out := mustRun(t, "get", "/count", "--take", "--state", state); out != "42\n" {
		t.Errorf("first take = %q, want 42", out)
	}
	if out := mustRun(t, "get", "/count", "--take", "--state", state); out != "43\n" {
		t.Errorf("second take = %q, want 43", out)
	}
	if _, err := runApp(t, "get", "/count", "--state", state); !spaceerr.Is(err, spaceerr.NoSuchPath) {
		t.Errorf("get after draining: error = %v, want NoSuchPath", err)
	}
}

func TestGetWaitTimesOut(t *testing.T) {
	state := statePath(t)
	_, err := runApp(t, "get", "/never", "--wait", "--timeout", "20ms", "--state", state)
	if !spaceerr.Is(err, spaceerr.Timeout) {
		t.Errorf("get --wait error = %v, want Timeout", err)
	}
}

func TestPutRejectsBadValues(t *testing.T) {
	state := statePath(t)
	if _, err := runApp(t, "put", "/n", "many", "--type", "int", "--state", state); err == nil {
		t.Error("put of a non-integer with --type int succeeded")
	}
	if _, err := runApp(t, "put", "relative", "x", "--state", state); !spaceerr.Is(err, spaceerr.InvalidPath) {
		t.Errorf("put to a relative path: error = %v, want InvalidPath", err)
	}
}

func TestTree(t *testing.T) {
	state := statePath(t)
	mustRun(t, "put", "/jobs/build", "make", "--state", state)
	mustRun(t, "put", "/jobs/test", "go test", "--state", state)

	out := mustRun(t, "tree", "--values", "--state", state)
	for _, want := range []string{"jobs", "build [1] = make", "test [1] = go test"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, "tree", "--depth", "1", "--state", state)
	if strings.Contains(out, "build") {
		t.Errorf("tree --depth 1 shows leaves below depth 1:\n%s", out)
	}
}

func TestSnapshotAndInspect(t *testing.T) {
	state := statePath(t)
	mustRun(t, "put", "/a", "1", "--type", "int", "--state", state)
	mustRun(t, "put", "/b/c", `{"k": "v"}`, "--type", "json", "--state", state)

	out := filepath.Join(t.TempDir(), "backup.psnp")
	mustRun(t, "snapshot", "--out", out, "--compression", "none", "--state", state)

	summary := mustRun(t, "inspect", out)
	if got := field(summary, "values"); got != "2" {
		t.Errorf("inspect values = %q, want 2\n%s", got, summary)
	}
	if got := field(summary, "compression"); got != "none" {
		t.Errorf("inspect compression = %q, want none", got)
	}
	if got := field(summary, "digest"); len(got) != 64 {
		t.Errorf("inspect digest = %q, want 64 hex characters", got)
	}

	exported := mustRun(t, "snapshot", "--out", "-", "--json", "--state", state)
	var tree map[string]any
	if err := json.Unmarshal([]byte(exported), &tree); err != nil {
		t.Fatalf("snapshot --json output does not parse: %v\n%s", err, exported)
	}
	if _, ok := tree["b"].(map[string]any)["c"]; !ok {
		t.Errorf("JSON export missing b.c: %s", exported)
	}
}

func TestConfiguredMounts(t *testing.T) {
	state := statePath(t)
	disk := t.TempDir()
	configPath := filepath.Join(t.TempDir(), "space.yaml")
	content := "mounts:\n" +
		"  - path: /disk\n    kind: filesystem\n    root: " + disk + "\n" +
		"  - path: /recent\n    kind: bounded\n    capacity: 1\n" +
		"  - path: /link\n    kind: alias\n    target: /disk\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	mustRun(t, "put", "/disk/note", "written", "--config", configPath, "--state", state)
	data, err := os.ReadFile(filepath.Join(disk, "note"))
	if err != nil || string(data) != "written" {
		t.Errorf("filesystem mount file = (%q, %v), want written", data, err)
	}
	if out := mustRun(t, "get", "/link/note", "--config", configPath); out != "written\n" {
		t.Errorf("get through alias = %q, want written", out)
	}

	out := mustRun(t, "tree", "--config", configPath)
	for _, want := range []string{"disk (mount)", "recent (mount)", "link (mount)"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree output missing %q:\n%s", want, out)
		}
	}
}

func TestTrellisAndCachedMounts(t *testing.T) {
	state := statePath(t)
	configPath := filepath.Join(t.TempDir(), "space.yaml")
	content := "mounts:\n" +
		"  - path: /fan\n    kind: trellis\n    output: merged\n    policy: priority\n" +
		"    sources: [/inbox/urgent, /inbox/normal]\n" +
		"  - path: /settings\n    kind: memory\n    cached: true\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	mustRun(t, "put", "/inbox/normal", "later", "--config", configPath, "--state", state)
	mustRun(t, "put", "/inbox/urgent", "first", "--config", configPath, "--state", state)
	for _, want := range []string{"first\n", "later\n"} {
		if out := mustRun(t, "get", "/fan/merged", "--take", "--config", configPath, "--state", state); out != want {
			t.Errorf("take from trellis = %q, want %q", out, want)
		}
	}
	if _, err := runApp(t, "get", "/inbox/normal", "--config", configPath, "--state", state); !spaceerr.IsAbsent(err) {
		t.Errorf("get of drained source: error = %v, want absent", err)
	}

	out := mustRun(t, "tree", "--config", configPath)
	for _, want := range []string{"fan (mount)", "settings (mount)"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree output missing %q:\n%s", want, out)
		}
	}
}

func TestPolicyDeniesWrites(t *testing.T) {
	state := statePath(t)
	configPath := filepath.Join(t.TempDir(), "space.yaml")
	content := "grants:\n  - paths: [\"/**\"]\n    actions: [read]\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := runApp(t, "put", "/x", "y", "--config", configPath, "--state", state)
	if !spaceerr.Is(err, spaceerr.InvalidPermissions) {
		t.Errorf("put under read-only policy: error = %v, want InvalidPermissions", err)
	}
}

func TestUnknownCommandSuggestion(t *testing.T) {
	_, err := runApp(t, "tre")
	if err == nil || !strings.Contains(err.Error(), `did you mean "tree"`) {
		t.Errorf("error = %v, want a suggestion for tree", err)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		kind, raw string
		want      any
	}{
		{"string", "x", "x"},
		{"int", "-3", -3},
		{"float", "2.5", 2.5},
		{"bool", "true", true},
	}
	for _, test := range tests {
		got, err := parseValue(test.kind, test.raw)
		if err != nil || got != test.want {
			t.Errorf("parseValue(%q, %q) = (%v, %v), want %v", test.kind, test.raw, got, err, test.want)
		}
	}
	for _, bad := range [][2]string{{"json", "[1]"}, {"complex", "1i"}} {
		if _, err := parseValue(bad[0], bad[1]); err == nil {
			t.Errorf("parseValue(%q, %q) succeeded", bad[0], bad[1])
		}
	}
}
