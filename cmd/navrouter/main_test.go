package main

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vango-dev/navrouter/internal/errors"
	"github.com/vango-dev/navrouter/pkg/routepath"
)

const manifestYAML = `routes:
  - name: home
    path: /
  - name: post
    path: /posts/:postId
  - name: comment
    path: /posts/:postId/comments/:commentId
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "navrouter.yaml")
	if err := os.WriteFile(path, []byte(manifestYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func codeOf(err error) string {
	var ne *errors.NavError
	if stderrors.As(err, &ne) {
		return ne.Code
	}
	return ""
}

func TestMatchCommand(t *testing.T) {
	out, err := run(t, "match", "/users/:userId/posts/:postId", "/users/u1/posts/9")
	if err != nil {
		t.Fatalf("match error = %v", err)
	}
	if want := "postId=9\nuserId=u1\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	if _, err := run(t, "match", "/posts/:id", "/Posts/1"); err == nil {
		t.Error("case-different literal should not match")
	}
	if _, err := run(t, "match", "/posts/::id", "/posts/1"); codeOf(err) != "E202" {
		t.Errorf("malformed template error = %v, want E202", err)
	}
}

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     string
		wantCode string
	}{
		{"params", []string{"build", "/posts/:postId", "postId=42"}, "/posts/42\n", ""},
		{"query", []string{"build", "/search", "-q", "q=go", "-q", "t=a", "-q", "t=b"}, "/search?q=go&t=a&t=b\n", ""},
		{"missing param", []string{"build", "/posts/:postId"}, "", "E201"},
		{"bad argument", []string{"build", "/posts/:postId", "postId"}, "", "E400"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if tt.wantCode != "" {
				if codeOf(err) != tt.wantCode {
					t.Errorf("error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestResolveCommand(t *testing.T) {
	path := writeManifest(t)
	out, err := run(t, "--config", path, "--log-level", "error", "resolve", "/posts/7/comments/3")
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("output has %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[3], "opened") || !strings.Contains(lines[3], "commentId=3 postId=7") {
		t.Errorf("comment row = %q", lines[3])
	}
	if !strings.Contains(lines[2], "left") {
		t.Errorf("post row = %q", lines[2])
	}

	if _, err := run(t, "--config", path, "--log-level", "error", "resolve", "relative"); codeOf(err) != "E205" {
		t.Errorf("relative path error = %v, want E205", err)
	}
}

func TestRoutesCommand(t *testing.T) {
	out, err := run(t, "--config", writeManifest(t), "routes")
	if err != nil {
		t.Fatalf("routes error = %v", err)
	}
	for _, want := range []string{"home", "/posts/:postId/comments/:commentId", "postId,commentId"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "routes")
	if codeOf(err) != "E121" {
		t.Errorf("error = %v, want E121", err)
	}
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"a=1", "b=", "a=2", "c=x=y"})
	if err != nil {
		t.Fatal(err)
	}
	want := routepath.Params{"a": "2", "b": "", "c": "x=y"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseParams() mismatch (-want +got):\n%s", diff)
	}
	if _, err := parseParams([]string{"=v"}); codeOf(err) != "E400" {
		t.Errorf("empty name error = %v, want E400", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("output = %q", buf.String())
	}

	if _, err := newLogger(&buf, "loud", "text"); err == nil {
		t.Error("unknown level should fail")
	}
	if _, err := newLogger(&buf, "info", "xml"); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestVersionShort(t *testing.T) {
	out, err := run(t, "version", "--short")
	if err != nil || out != "dev\n" {
		t.Errorf("version --short = %q, %v", out, err)
	}
}
