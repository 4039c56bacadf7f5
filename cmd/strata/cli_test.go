package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir(%s): %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("Chdir(%s): %v", wd, err)
		}
	})
}

func runCmd(t *testing.T, build func() *cobra.Command, args ...string) string {
	t.Helper()
	out := runCmdErr(t, build, true, args...)
	return out
}

func runCmdErr(t *testing.T, build func() *cobra.Command, mustSucceed bool, args ...string) string {
	t.Helper()
	cmd := build()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	if mustSucceed && err != nil {
		t.Fatalf("%v %v: %v\n%s", cmd.Name(), args, err, buf.String())
	}
	if !mustSucceed && err == nil {
		t.Fatalf("%v %v succeeded, want error", cmd.Name(), args)
	}
	return buf.String()
}

func TestInitNewLogFlow(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	out := runCmd(t, newInitCmd)
	if !strings.Contains(out, "Initialized repository") {
		t.Fatalf("init output = %q", out)
	}

	out = runCmd(t, newNewCmd, "-m", "start work")
	if !strings.Contains(out, "Working copy now at") {
		t.Fatalf("new output = %q", out)
	}

	out = runCmd(t, newLogCmd, "-r", "@", "--oneline")
	if !strings.Contains(out, "start work") {
		t.Fatalf("log output = %q", out)
	}
}

func TestDescribeKeepsChangeID(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	runCmd(t, newInitCmd)
	out := runCmd(t, newNewCmd, "-m", "draft")

	// "Working copy now at <id> (change <changeid>)"
	fields := strings.Fields(out)
	change := strings.TrimSuffix(fields[len(fields)-1], ")")

	out = runCmd(t, newDescribeCmd, "-m", "final message")
	if !strings.Contains(out, change) {
		t.Errorf("describe output %q does not mention change %s", out, change)
	}

	out = runCmd(t, newLogCmd, "-r", "@", "--oneline")
	if !strings.Contains(out, "final message") || strings.Contains(out, "draft") {
		t.Errorf("log after describe = %q", out)
	}
}

func TestUndoRestoresPriorView(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	runCmd(t, newInitCmd)
	runCmd(t, newNewCmd, "-m", "will be undone")

	out := runCmd(t, newUndoCmd)
	if !strings.Contains(out, "Undid operation") {
		t.Fatalf("undo output = %q", out)
	}

	// The undone commit is no longer visible.
	out = runCmd(t, newLogCmd, "--oneline")
	if strings.Contains(out, "will be undone") {
		t.Errorf("log after undo = %q", out)
	}

	out = runCmd(t, newOplogCmd)
	if !strings.Contains(out, "undo operation") {
		t.Errorf("oplog missing undo entry: %q", out)
	}
}

func TestLogOutsideRepoFails(t *testing.T) {
	chdir(t, t.TempDir())
	runCmdErr(t, newLogCmd, false)
}

func TestInitSQLiteBackend(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	out := runCmd(t, newInitCmd, "--backend", "sqlite")
	if !strings.Contains(out, "sqlite backend") {
		t.Fatalf("init output = %q", out)
	}
	runCmd(t, newNewCmd, "-m", "on sqlite")
	out = runCmd(t, newLogCmd, "-r", "@", "--oneline")
	if !strings.Contains(out, "on sqlite") {
		t.Fatalf("log output = %q", out)
	}
}
