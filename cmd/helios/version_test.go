package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	out := &bytes.Buffer{}
	versionCmd.SetOut(out)
	versionCmd.Run(versionCmd, nil)

	if !strings.Contains(out.String(), "helios") {
		t.Errorf("version output = %q", out.String())
	}
	if !strings.Contains(out.String(), Version) {
		t.Errorf("version output missing version string: %q", out.String())
	}
}
