package cmd

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/internal/build"
)

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	root := NewRootCommand()
	root.AddCommand(NewVersionCommand())
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())

	require.Contains(t, buf.String(), "batchlane version "+build.Version)
}

func TestVersionCommandRejectsArgs(t *testing.T) {
	root := NewRootCommand()
	root.AddCommand(NewVersionCommand())
	root.SetArgs([]string{"version", "extra"})
	root.SetErr(&bytes.Buffer{})
	require.Error(t, root.Execute())
}
