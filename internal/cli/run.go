package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Run executes cmd and returns the process exit code. Failures the command
// already wrote through its OutputFormatter are not printed again.
func Run(cmd *cobra.Command, stderr io.Writer) int {
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	if !IsReported(err) {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return GetExitCode(err)
}
