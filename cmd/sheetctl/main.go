// Command sheetctl administers a Conti data directory offline: listing and
// prechecking song sheets, managing user roles and rebuilding the search
// index. Stop the server first; the database allows one process at a time.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := execute(os.Args[1:]); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// execute runs one command and always releases the data directory.
func execute(args []string) error {
	cmd, ctx := newRootCommand()
	cmd.SetArgs(args)
	err := cmd.Execute()
	return errors.Join(err, ctx.Close())
}
