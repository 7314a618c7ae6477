// artifacts maintains required-document artifacts from artifact rules.
//
// Usage:
//
//	artifacts migrate [--db <path>]
//	artifacts rules validate|load <rules-dir>
//	artifacts rules list [--type <record-type>]
//	artifacts labels set <record-type> <attribute> <code> <label>
//	artifacts created|changed|deleting <record-type> <record-id>
//	artifacts annotated <annotation-id>
//	artifacts show <record-type> <record-id>
//	artifacts reconcile <record-type>
//	artifacts serve [--listen <addr>]
//	artifacts test <rules-dir> <scenarios-dir>
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/artifacts/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
