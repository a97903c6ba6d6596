// Package main is the framepipe command itself.
package main

import (
	"context"
	"os"

	"go.viam.com/utils"

	"go.viam.com/framepipe/cli"
	"go.viam.com/framepipe/logging"
)

var logger = logging.NewLogger("framepipe")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	return cli.NewApp(os.Stdout, os.Stderr).RunContext(ctx, args)
}
