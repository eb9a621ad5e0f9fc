package main

import (
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"
)

const usage = `apkre reconstructs the control flow and exception structure of Dalvik methods`

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "apkre:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:        "apkre",
		Usage:       usage,
		HideVersion: true,
		Flags: []cli.Flag{
			configFlag,
			logLevelFlag,
		},
		Commands: []*cli.Command{
			treeCommand,
			flowCommand,
			circuitsCommand,
		},
	}
}
