package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"saathi/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Daemon control socket")
	cli.Parse()

	cmd := "trigger"
	if args := cli.Args(); len(args) > 0 {
		cmd = args[0]
	}

	rep, err := ipc.Send(*socket, cmd)
	if err != nil {
		fmt.Println("saathi daemon not running:", err)
		os.Exit(1)
	}
	if !rep.OK {
		fmt.Println("rejected:", rep.Detail)
		os.Exit(1)
	}
	if rep.Detail != "" {
		fmt.Println(rep.Detail)
	}
}
