package main

import (
	"os"

	"github.com/saazpayhq/saazpay/pkg/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:], os.Stdout, os.Stderr))
}
