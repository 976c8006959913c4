package main

import "github.com/mnemo-dev/mnemo/cli"

func main() {
	cli.Execute()
}
