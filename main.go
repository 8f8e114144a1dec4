package main

import "github.com/norelabs/dashsrv/cmd"

func main() {
	cmd.Execute()
}
