package main

import "github.com/flipagent/flipagent/cmd"

func main() {
	cmd.Execute()
}
