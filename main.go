package main

import "headbench/cmd"

func main() {
	cmd.Execute()
}
