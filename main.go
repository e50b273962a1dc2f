package main

import "github.com/KaramelBytes/census-cli/cmd"

func main() {
	cmd.Execute()
}
