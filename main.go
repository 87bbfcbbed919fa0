package main

import "github.com/josephlewis42/demosh/cmd"

func main() {
	cmd.Execute()
}
