package main

import "github.com/lepinkainen/librarian/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
