package main

import "github.com/jfarhadi/pos-sync/cmd"

func main() {
	cmd.Execute()
}
