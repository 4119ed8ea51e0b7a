package main

import "github.com/jsphweid/choirgen/cmd"

func main() {
	cmd.Execute()
}
