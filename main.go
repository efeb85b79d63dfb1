package main

import "github.com/ucsync/ucsync/cmd"

func main() {
	cmd.Execute()
}
