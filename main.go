package main

import "github.com/binarysemaphore/ylex/cmd"

func main() {
	cmd.Execute()
}
