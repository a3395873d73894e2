package main

import "github.com/nguyentranbao-ct/family-chat/cmd"

func main() {
	cmd.Execute()
}
