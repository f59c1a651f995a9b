package main

import "github.com/mogden/flux2imd/cmd"

func main() {
	cmd.Execute()
}
