package main

import "github.com/vietddude/taskwatcher/internal/cli"

func main() {
	cli.Execute()
}
