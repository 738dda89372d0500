package main

import "github.com/lu-zhengda/knot/internal/cli"

func main() {
	cli.Execute()
}
