// Package main implements the bootstack CLI tool.
// It provisions a templated application stack into an AWS account.
package main

import "github.com/bootstack/bootstack/cmd/bootstack/cmd"

func main() {
	cmd.Execute()
}
