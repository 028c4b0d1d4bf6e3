package main

import (
	"github.com/corvidmail/mail-backend/cmd"
)

// GitCommit is set at build time via
// go build -ldflags "-X main.GitCommit=$(git rev-parse --short HEAD)".
var GitCommit string

func main() {
	cmd.Execute(GitCommit)
}
