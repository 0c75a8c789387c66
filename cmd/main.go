package main

import (
	"github.com/metrics-agent/cmd/agent"
)

func main() {
	agent.Execute()
}
