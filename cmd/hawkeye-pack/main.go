package main

import "github.com/hawkeye-monitor/hawkeye-deploy/cmd/hawkeye-pack/cmd"

func main() {
	cmd.Execute()
}
