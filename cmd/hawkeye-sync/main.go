package main

import "github.com/hawkeye-monitor/hawkeye-deploy/cmd/hawkeye-sync/cmd"

func main() {
	cmd.Execute()
}
