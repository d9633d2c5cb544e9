package main

import "github.com/hawkeye-monitor/hawkeye-deploy/cmd/hawkeye-setup/cmd"

func main() {
	cmd.Execute()
}
