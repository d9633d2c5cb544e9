package main

import "github.com/hawkeye-monitor/hawkeye-deploy/cmd/hawkeye-launcher/cmd"

func main() {
	cmd.Execute()
}
