package main

import "github.com/hawkeye-monitor/hawkeye-deploy/cmd/hawkeye-compose/cmd"

func main() {
	cmd.Execute()
}
