package main

import (
	"log"
	"os"
	"s3mirror/cmd"
	"s3mirror/config"
)

func main() {
	cnf, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	os.Exit(cmd.ExitCode(cmd.Execute(cnf)))
}
