package main

import (
	"log"

	"github.com/joho/godotenv"

	corecmd "github.com/m3rciful/scamcheck/core/cmd"
	"github.com/m3rciful/scamcheck/internal/app"
)

func main() {
	// .env is optional; real deployments pass environment directly.
	_ = godotenv.Load()

	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: app.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
