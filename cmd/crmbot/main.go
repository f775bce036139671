package main

import (
	"errors"
	"log"

	"github.com/m3rciful/crmbot/core/cmd"
	coretelegram "github.com/m3rciful/crmbot/core/telegram"
	"github.com/m3rciful/crmbot/internal/app"
)

func main() {
	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			cfg, err := app.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: app.Bootstrap,
	})
	if errors.Is(err, coretelegram.ErrAnotherInstance) {
		log.Fatalf("another bot instance is already running: %v", err)
	}
	if err != nil {
		log.Fatal(err)
	}
}
