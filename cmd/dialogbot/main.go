package main

import (
	"log"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"

	"github.com/m3rciful/dialogbot/core/buildinfo"
	"github.com/m3rciful/dialogbot/core/cmd"
	"github.com/m3rciful/dialogbot/internal/bot"
	"github.com/m3rciful/dialogbot/internal/config"
)

type args struct {
	Config string `arg:"-c,--config,env:CONFIG_PATH" help:"path to the YAML config" default:"config.yaml"`
}

func (args) Version() string {
	return "dialogbot " + buildinfo.String()
}

func init() {
	if os.Getenv("DIALOGBOT_NO_DOTENV") == "" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("dotenv: %v", err)
		}
	}
}

func main() {
	var a args
	arg.MustParse(&a)

	err := cmd.Run(cmd.Options{
		ConfigPath: a.Config,
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: bot.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
