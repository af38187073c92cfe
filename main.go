package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"github.com/DataSpeaksTech/aici/cmd"
	"github.com/DataSpeaksTech/aici/envconfig"
)

func main() {
	if err := envconfig.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
