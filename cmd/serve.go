package cmd

import (
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DataSpeaksTech/aici/envconfig"
	"github.com/DataSpeaksTech/aici/host"
	"github.com/DataSpeaksTech/aici/library"
	"github.com/DataSpeaksTech/aici/runner"
	"github.com/DataSpeaksTech/aici/server"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start aici",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}

	addVocabFlag(cmd)
	cmd.Flags().String("library", "", "Path to a YAML library of named constraints (default $AICI_LIBRARY)")

	cmd.SetUsageTemplate(cmd.UsageTemplate() + `
Environment Variables:

    AICI_HOST           The host:port to bind to (default "127.0.0.1:8090")
    AICI_ORIGINS        A comma separated list of allowed origins
    AICI_VOCAB          The tokenizer.json to load
    AICI_LIBRARY        A YAML library of named constraints, reloaded on change
    AICI_NUM_PARALLEL   Maximum sequences evaluated in parallel
`)
	return cmd
}

func RunServer(cmd *cobra.Command, _ []string) error {
	e, err := loadEngine(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path, _ := cmd.Flags().GetString("library")
	if path == "" {
		path = envconfig.Library()
	}

	var lib *library.Library
	if path != "" {
		if lib, err = library.Load(path, e.trie); err != nil {
			return err
		}

		go func() {
			if err := lib.Watch(ctx); err != nil {
				slog.Warn("library watch stopped", "path", path, "error", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", envconfig.Host().Host)
	if err != nil {
		return err
	}

	r := runner.New(e.tok, e.trie, runner.WithParallel(int(envconfig.NumParallel())))
	slog.Info("vocabulary loaded", "path", e.path, "tokens", e.vocab.Size(), "eos", e.trie.EOSToken())

	return server.Serve(ctx, ln, server.New(r, lib, host.NewMemoryStorage()))
}
