// Package cmd implements the aici command line.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/DataSpeaksTech/aici/api"
	"github.com/DataSpeaksTech/aici/envconfig"
	"github.com/DataSpeaksTech/aici/logutil"
	"github.com/DataSpeaksTech/aici/tokenizer"
	"github.com/DataSpeaksTech/aici/toktrie"
)

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aici",
		Short: "Token-level constrained decoding engine",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
			level := envconfig.LogLevel()
			logutil.Setup(cmd.ErrOrStderr(), level)
			if verbose, _ := cmd.Flags().GetCount("verbose"); verbose > 0 {
				logutil.SetLevel(min(level, slog.LevelInfo-slog.Level(4*verbose)))
			}
		},
	}

	rootCmd.PersistentFlags().CountP("verbose", "v", "Lower the log level (-v debug, -vv trace)")

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		NewServeCmd(),
		NewTokenizeCmd(),
		NewDetokenizeCmd(),
		NewCheckCmd(),
		NewVocabCmd(),
		NewEnvCmd(),
	)

	return rootCmd
}

func checkServerHeartbeat(cmd *cobra.Command, _ []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	if err := client.Heartbeat(cmd.Context()); err != nil {
		return fmt.Errorf("could not connect to aici server at %s, run 'aici serve' to start it: %w", envconfig.Host(), err)
	}
	return nil
}

// engine is a vocabulary loaded for local use.
type engine struct {
	path  string
	vocab *tokenizer.Vocabulary
	trie  *toktrie.Trie
	tok   tokenizer.Tokenizer
}

func addVocabFlag(cmd *cobra.Command) {
	cmd.Flags().String("vocab", "", "Path to tokenizer.json (default $AICI_VOCAB)")
	cmd.Flags().String("eos", "", "Added token used as end of sequence (default $AICI_EOS_TOKEN)")
}

func loadEngine(cmd *cobra.Command) (*engine, error) {
	path, _ := cmd.Flags().GetString("vocab")
	if path == "" {
		path = envconfig.Vocab()
	}

	if path == "" {
		return nil, errors.New("no vocabulary given, use --vocab or set AICI_VOCAB")
	}

	eos, _ := cmd.Flags().GetString("eos")
	if eos == "" {
		eos = envconfig.EOSToken()
	}

	var eosNames []string
	if eos != "" {
		eosNames = append(eosNames, eos)
	}

	vocab, err := tokenizer.LoadFile(path, eosNames...)
	if err != nil {
		return nil, err
	}

	trie := toktrie.New(vocab)
	return &engine{
		path:  path,
		vocab: vocab,
		trie:  trie,
		tok:   tokenizer.New(vocab, trie),
	}, nil
}

// inputText joins args, or reads standard input when there are none and
// it is not a terminal.
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", errors.New("no input text given")
	}

	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}

	if len(b) == 0 {
		return "", errors.New("no input text given")
	}
	return strings.TrimSuffix(string(b), "\n"), nil
}
