package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DataSpeaksTech/aici/api"
)

func NewTokenizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "tokenize [TEXT...]",
		Short:   "Print the token ids of text",
		Long:    "Print the token ids the server's vocabulary encodes text with. Text is read from standard input when not given.",
		PreRunE: checkServerHeartbeat,
		RunE:    TokenizeHandler,
	}
}

func TokenizeHandler(cmd *cobra.Command, args []string) error {
	text, err := inputText(cmd, args)
	if err != nil {
		return err
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	resp, err := client.Tokenize(cmd.Context(), &api.TokenizeRequest{Text: text})
	if err != nil {
		return err
	}

	ids := make([]string, len(resp.Tokens))
	for i, id := range resp.Tokens {
		ids[i] = strconv.Itoa(int(id))
	}

	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(ids, " "))
	return nil
}

func NewDetokenizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "detokenize ID...",
		Short:   "Print the text of token ids",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: checkServerHeartbeat,
		RunE:    DetokenizeHandler,
	}
}

func DetokenizeHandler(cmd *cobra.Command, args []string) error {
	var ids []int32
	for _, arg := range args {
		// accept "1 2 3" as well as "1,2,3"
		for _, field := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' }) {
			id, err := strconv.ParseInt(field, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid token id %q", field)
			}
			ids = append(ids, int32(id))
		}
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	resp, err := client.Detokenize(cmd.Context(), &api.DetokenizeRequest{Tokens: ids})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
	return nil
}
