package cmd

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/DataSpeaksTech/aici/tokenizer"
)

func NewVocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Show vocabulary statistics",
		Args:  cobra.ExactArgs(0),
		RunE:  VocabHandler,
	}

	addVocabFlag(cmd)
	cmd.Flags().Int("longest", 0, "Also list the n longest tokens")
	return cmd
}

func newTable(cmd *cobra.Command, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func VocabHandler(cmd *cobra.Command, _ []string) error {
	e, err := loadEngine(cmd)
	if err != nil {
		return err
	}

	counts := make(map[int32]int)
	for i := range e.vocab.Size() {
		counts[e.vocab.Type(int32(i))]++
	}

	encoding := "greedy"
	if _, ok := e.tok.(*tokenizer.BytePairEncoding); ok {
		encoding = "bpe"
	}

	eos := e.vocab.EOSToken()

	table := newTable(cmd, "PROPERTY", "VALUE")
	table.AppendBulk([][]string{
		{"path", e.path},
		{"encoding", encoding},
		{"tokens", strconv.Itoa(e.vocab.Size())},
		{"normal", strconv.Itoa(counts[tokenizer.TOKEN_TYPE_NORMAL])},
		{"byte", strconv.Itoa(counts[tokenizer.TOKEN_TYPE_BYTE])},
		{"control", strconv.Itoa(counts[tokenizer.TOKEN_TYPE_CONTROL])},
		{"user defined", strconv.Itoa(counts[tokenizer.TOKEN_TYPE_USER_DEFINED])},
		{"unused", strconv.Itoa(counts[tokenizer.TOKEN_TYPE_UNUSED])},
		{"merges", strconv.Itoa(len(e.vocab.Merges))},
		{"eos", fmt.Sprintf("%d %q", eos, string(tokenizer.ByteLevelDecode(e.vocab.Decode(eos))))},
		{"max token bytes", strconv.Itoa(e.trie.MaxTokenLen())},
		{"trie nodes", strconv.Itoa(e.trie.NumNodes())},
	})
	table.Render()

	if n, _ := cmd.Flags().GetInt("longest"); n > 0 {
		ids := make([]int32, 0, e.vocab.Size())
		for i := range e.vocab.Size() {
			if e.trie.Contains(int32(i)) {
				ids = append(ids, int32(i))
			}
		}

		slices.SortStableFunc(ids, func(a, b int32) int {
			return cmp.Compare(len(e.trie.TokenBytes(b)), len(e.trie.TokenBytes(a)))
		})

		fmt.Fprintln(cmd.OutOrStdout())
		table := newTable(cmd, "ID", "BYTES", "TOKEN")
		for _, id := range ids[:min(n, len(ids))] {
			b := e.trie.TokenBytes(id)
			table.Append([]string{strconv.Itoa(int(id)), strconv.Itoa(len(b)), strconv.Quote(string(b))})
		}
		table.Render()
	}

	return nil
}
