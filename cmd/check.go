package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/DataSpeaksTech/aici/constraint"
	"github.com/DataSpeaksTech/aici/envconfig"
	"github.com/DataSpeaksTech/aici/library"
	"github.com/DataSpeaksTech/aici/runner"
)

func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [TEXT...]",
		Short: "Walk a constraint over text token by token",
		Long: `Tokenize text and commit it to a constraint one token at a time, printing
how many tokens were allowed at every step. Exits with an error at the
first token the constraint rejects.`,
		Example: `  aici check --regex 'ab*c' abbc
  aici check --schema person.json < answer.json
  aici check --library library.yaml --name number -- -42`,
		RunE: CheckHandler,
	}

	addVocabFlag(cmd)
	cmd.Flags().String("regex", "", "Regular expression the text must match")
	cmd.Flags().String("grammar", "", "Path to an EBNF grammar the text must match")
	cmd.Flags().String("schema", "", "Path to a JSON schema the text must match")
	cmd.Flags().String("substr", "", "Template the text must be a substring of")
	cmd.Flags().String("stop", "", "Bytes ending a --substr match early")
	cmd.Flags().String("library", "", "Path to a YAML library of named constraints (default $AICI_LIBRARY)")
	cmd.Flags().String("name", "", "Constraint to use from the library")
	cmd.MarkFlagsMutuallyExclusive("regex", "grammar", "schema", "substr", "name")
	return cmd
}

// checkSpec builds the constraint.Spec the flags of cmd describe.
func checkSpec(cmd *cobra.Command) (constraint.Spec, error) {
	flags := cmd.Flags()
	regex, _ := flags.GetString("regex")
	substr, _ := flags.GetString("substr")
	stop, _ := flags.GetString("stop")

	switch {
	case flags.Changed("regex"):
		return constraint.Spec{Kind: "regex", Pattern: regex}, nil
	case flags.Changed("substr"):
		return constraint.Spec{Kind: "substr", Template: substr, StopAt: stop}, nil
	case flags.Changed("grammar"):
		path, _ := flags.GetString("grammar")
		b, err := os.ReadFile(path)
		if err != nil {
			return constraint.Spec{}, err
		}
		return constraint.Spec{Kind: "cfg", Grammar: string(b)}, nil
	case flags.Changed("schema"):
		path, _ := flags.GetString("schema")
		b, err := os.ReadFile(path)
		if err != nil {
			return constraint.Spec{}, err
		}
		return constraint.Spec{Kind: "cfg", Schema: string(b)}, nil
	default:
		return constraint.Spec{}, nil
	}
}

func CheckHandler(cmd *cobra.Command, args []string) error {
	text, err := inputText(cmd, args)
	if err != nil {
		return err
	}

	e, err := loadEngine(cmd)
	if err != nil {
		return err
	}

	var c constraint.Constraint
	if name, _ := cmd.Flags().GetString("name"); name != "" {
		path, _ := cmd.Flags().GetString("library")
		if path == "" {
			path = envconfig.Library()
		}

		if path == "" {
			return errors.New("--name needs a library, use --library or set AICI_LIBRARY")
		}

		lib, err := library.Load(path, e.trie)
		if err != nil {
			return err
		}

		if c, err = lib.New(name); err != nil {
			return err
		}
	} else {
		spec, err := checkSpec(cmd)
		if err != nil {
			return err
		}

		if c, err = spec.Build(e.trie); err != nil {
			return err
		}
	}

	ids, err := e.tok.Encode(text, false)
	if err != nil {
		return err
	}

	r := runner.New(e.tok, e.trie)
	id := r.NewSequence(c)

	var data [][]string
	var rejected error
	for i, tok := range ids {
		set, err := r.Step(id)
		if err != nil {
			rejected = fmt.Errorf("step %d: %w", i, err)
			break
		}

		allowed := "no"
		if set.Has(tok) {
			allowed = "yes"
		}

		data = append(data, []string{strconv.Itoa(i), strconv.Itoa(int(tok)), strconv.Quote(string(e.trie.TokenBytes(tok))), strconv.Itoa(set.Count()), allowed})

		if err := r.Commit(id, tok); err != nil {
			rejected = fmt.Errorf("step %d: %w", i, err)
			break
		}
	}

	table := newTable(cmd, "STEP", "TOKEN", "BYTES", "ALLOWED", "OK")
	table.AppendBulk(data)
	table.Render()

	if rejected != nil {
		return rejected
	}

	final, err := r.Constraint(id)
	if err != nil {
		return err
	}

	eos := "no"
	switch {
	case final.EOSForced():
		eos = "forced"
	case final.EOSAllowed():
		eos = "allowed"
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s constraint, %d tokens, end of sequence %s\n", c.Kind(), len(ids), eos)
	return nil
}
