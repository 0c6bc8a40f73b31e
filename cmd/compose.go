package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/DachengChen/obsql/ai"
	"github.com/DachengChen/obsql/applog"
	"github.com/DachengChen/obsql/composer"
)

var (
	composeSchema      string
	composeSchemaFile  string
	composeDescription string
	composeDirect      bool
	composeCopy        int
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose SQL without the TUI and print the snippets",
	Long: `Send a schema and a description to the generate endpoint, stream the
answer to stdout and print the resulting snippets.

Inputs not given by flags are asked for interactively when stdin is a
terminal. With --direct the configured provider is called in-process and
no server is needed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		form, err := composeForm()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mode := composer.ModeFor(appCfg.Composer.SnippetMode)
		out := cmd.OutOrStdout()
		var answer string
		if composeDirect {
			answer, err = composeDirectly(ctx, mode, form, out)
		} else {
			answer, err = composeViaEndpoint(ctx, composeEndpoint(), mode, form, out)
		}
		if err != nil {
			return err
		}

		snippets := mode.Split(answer)
		printSnippets(out, snippets)

		if composeCopy != 0 {
			if composeCopy < 0 || composeCopy > len(snippets) {
				return fmt.Errorf("--copy %d: only %d snippet(s)", composeCopy, len(snippets))
			}
			notify := composer.NotifierFunc(func(n composer.Notification) {
				fmt.Fprintln(cmd.ErrOrStderr(), strings.TrimSpace(n.Icon+" "+n.Message))
			})
			clip := composer.NewOSC52Clipboard(cmd.ErrOrStderr())
			return composer.CopySnippet(clip, notify, snippets[composeCopy-1])
		}
		return nil
	},
}

func init() {
	composeCmd.Flags().StringVar(&composeSchema, "schema", "", "table schema text")
	composeCmd.Flags().StringVar(&composeSchemaFile, "schema-file", "", "read the schema from a file")
	composeCmd.Flags().StringVar(&composeDescription, "description", "", "what the query should do")
	composeCmd.Flags().BoolVar(&composeDirect, "direct", false, "call the configured provider instead of the endpoint")
	composeCmd.Flags().IntVar(&composeCopy, "copy", 0, "copy snippet N to the clipboard (OSC 52)")
	rootCmd.AddCommand(composeCmd)
}

// composeForm gathers the form from flags, asking for what is missing when
// stdin is a terminal. Empty fields are submitted as they are.
func composeForm() (composer.FormState, error) {
	form := composer.FormState{Schema: composeSchema, Description: composeDescription}
	if composeSchemaFile != "" {
		if composeSchema != "" {
			return form, errors.New("--schema and --schema-file are mutually exclusive")
		}
		data, err := os.ReadFile(composeSchemaFile)
		if err != nil {
			return form, fmt.Errorf("read schema file: %w", err)
		}
		form.Schema = string(data)
	}
	if !term.IsTerminal(os.Stdin.Fd()) {
		return form, nil
	}

	if form.Schema == "" {
		if err := askMultiline("Provide your schema", "e.g. table: Users (UserID INT PRIMARY KEY, FirstName VARCHAR(50)).", &form.Schema); err != nil {
			return form, err
		}
	}
	if form.Description == "" {
		if err := askMultiline("Describe what you would like to query", "e.g. Get 5 users whose first name contains 'Amber'.", &form.Description); err != nil {
			return form, err
		}
	}
	return form, nil
}

func askMultiline(message, help string, out *string) error {
	prompt := &survey.Multiline{Message: message, Help: help}
	if err := survey.AskOne(prompt, out); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return errors.New("compose cancelled")
		}
		return err
	}
	return nil
}

// composeViaEndpoint runs a Composer against endpoint and echoes the
// buffer growth to out as it streams.
func composeViaEndpoint(ctx context.Context, endpoint string, mode composer.Mode, form composer.FormState, out io.Writer) (string, error) {
	echo := &streamEcho{out: out}
	comp := composer.New(composer.Options{
		Endpoint: endpoint,
		Mode:     mode,
		Logger:   applog.Logger(),
		OnUpdate: echo.update,
	})
	if err := comp.Compose(ctx, form); err != nil {
		return "", err
	}
	return comp.Snapshot().Buffer, nil
}

// composeDirectly streams the prompt through the configured provider.
func composeDirectly(ctx context.Context, mode composer.Mode, form composer.FormState, out io.Writer) (string, error) {
	provider, err := ai.NewProvider(appCfg.AI)
	if err != nil {
		return "", err
	}
	deltas, err := provider.Stream(ctx, mode.Prompt(form))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for d := range deltas {
		if d.Err != nil {
			return sb.String(), fmt.Errorf("%s: %w", provider.Name(), d.Err)
		}
		sb.WriteString(d.Text)
		fmt.Fprint(out, d.Text)
	}
	if err := ctx.Err(); err != nil {
		return sb.String(), err
	}
	return sb.String(), nil
}

// streamEcho writes only the part of each snapshot's buffer not yet written.
type streamEcho struct {
	out     io.Writer
	written int
}

func (e *streamEcho) update(s composer.Snapshot) {
	if len(s.Buffer) < e.written {
		e.written = 0
	}
	if len(s.Buffer) > e.written {
		fmt.Fprint(e.out, s.Buffer[e.written:])
		e.written = len(s.Buffer)
	}
}

func printSnippets(out io.Writer, snippets []string) {
	fmt.Fprintln(out)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "── Your Queries ──")
	for i, s := range snippets {
		fmt.Fprintf(out, "\n[%d]\n%s\n", i+1, strings.TrimSpace(s))
	}
}
