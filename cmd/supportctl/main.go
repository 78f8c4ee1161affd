package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"support-copilot/internal/rephrase"
	"support-copilot/internal/usecase"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:           "supportctl",
		Short:         "Drive the support inbox and its copilot from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			viper.SetEnvPrefix("SUPPORTCTL")
			viper.AutomaticEnv()
			slog.SetDefault(newLogger(viper.GetString("log-level")))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("seed", "", "seed JSON file (defaults to the built-in inbox)")
	flags.String("responder", "lookup", "copilot backend: lookup|knowledge-base")
	flags.Duration("latency", -1, "fixed copilot latency, overrides the seed")
	flags.Int("source-count", 0, "number of sources per answer, overrides the seed")
	flags.String("kb-table", "", "DynamoDB knowledge-base table")
	flags.String("kb-namespace", "", "knowledge-base namespace")
	flags.String("log-level", "warn", "debug|info|warn|error")
	flags.Duration("wait", 30*time.Second, "how long to wait for a copilot answer")
	for _, key := range []string{"seed", "responder", "latency", "source-count", "kb-table", "kb-namespace", "log-level", "wait"} {
		_ = viper.BindPFlag(key, flags.Lookup(key))
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.AddCommand(
		inboxCmd(),
		threadCmd(),
		sendCmd(),
		askCmd(),
		rephraseCmd(),
		replCmd(),
		kbCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "supportctl:", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func inboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inbox",
		Short: "List conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			desk, err := buildDesk(cmd.Context())
			if err != nil {
				return err
			}
			printInbox(cmd.OutOrStdout(), desk)
			return nil
		},
	}
}

func threadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thread [conversation-id]",
		Short: "Print a conversation thread",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desk, err := buildDesk(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if err := selectArg(desk, args[0]); err != nil {
					return err
				}
			}
			printThread(cmd.OutOrStdout(), desk.Selected())
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	var convID int
	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "Send an agent reply and print the updated thread",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desk, err := buildDesk(cmd.Context())
			if err != nil {
				return err
			}
			if convID > 0 {
				if _, err := desk.SelectConversation(convID); err != nil {
					return err
				}
			}
			out, err := desk.SendMessage(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if !out.Sent {
				return errors.New("nothing to send")
			}
			printThread(cmd.OutOrStdout(), desk.Selected())
			return nil
		},
	}
	cmd.Flags().IntVarP(&convID, "conversation", "c", 0, "conversation id (defaults to the first)")
	return cmd
}

func askCmd() *cobra.Command {
	var convID int
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the copilot about a conversation and wait for the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desk, err := buildDesk(cmd.Context())
			if err != nil {
				return err
			}
			if convID > 0 {
				if _, err := desk.SelectConversation(convID); err != nil {
					return err
				}
			}
			return ask(cmd.Context(), cmd.OutOrStdout(), desk, strings.Join(args, " "), viper.GetDuration("wait"))
		},
	}
	cmd.Flags().IntVarP(&convID, "conversation", "c", 0, "conversation id (defaults to the first)")
	return cmd
}

func rephraseCmd() *cobra.Command {
	var directive string
	cmd := &cobra.Command{
		Use:   "rephrase <text>",
		Short: "Rewrite a draft reply",
		Long:  "Rewrite a draft reply. Directives: " + directiveList(),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := rephrase.ParseDirective(directive)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rephrase.Transform(strings.Join(args, " "), dir))
			return nil
		},
	}
	cmd.Flags().StringVarP(&directive, "directive", "d", string(rephrase.DirectiveFixGrammar), "directive name or menu label")
	return cmd
}

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Run an interactive desk session on stdin",
		Long:  "Run an interactive desk session. Type 'help' for commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			desk, err := buildDesk(cmd.Context())
			if err != nil {
				return err
			}
			return runREPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), desk, viper.GetDuration("wait"))
		},
	}
}

func selectArg(desk *usecase.Desk, arg string) error {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("conversation id %q is not a number", arg)
	}
	_, err = desk.SelectConversation(id)
	return err
}

func directiveList() string {
	dirs := rephrase.Directives()
	names := make([]string, 0, len(dirs))
	for _, d := range dirs {
		names = append(names, string(d))
	}
	return strings.Join(names, ", ")
}
