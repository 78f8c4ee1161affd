package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/viper"

	"support-copilot/internal/config"
	"support-copilot/internal/copilot"
	"support-copilot/internal/domain"
	"support-copilot/internal/inbox"
	"support-copilot/internal/repository"
	"support-copilot/internal/responder"
	"support-copilot/internal/usecase"
)

func loadSeed() (*config.Seed, error) {
	var (
		seed *config.Seed
		err  error
	)
	if path := viper.GetString("seed"); path != "" {
		seed, err = config.Load(path)
	} else {
		seed, err = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if n := viper.GetInt("source-count"); n > 0 {
		seed.Copilot.SourceCount = n
	}
	return seed, nil
}

func newKnowledgeBase(ctx context.Context) (*repository.Client, error) {
	table := viper.GetString("kb-table")
	if table == "" {
		return nil, errors.New("--kb-table (or SUPPORTCTL_KB_TABLE) is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return repository.New(awsdynamodb.NewFromConfig(cfg), table, viper.GetString("kb-namespace"))
}

func newResponder(ctx context.Context, c config.Copilot) (copilot.Responder, error) {
	switch kind := viper.GetString("responder"); kind {
	case "lookup", "":
		var opts []responder.LookupOption
		if d := viper.GetDuration("latency"); d >= 0 {
			opts = append(opts, responder.WithLatency(d, d))
		}
		return responder.NewLookup(c, opts...)
	case "knowledge-base":
		kb, err := newKnowledgeBase(ctx)
		if err != nil {
			return nil, err
		}
		return responder.NewKnowledgeBase(kb, c)
	default:
		return nil, fmt.Errorf("unknown responder %q", kind)
	}
}

func buildDesk(ctx context.Context) (*usecase.Desk, error) {
	seed, err := loadSeed()
	if err != nil {
		return nil, err
	}
	r, err := newResponder(ctx, seed.Copilot)
	if err != nil {
		return nil, err
	}
	reg, err := inbox.New(seed.Conversations, r,
		inbox.WithLogger(slog.Default()),
		inbox.WithSuggestions(seed.Copilot.Suggestions),
	)
	if err != nil {
		return nil, err
	}
	return usecase.NewDesk(reg)
}

func ask(ctx context.Context, w io.Writer, desk *usecase.Desk, question string, wait time.Duration) error {
	out, err := desk.AskCopilot(ctx, question)
	if err != nil {
		return err
	}
	if !out.Accepted {
		return errors.New("question is empty")
	}
	fmt.Fprintf(w, "Q%d: %s\n", out.Record.ID, out.Record.Question)
	fmt.Fprintln(w, "  generating...")

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	rec, err := desk.WaitCopilot(waitCtx, out.ConversationID, out.Record.ID)
	var ucErr *usecase.Error
	switch {
	case errors.As(err, &ucErr) && ucErr.Code == usecase.ErrorResponderFailure:
		fmt.Fprintf(w, "  failed: %s\n", rec.Err)
		return nil
	case err != nil:
		return err
	}
	printRecord(w, rec)
	return nil
}

func printInbox(w io.Writer, desk *usecase.Desk) {
	selected := desk.Selected().ID
	for _, c := range desk.Conversations() {
		marker := " "
		if c.ID == selected {
			marker = ">"
		}
		unread := ""
		if c.Unread {
			unread = " *"
		}
		status := ""
		if c.HasStatus() {
			status = " [" + c.Status + "]"
		}
		fmt.Fprintf(w, "%s %d  %-20s %4s%s%s\n", marker, c.ID, c.Name, c.LastActivity, status, unread)
		fmt.Fprintf(w, "      %s\n", c.Subject)
	}
}

func printThread(w io.Writer, c domain.Conversation) {
	fmt.Fprintf(w, "%s (%s)\n", c.Name, c.Avatar)
	for _, m := range c.Messages {
		fmt.Fprintf(w, "\n#%d %s %s [%s]\n", m.ID, m.Avatar, m.Sender, m.Time)
		for _, p := range m.Paragraphs() {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
}

func printRecord(w io.Writer, rec domain.Record) {
	for _, line := range strings.Split(rec.Answer, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if len(rec.Sources) > 0 {
		fmt.Fprintf(w, "  %d relevant sources found:\n", len(rec.Sources))
		for _, s := range rec.Sources {
			fmt.Fprintf(w, "   - %s\n", s)
		}
	}
}
