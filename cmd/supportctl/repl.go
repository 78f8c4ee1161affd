package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"support-copilot/internal/rephrase"
	"support-copilot/internal/usecase"
)

const replHelp = `commands:
  inbox                       list conversations
  select <id>                 open a conversation
  thread                      print the open conversation
  send <text>                 reply as the agent
  ask <question>              ask the copilot and wait for the answer
  records                     list copilot questions of the open conversation
  suggest                     show suggested questions
  compose <text>              replace the composer
  edit [text]                 open the rephrase editor (default: composer)
  draft <text>                rewrite the open draft by hand
  apply <directive>           rephrase the draft
  commit                      move the draft into the composer
  cancel                      discard the draft
  composer                    print the composer
  quit`

var errQuit = errors.New("quit")

// runREPL reads one command per line until EOF or quit.
func runREPL(ctx context.Context, in io.Reader, w io.Writer, desk *usecase.Desk, wait time.Duration) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		err := runLine(ctx, w, desk, sc.Text(), wait)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(w, "error:", err)
		}
	}
	return sc.Err()
}

func runLine(ctx context.Context, w io.Writer, desk *usecase.Desk, line string, wait time.Duration) error {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "":
		return nil
	case "help":
		fmt.Fprintln(w, replHelp)
	case "quit", "exit":
		return errQuit
	case "inbox":
		printInbox(w, desk)
	case "select":
		id, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("conversation id %q is not a number", rest)
		}
		conv, err := desk.SelectConversation(id)
		if err != nil {
			return err
		}
		printThread(w, conv)
	case "thread":
		printThread(w, desk.Selected())
	case "send":
		out, err := desk.SendMessage(rest)
		if err != nil || !out.Sent {
			return err
		}
		fmt.Fprintf(w, "sent #%d\n", out.Message.ID)
	case "ask":
		if rest == "" {
			return nil
		}
		return ask(ctx, w, desk, rest, wait)
	case "records":
		recs, err := desk.CopilotRecords()
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Fprintf(w, "Q%d [%s] %s\n", r.ID, r.State, r.Question)
		}
	case "suggest":
		for _, s := range desk.Suggestions() {
			fmt.Fprintf(w, "  %s\n", s)
		}
	case "compose":
		desk.SetComposer(rest)
	case "edit":
		fmt.Fprintln(w, desk.OpenEditor(rest))
	case "draft":
		return desk.EditDraft(rest)
	case "apply":
		dir, err := rephrase.ParseDirective(rest)
		if err != nil {
			return err
		}
		out, err := desk.ApplyTextTransform(dir)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, out)
	case "commit":
		out, err := desk.CommitEditor()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, out)
	case "cancel":
		desk.CloseEditor()
	case "composer":
		fmt.Fprintln(w, desk.Composer())
	default:
		return fmt.Errorf("unknown command %q (try help)", verb)
	}
	return nil
}
