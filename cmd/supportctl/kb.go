package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"support-copilot/internal/domain"
)

func kbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the DynamoDB copilot knowledge base",
	}
	cmd.AddCommand(kbSeedCmd(), kbListCmd(), kbPutCmd())
	return cmd
}

func kbSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write the seed's known answers to the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := loadSeed()
			if err != nil {
				return err
			}
			kb, err := newKnowledgeBase(cmd.Context())
			if err != nil {
				return err
			}
			entries := make([]domain.KnowledgeEntry, 0, len(seed.Copilot.Answers))
			for _, a := range seed.Copilot.Answers {
				entries = append(entries, kb.NewEntry(a.Question, a.Answer, a.Sources))
			}
			if err := kb.SeedEntries(cmd.Context(), entries); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d answers\n", len(entries))
			return nil
		},
	}
}

func kbListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge-base answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := newKnowledgeBase(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := kb.ListEntries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(w, "%s\n  %s\n", e.Question, e.Answer)
				for _, s := range e.Sources {
					fmt.Fprintf(w, "   - %s\n", s)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries to return (0 = all)")
	return cmd
}

func kbPutCmd() *cobra.Command {
	var (
		question string
		answer   string
		sources  []string
	)
	cmd := &cobra.Command{
		Use:   "put",
		Short: "Store one answer, keyed by the exact question text",
		RunE: func(cmd *cobra.Command, args []string) error {
			if question == "" || answer == "" {
				return errors.New("--question and --answer are required")
			}
			kb, err := newKnowledgeBase(cmd.Context())
			if err != nil {
				return err
			}
			return kb.PutAnswer(cmd.Context(), question, answer, sources)
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "exact question text")
	cmd.Flags().StringVarP(&answer, "answer", "a", "", "answer text")
	cmd.Flags().StringSliceVarP(&sources, "source", "s", nil, "source reference (repeatable)")
	return cmd
}
