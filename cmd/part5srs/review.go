package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/part5srs/internal/domain"
	"github.com/conorfennell/part5srs/internal/session"
	"github.com/conorfennell/part5srs/internal/sm2"
	"github.com/conorfennell/part5srs/internal/storage"
)

var errQuit = errors.New("quit")

func newReviewCmd(a *app) *cobra.Command {
	var newItems int
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review due questions in the terminal",
		Long: `Review the questions that are due, then up to --new questions never seen before.
Answer with the choice letter, "?" to reveal the answer, or "q" to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var fresh []string
			if newItems > 0 {
				var err error
				if fresh, err = a.db.UnreviewedQuestionIDs(ctx, newItems); err != nil {
					a.logger.Warn("Failed to load new questions", "error", err)
				}
			}

			sess := session.New(a.db, a.sessionOptions()...)
			ids, err := sess.Prepare(ctx, time.Now(), a.cfg.Session.MaxItems, fresh...)
			if err != nil {
				return fmt.Errorf("could not load due questions, try again: %w", err)
			}
			if len(ids) == 0 {
				fmt.Fprintln(out, "Nothing to review. Come back tomorrow!")
			}

			// Every exit from the loop reaches Finalize, which flushes
			// buffered answers.
			var askErr error
			quiz := &quiz{db: a.db, sess: sess, in: bufio.NewScanner(cmd.InOrStdin()), out: out}
			for i, id := range ids {
				fmt.Fprintf(out, "\n[%d/%d]\n", i+1, len(ids))
				if err := quiz.ask(ctx, id); err != nil {
					if !errors.Is(err, errQuit) {
						askErr = err
					}
					break
				}
			}

			summary, err := sess.Finalize(ctx)
			if len(ids) > 0 {
				fmt.Fprintf(out, "\nAnswered %d, correct %d, saved %d.\n", summary.Answered, summary.Correct, summary.Saved)
			}
			if askErr != nil {
				return errors.Join(askErr, err)
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&newItems, "new", 0, "Also introduce up to this many questions never reviewed")
	return cmd
}

// quiz asks one question at a time on a terminal.
type quiz struct {
	db   *storage.DB
	sess *session.Session
	in   *bufio.Scanner
	out  io.Writer
}

func (q *quiz) ask(ctx context.Context, id string) error {
	question, err := q.db.FindQuestion(ctx, id)
	if err != nil {
		return err
	}
	if question == nil {
		// The record outlives its question; nothing to show.
		fmt.Fprintln(q.out, "This question is no longer in the corpus, skipping.")
		return nil
	}

	fmt.Fprintln(q.out, question.Sentence)
	for i, c := range question.Choices {
		fmt.Fprintf(q.out, "  (%s) %s\n", domain.ChoiceLabels[i], c)
	}

	letter, err := q.prompt(len(question.Choices))
	if err != nil {
		return err
	}

	var rec domain.ReviewRecord
	answer := "(" + question.Answer + ")"
	if i := question.AnswerIndex(); i >= 0 {
		answer += " " + question.Choices[i]
	}
	switch {
	case letter == "?":
		fmt.Fprintf(q.out, "Answer: %s\n", answer)
		rec, err = q.sess.RecordOutcome(ctx, id, sm2.OutcomeRevealed)
	case question.IsCorrect(letter):
		fmt.Fprintln(q.out, "Correct!")
		rec, err = q.sess.RecordAnswer(ctx, id, true)
	default:
		fmt.Fprintf(q.out, "Incorrect. Answer: %s\n", answer)
		rec, err = q.sess.RecordAnswer(ctx, id, false)
	}
	if question.Explanation != "" {
		fmt.Fprintln(q.out, question.Explanation)
	}
	if err != nil {
		// The answer is lost but the review goes on.
		fmt.Fprintln(q.out, "(could not save this answer)")
		return nil
	}
	fmt.Fprintf(q.out, "Next review: %s\n", rec.NextReview.Local().Format("Mon 2 Jan 2006"))
	return nil
}

// prompt reads a choice letter, "?" or "q".
func (q *quiz) prompt(choices int) (string, error) {
	valid := strings.Join(domain.ChoiceLabels[:choices], "")
	for {
		fmt.Fprintf(q.out, "Your answer [%s, ? to reveal, q to quit]: ", valid)
		if !q.in.Scan() {
			if err := q.in.Err(); err != nil {
				return "", err
			}
			return "", errQuit
		}
		s := strings.ToUpper(strings.TrimSpace(q.in.Text()))
		switch {
		case s == "Q":
			return "", errQuit
		case s == "?":
			return s, nil
		case len(s) == 1 && strings.Contains(valid, s):
			return s, nil
		}
	}
}
