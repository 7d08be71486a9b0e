package main

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"architect/internal/domain/lead"
	"architect/internal/quiz"
	"architect/internal/results"
)

const quizPollInterval = 400 * time.Millisecond

func newWalkCommand() *cobra.Command {
	var apiURL string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "walk",
		Short: "Walk through the funnel from the terminal",
		Long:  "Runs intake, the quiz and the results page against a running funnel API.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isTTY() {
				return errors.New("walk needs an interactive terminal")
			}
			client, err := newFunnelClient(apiURL, timeout)
			if err != nil {
				return err
			}
			w := &walker{client: client, md: newMarkdownRenderer()}
			return w.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:8080", "Funnel API base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "Per-request timeout")
	return cmd
}

type walker struct {
	client   *funnelClient
	md       *markdownRenderer
	catalog  lead.Catalog
	chatSeen int
}

func (w *walker) run(ctx context.Context) error {
	fmt.Println(styleBanner.Render("Richfield Career Architect"))

	catalog, err := w.client.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	w.catalog = catalog

	if view, err := w.client.Results(ctx); err == nil {
		return w.resultsLoop(ctx, view)
	}
	for {
		if err := w.intake(ctx); err != nil {
			return err
		}
		if err := w.quiz(ctx); err != nil {
			return err
		}
		view, err := w.loadResults(ctx)
		if err != nil {
			return err
		}
		if err := w.resultsLoop(ctx, view); !errors.Is(err, errRetake) {
			return err
		}
	}
}

var errRetake = errors.New("retake")

func (w *walker) intake(ctx context.Context) error {
	for {
		first, err := ask("First name", nonEmpty)
		if err != nil {
			return err
		}
		last, err := ask("Last name", nonEmpty)
		if err != nil {
			return err
		}
		email, err := ask("Student email", validEmail)
		if err != nil {
			return err
		}
		_, program, err := choose("Programme", w.catalog.Programmes)
		if err != nil {
			return err
		}

		result, err := w.client.Submit(ctx, lead.Profile{FirstName: first, LastName: last, Email: email, Program: program})
		if err == nil {
			fmt.Println(green("Welcome aboard, " + first + ". Lead " + result.LeadID))
			return nil
		}
		var apiErr *apiError
		if !errors.As(err, &apiErr) {
			return err
		}
		fmt.Println(red(apiErr.Message))
	}
}

func (w *walker) quiz(ctx context.Context) error {
	view, err := w.client.Quiz(ctx)
	if err != nil {
		return err
	}
	for view.Redirect == "" {
		switch view.Phase {
		case quiz.PhaseAnswering.String():
			if view.Question == nil {
				return errors.New("quiz returned no question")
			}
			fmt.Println(styleMuted.Render(fmt.Sprintf("Question %d of %d (%d%%)", view.QuestionIndex+1, view.Total, view.Progress)))
			labels := make([]string, len(view.Question.Options))
			for i, opt := range view.Question.Options {
				labels[i] = opt.Label
			}
			idx, _, err := choose(view.Question.Prompt, labels)
			if err != nil {
				return err
			}
			view, err = w.client.Answer(ctx, idx)
			if err != nil {
				var apiErr *apiError
				if !errors.As(err, &apiErr) || apiErr.Status >= 500 {
					return err
				}
				fmt.Println(yellow(apiErr.Message))
				view, err = w.client.Quiz(ctx)
				if err != nil {
					return err
				}
			}
		default:
			if fact := view.TransitionFact + view.LoadingFact; fact != "" {
				fmt.Println(styleMuted.Render(fact))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(quizPollInterval):
			}
			if view, err = w.client.Quiz(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *walker) loadResults(ctx context.Context) (results.View, error) {
	fmt.Println(styleMuted.Render("Architecting your future..."))
	return w.client.Results(ctx)
}

func (w *walker) resultsLoop(ctx context.Context, view results.View) error {
	w.chatSeen = 0
	w.show(view)

	actions := []string{"Change focus area", "Career pivot", "Postgraduate outlook", "Ask the advisor", "Sign in with email link", "Retake the quiz", "Sign out", "Regenerate roadmap", "Quit"}
	for {
		idx, _, err := choose("What next?", actions)
		if err != nil {
			return err
		}
		var next results.View
		switch idx {
		case 0:
			_, area, cerr := choose("Focus area", view.Majors)
			if cerr != nil {
				return cerr
			}
			next, err = w.client.Focus(ctx, area)
		case 1:
			job, aerr := ask("Dream job", nonEmpty)
			if aerr != nil {
				return aerr
			}
			next, err = w.client.Pivot(ctx, job)
		case 2:
			_, choice, cerr := choose("Postgraduate path", w.catalog.PostgradChoices)
			if cerr != nil {
				return cerr
			}
			next, err = w.client.Postgrad(ctx, choice)
		case 3:
			msg, aerr := ask("Message", nonEmpty)
			if aerr != nil {
				return aerr
			}
			next, err = w.client.Chat(ctx, msg)
			if err == nil {
				fmt.Print(w.md.Render(chatMarkdown(next.Chat, max(w.chatSeen, len(view.Chat)))))
				w.chatSeen = len(next.Chat)
				view = next
				continue
			}
		case 4:
			if err := w.signIn(ctx, view.Email); err != nil {
				fmt.Println(red(err.Error()))
				continue
			}
			next, err = w.client.Results(ctx)
			w.chatSeen = 0
		case 5:
			if _, err := w.client.Retake(ctx); err != nil {
				return err
			}
			return errRetake
		case 6:
			_, err := w.client.SignOut(ctx)
			if err == nil {
				fmt.Println(green("Signed out."))
			}
			return err
		case 7:
			next, err = w.client.Roadmap(ctx)
		default:
			return nil
		}

		if err != nil {
			var apiErr *apiError
			if !errors.As(err, &apiErr) {
				return err
			}
			fmt.Println(red(apiErr.Message))
			if next.Program == "" {
				continue
			}
		}
		view = next
		w.show(view)
	}
}

func (w *walker) signIn(ctx context.Context, email string) error {
	if email == "" {
		var err error
		if email, err = ask("Student email", validEmail); err != nil {
			return err
		}
	}
	msg, err := w.client.RequestLink(ctx, email)
	if err != nil {
		return err
	}
	fmt.Println(green(msg))
	link, err := ask("Paste the link from the email", nonEmpty)
	if err != nil {
		return err
	}
	return w.client.Redeem(ctx, link)
}

func (w *walker) show(view results.View) {
	status := "anonymous"
	if view.Authenticated {
		status = "signed in as " + view.Email
	}
	fmt.Println(styleTitle.Render("Results") + " " + styleMuted.Render(status))
	fmt.Print(w.md.Render(roadmapMarkdown(view)))
	if view.Pivot != nil {
		fmt.Print(w.md.Render(pivotMarkdown(view.Pivot)))
	}
	if view.Postgrad != nil {
		fmt.Print(w.md.Render(postgradMarkdown(view.Postgrad)))
	}
	if w.chatSeen == 0 && len(view.Chat) > 0 {
		fmt.Print(w.md.Render(chatMarkdown(view.Chat, 0)))
		w.chatSeen = len(view.Chat)
	}
}

func ask(label string, validate promptui.ValidateFunc) (string, error) {
	prompt := promptui.Prompt{Label: label, Validate: validate}
	value, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func choose(label string, items []string) (int, string, error) {
	if len(items) == 0 {
		return 0, "", fmt.Errorf("%s: nothing to choose from", label)
	}
	sel := promptui.Select{Label: label, Items: items, Size: min(len(items), 8)}
	return sel.Run()
}

func nonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func validEmail(s string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
		return errors.New("enter a valid email address")
	}
	return nil
}
