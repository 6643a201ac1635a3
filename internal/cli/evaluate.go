package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/internal/app"
)

func newEvaluateCmd(g *globals) *cobra.Command {
	var model, file string

	cmd := &cobra.Command{
		Use:   "evaluate [prompt...]",
		Short: "Score a prompt with the Ghost gateway",
		Long: "Score a prompt with the Ghost gateway. With --file every non-empty line of the\n" +
			"file is evaluated in order and the run stops at the first failure.",
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := evaluationRequests(args, file, model)
			if err != nil {
				return err
			}

			return g.withApp(cmd.Context(), func(a *app.App) error {
				results, err := a.Ghost.BatchEvaluate(cmd.Context(), reqs)
				if len(results) > 0 {
					if rerr := g.render(cmd.OutOrStdout(), results, func(w io.Writer) {
						for i, r := range results {
							fmt.Fprintf(w, "Score:    %.0f\n", r.Score)
							fmt.Fprintf(w, "Model:    %s\n", r.Model)
							fmt.Fprintf(w, "Feedback: %s\n", r.Feedback)
							if r.Result != "" {
								fmt.Fprintf(w, "Result:   %s\n", r.Result)
							}
							if i < len(results)-1 {
								fmt.Fprintln(w)
							}
						}
					}); rerr != nil {
						return rerr
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&model, "model", tiqology.ModelChat, "Model (chat-model, chat-model-reasoning)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Evaluate each line of this file")
	return cmd
}

func evaluationRequests(args []string, file, model string) ([]tiqology.EvaluationRequest, error) {
	var prompts []string
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open prompts: %w", err)
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				prompts = append(prompts, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read prompts: %w", err)
		}
	} else if p := strings.TrimSpace(strings.Join(args, " ")); p != "" {
		prompts = append(prompts, p)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("nothing to evaluate: pass a prompt or --file")
	}

	reqs := make([]tiqology.EvaluationRequest, len(prompts))
	for i, p := range prompts {
		reqs[i] = tiqology.EvaluationRequest{Prompt: p, Model: model}
	}
	return reqs, nil
}

func newGhostHealthCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ghost-health",
		Short: "Check the Ghost gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd.Context(), func(a *app.App) error {
				h, err := a.Ghost.Health(cmd.Context())
				if err != nil {
					return err
				}
				return g.render(cmd.OutOrStdout(), h, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s (%s)\n", h.Service, h.Status, h.Version)
				})
			})
		},
	}
}
