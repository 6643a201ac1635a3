package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/internal/app"
)

func newAskCmd(g *globals) *cobra.Command {
	var agents []string
	var taskCtx map[string]string

	cmd := &cobra.Command{
		Use:   "ask <role> <task...>",
		Short: "Send a task to an AI agent",
		Long: "Send a task to an AI agent through the AI gateway. With --agents the task is\n" +
			"sent to each listed agent in order and <role> is omitted.\n\n" +
			"Agents: " + agentNames(),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roles, task, err := parseAsk(args, agents)
			if err != nil {
				return err
			}

			var ctxMap map[string]any
			if len(taskCtx) > 0 {
				ctxMap = make(map[string]any, len(taskCtx))
				for k, v := range taskCtx {
					ctxMap[k] = v
				}
			}

			return g.withApp(cmd.Context(), func(a *app.App) error {
				responses, err := a.AI.Orchestrate(cmd.Context(), task, roles, ctxMap)
				if len(responses) > 0 {
					if rerr := g.render(cmd.OutOrStdout(), responses, func(w io.Writer) {
						for _, r := range responses {
							printResponse(w, r)
						}
					}); rerr != nil {
						return rerr
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringSliceVar(&agents, "agents", nil, "Send the task to each of these agents in order")
	cmd.Flags().StringToStringVar(&taskCtx, "context", nil, "Context passed to the agent (key=value)")
	return cmd
}

func parseAsk(args, agents []string) ([]tiqology.AgentRole, string, error) {
	names := agents
	if len(names) == 0 {
		if len(args) < 2 {
			return nil, "", fmt.Errorf("ask needs a role and a task")
		}
		names, args = args[:1], args[1:]
	}

	roles := make([]tiqology.AgentRole, 0, len(names))
	for _, n := range names {
		r := tiqology.AgentRole(strings.ToLower(strings.TrimSpace(n)))
		if !slices.Contains(tiqology.AgentRoles, r) {
			return nil, "", fmt.Errorf("unknown agent %q (known: %s)", n, agentNames())
		}
		roles = append(roles, r)
	}

	task := strings.TrimSpace(strings.Join(args, " "))
	if task == "" {
		return nil, "", fmt.Errorf("task cannot be empty")
	}
	return roles, task, nil
}

func agentNames() string {
	names := make([]string, len(tiqology.AgentRoles))
	for i, r := range tiqology.AgentRoles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

func printResponse(w io.Writer, r *tiqology.AIResponse) {
	fmt.Fprintf(w, "%s: %s\n", r.Role, r.Message)
	for _, s := range r.Suggestions {
		fmt.Fprintf(w, "  > %s\n", s)
	}
	for _, a := range r.Actions {
		fmt.Fprintf(w, "  [%s] %s\n", a.ActionID, a.Label)
	}
}
