package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quill/internal/api"
)

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	workflowCmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Create and drive content workflows",
	}

	workflowCmd.AddCommand(
		newWorkflowNewCommand(ctx),
		newWorkflowListCommand(ctx),
		newWorkflowShowCommand(ctx),
		newWorkflowApproveCommand(ctx),
		newWorkflowRejectCommand(ctx),
		newWorkflowReviseCommand(ctx),
		newWorkflowApplySEOCommand(ctx),
		newWorkflowFinalizeCommand(ctx),
		newWorkflowChatCommand(ctx),
		newWorkflowWatchCommand(ctx),
	)
	return workflowCmd
}

func newWorkflowNewCommand(ctx *commandContext) *cobra.Command {
	var tone string
	var watch bool
	cmd := &cobra.Command{
		Use:   "new <topic>",
		Short: "Start a workflow for a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := strings.TrimSpace(strings.Join(args, " "))
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.CreateWorkflow(cmd.Context(), topic, tone)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Workflow %s created for %q\n", resp.ID, resp.Workflow.Topic)
				if !watch {
					fmt.Fprintf(out, "Follow progress with: quill workflow watch %s\n", api.ShortID(resp.ID))
					return nil
				}
				return followWorkflow(cmd, client, resp.ID)
			})
		},
	}
	cmd.Flags().StringVar(&tone, "tone", "", "Writing tone (default: professional)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow the workflow until it needs input")
	return cmd
}

func newWorkflowListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				items, err := client.ListWorkflows(cmd.Context(), limit)
				if err != nil {
					return err
				}
				items = api.SortWorkflowsNewestFirst(items)
				if asJSON {
					if items == nil {
						items = []api.WorkflowSummary{}
					}
					return writeJSON(cmd, items)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No workflows")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Topic", "State", "Created"},
					buildWorkflowRows(items),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of workflows to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print workflows as JSON")
	return cmd
}

func newWorkflowShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var full bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a workflow with its chat history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				wf, err := client.GetWorkflow(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, wf)
				}
				renderWorkflow(cmd.OutOrStdout(), wf, full)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the workflow as JSON")
	cmd.Flags().BoolVar(&full, "full", false, "Print research, outline, and draft in full")
	return cmd
}

func newWorkflowApproveCommand(ctx *commandContext) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve the outline and start drafting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, ctx, "approved", func(client *api.Client) (*api.ActionResponse, error) {
				return client.ApproveOutline(cmd.Context(), args[0], notes)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "Optional notes for the writer")
	return cmd
}

func newWorkflowRejectCommand(ctx *commandContext) *cobra.Command {
	var feedback string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject the outline and regenerate it with feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(feedback) == "" {
				return fmt.Errorf("--feedback is required")
			}
			return runAction(cmd, ctx, "rejected", func(client *api.Client) (*api.ActionResponse, error) {
				return client.RejectOutline(cmd.Context(), args[0], feedback)
			})
		},
	}
	cmd.Flags().StringVar(&feedback, "feedback", "", "What to change in the outline")
	return cmd
}

func newWorkflowReviseCommand(ctx *commandContext) *cobra.Command {
	var instructions string
	cmd := &cobra.Command{
		Use:   "revise <id>",
		Short: "Request a new draft with revision instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(instructions) == "" {
				return fmt.Errorf("--instructions is required")
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Revise(cmd.Context(), args[0], instructions)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Workflow.State == "drafting" {
					fmt.Fprintf(out, "Workflow %s: drafting reopened\n", api.ShortID(resp.Workflow.ID))
					return nil
				}
				fmt.Fprintf(out, "Workflow %s: instructions recorded; state is %s\n", api.ShortID(resp.Workflow.ID), resp.Workflow.StateLabel)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&instructions, "instructions", "", "How the draft should change")
	return cmd
}

func newWorkflowApplySEOCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "apply-seo <id>",
		Short: "Rewrite the draft with the SEO suggestions and finalize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, ctx, "finalized with SEO suggestions", func(client *api.Client) (*api.ActionResponse, error) {
				return client.ApplySEO(cmd.Context(), args[0])
			})
		},
	}
}

func newWorkflowFinalizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <id>",
		Short: "Finalize the draft without SEO changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, ctx, "finalized", func(client *api.Client) (*api.ActionResponse, error) {
				return client.Finalize(cmd.Context(), args[0])
			})
		},
	}
}

func newWorkflowChatCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <id> <message>",
		Short: "Ask the assistant about a workflow",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.TrimSpace(strings.Join(args[1:], " "))
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Chat(cmd.Context(), args[0], message)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Reply)
				return nil
			})
		},
	}
}

func newWorkflowWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow a workflow until it needs input or finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				return followWorkflow(cmd, client, args[0])
			})
		},
	}
}

// runAction performs a state-changing operation and reports whether it
// applied. A refused operation is an error so scripts can detect it.
func runAction(cmd *cobra.Command, ctx *commandContext, verb string, call func(*api.Client) (*api.ActionResponse, error)) error {
	return ctx.withClient(func(client *api.Client) error {
		resp, err := call(client)
		if err != nil {
			return err
		}
		id := api.ShortID(resp.Workflow.ID)
		if !resp.OK {
			return fmt.Errorf("workflow %s is %s; operation not applicable", id, resp.Workflow.StateLabel)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Workflow %s %s (%s)\n", id, verb, resp.Workflow.StepDescription)
		return nil
	})
}

// followWorkflow prints each state change from the event stream until the
// workflow settles.
func followWorkflow(cmd *cobra.Command, client *api.Client, id string) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	var last api.Workflow
	lastState := ""
	err := client.StreamEvents(cmd.Context(), id, func(evt api.Event) bool {
		last = evt.Workflow
		if evt.Workflow.State != lastState {
			lastState = evt.Workflow.State
			message := fmt.Sprintf("%s: %s", evt.Workflow.StateLabel, evt.Workflow.StepDescription)
			fmt.Fprintln(out, renderStatusLine(api.ShortID(evt.WorkflowID), stateStatusKind(evt.Workflow.State), message, colorize))
		}
		return !api.IsSettled(evt.Workflow)
	})
	if err != nil {
		return err
	}
	if hint := nextStepHint(last); hint != "" {
		fmt.Fprintln(out, hint)
	}
	return nil
}

func nextStepHint(view api.Workflow) string {
	id := api.ShortID(view.ID)
	switch view.State {
	case "waiting_approval":
		return fmt.Sprintf("Review the outline with `quill workflow show %s`, then approve or reject it", id)
	case "optimizing":
		return fmt.Sprintf("Run `quill workflow apply-seo %s` or `quill workflow finalize %s`", id, id)
	case "final":
		return fmt.Sprintf("Final draft ready: `quill workflow show %s --full`", id)
	case "failed":
		return fmt.Sprintf("Workflow failed; see `quill workflow show %s`", id)
	default:
		return ""
	}
}
