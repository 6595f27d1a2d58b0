package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chebacca/agentcore/internal/agent"
	"github.com/chebacca/agentcore/internal/server"
	"github.com/chebacca/agentcore/internal/tools"
)

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Show which agent a message would be routed to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := tools.NewRegistry()
			c := agent.NewClassifier(cfg.ClassifierThreshold, agent.GeneralAgentID,
				agent.NewQueryAgent(reg),
				agent.NewActionAgent(reg),
			)
			res := c.Classify(strings.Join(args, " "))
			fmt.Fprintf(cmd.OutOrStdout(), "%s  score=%d  reason=%s\n", color.CyanString(res.AgentID), res.Score, res.Reason)
			return nil
		},
	}
}

func toolsCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Discover tools from the configured backends and list them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			st := server.NewToolStack(ctx, cfg)
			defer st.Close()

			w := cmd.OutOrStdout()
			list := st.Registry.All(ctx)
			for _, t := range list {
				caps := make([]string, 0, len(t.Capabilities))
				for _, c := range t.Capabilities {
					caps = append(caps, string(c))
				}
				label := color.New(color.Faint).Sprint("untagged")
				if len(caps) > 0 {
					label = color.YellowString(strings.Join(caps, ","))
				}
				fmt.Fprintf(w, "%-24s %-10s %s\n", t.Name, label, t.Description)
			}
			status := color.GreenString("complete")
			if !st.Registry.Loaded() {
				status = color.RedString("partial")
			}
			fmt.Fprintf(w, "%d tool(s), catalog %s\n", len(list), status)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "discovery timeout")
	return cmd
}
