package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chebacca/agentcore/internal/planner"
)

// planFile is the on-disk shape of a proposed action list. JSON files
// decode the same way.
type planFile struct {
	Actions []planner.Step `yaml:"actions"`
}

func planCmd() *cobra.Command {
	var (
		template string
		params   []string
	)
	cmd := &cobra.Command{
		Use:   "plan [file]",
		Short: "Order a proposed action list, or instantiate a workflow template",
		Long: `Reads actions from a YAML or JSON file ("-" for stdin) and prints them in
dependency order. With --template the named workflow is instantiated instead.
The plan is never executed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				plan *planner.Plan
				err  error
			)
			switch {
			case template != "":
				plan, err = fromTemplate(template, params)
			case len(args) == 1:
				plan, err = fromFile(args[0])
			default:
				return listTemplates(cmd.OutOrStdout())
			}
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}
	cmd.Flags().StringVarP(&template, "template", "t", "", "workflow template to instantiate")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "template parameter as key=value (repeatable)")
	return cmd
}

func loadTemplates() (*planner.Templates, error) {
	if cfg.TemplatesDir != "" {
		return planner.LoadTemplatesDir(cfg.TemplatesDir)
	}
	return planner.DefaultTemplates()
}

func fromTemplate(name string, kv []string) (*planner.Plan, error) {
	tpls, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	params := make(map[string]string, len(kv))
	for _, p := range kv {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --param %q, want key=value", p)
		}
		params[k] = v
	}
	return tpls.Instantiate(name, params)
}

func fromFile(path string) (*planner.Plan, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	steps, err := decodePlanFile(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return planner.Build(steps)
}

// decodePlanFile accepts {actions: [...]} or a bare list of steps. The list
// form is only tried when the document is not a mapping.
func decodePlanFile(data []byte) ([]planner.Step, error) {
	var pf planFile
	if err := yaml.Unmarshal(data, &pf); err == nil {
		if len(pf.Actions) == 0 {
			return nil, planner.ErrNoActions
		}
		return pf.Actions, nil
	}
	var steps []planner.Step
	if err := yaml.Unmarshal(data, &steps); err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, planner.ErrNoActions
	}
	return steps, nil
}

func listTemplates(w io.Writer) error {
	tpls, err := loadTemplates()
	if err != nil {
		return err
	}
	bold := color.New(color.Bold)
	for _, t := range tpls.List() {
		bold.Fprintf(w, "%s", t.Name)
		fmt.Fprintf(w, "  %s\n", t.Description)
		if len(t.Params) > 0 {
			fmt.Fprintf(w, "    params: %s\n", strings.Join(t.Params, ", "))
		}
	}
	return nil
}

func printPlan(w io.Writer, plan *planner.Plan) {
	fmt.Fprintf(w, "%s %s\n", color.New(color.Bold).Sprint("plan"), color.New(color.Faint).Sprint(plan.ID))
	for i, s := range plan.Actions {
		fmt.Fprintf(w, "%2d. %s", i+1, color.CyanString(s.Type))
		if s.ID != "" && s.ID != s.Type {
			fmt.Fprintf(w, " (%s)", s.ID)
		}
		if len(s.DependsOn) > 0 {
			fmt.Fprintf(w, " %s %s", color.New(color.Faint).Sprint("after"), strings.Join(s.DependsOn, ", "))
		}
		fmt.Fprintln(w)
		for _, k := range slices.Sorted(maps.Keys(s.Params)) {
			val := fmt.Sprint(s.Params[k])
			if val == planner.Placeholder {
				val = color.YellowString(val)
			}
			fmt.Fprintf(w, "      %s: %s\n", k, val)
		}
	}
	fmt.Fprintln(w, color.GreenString("✓ %d action(s) ordered; nothing was executed", len(plan.Actions)))
}
