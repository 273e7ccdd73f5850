package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/expertsys/pkg/expertsys/config"
	"github.com/cognicore/expertsys/pkg/expertsys/explain"
	"github.com/cognicore/expertsys/pkg/expertsys/kb"
	"github.com/cognicore/expertsys/pkg/expertsys/maintenance"
	"github.com/cognicore/expertsys/pkg/expertsys/session"
)

func newForwardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forward [symptom...]",
		Short: "Derive every diagnosis reachable from the symptoms (data-driven)",
		Example: `  expertsys forward runny_nose sneezing sore_throat
  expertsys forward "fever, body_aches, fatigue, headache"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForward(cmd, a, splitSymptoms(args))
		},
	}
}

func runForward(cmd *cobra.Command, a *app, symptoms []string) error {
	out := cmd.OutOrStdout()
	res, err := a.sys.Forward(cmd.Context(), symptoms)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== FORWARD CHAINING (DATA-DRIVEN) ===")
	fmt.Fprintf(out, "Initial symptoms: %s\n", strings.Join(symptoms, ", "))
	fmt.Fprintf(out, "Completed in %d iterations\n", res.Stats.Passes)
	fmt.Fprintf(out, "Derived diagnoses: %s\n", joinOrNone(kb.Strings(res.Diagnoses)))
	if res.SessionID != "" {
		fmt.Fprintf(out, "Session: %s\n", res.SessionID)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== FORWARD CHAINING EXPLANATION ===")
	return explain.Write(out, res.Explanation)
}

func newBackwardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "backward <goal> [symptom...]",
		Short:   "Try to prove one diagnosis from the symptoms (goal-driven)",
		Example: `  expertsys backward migraine severe_headache nausea light_sensitivity`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackward(cmd, a, args[0], splitSymptoms(args[1:]))
		},
	}
}

func runBackward(cmd *cobra.Command, a *app, goal string, symptoms []string) error {
	out := cmd.OutOrStdout()
	res, err := a.sys.Backward(cmd.Context(), goal, symptoms)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== BACKWARD CHAINING (GOAL-DRIVEN) ===")
	fmt.Fprintf(out, "Input symptoms: %s\n", joinOrNone(symptoms))
	if res.SessionID != "" {
		fmt.Fprintf(out, "Session: %s\n", res.SessionID)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== BACKWARD CHAINING EXPLANATION ===")
	return explain.Write(out, res.Explanation)
}

func newRulesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			base := a.sys.KnowledgeBase()
			printStats(out, base)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "=== KNOWLEDGE BASE ===")
			if err := explain.Write(out, a.sys.DescribeKnowledgeBase()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Symptoms: %s\n", strings.Join(kb.Strings(base.Symptoms()), ", "))
			fmt.Fprintf(out, "Diagnoses: %s\n", strings.Join(kb.Strings(base.Diagnoses()), ", "))
			return nil
		},
	}
}

func newRuleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rule <id>",
		Short: "Explain a single rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== RULE EXPLANATION ===")
			return explain.Write(out, a.sys.ExplainRule(args[0]))
		},
	}
}

func newSessionsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List archived reasoning sessions (requires --db)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.sys.Sessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No sessions archived.")
				return nil
			}
			for _, s := range list {
				fmt.Fprintln(out, sessionSummary(s))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of sessions to list (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one archived session with its trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.sys.Session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, sessionSummary(s))
			fmt.Fprintf(out, "Inputs: %s\n", joinOrNone(s.Inputs))
			fmt.Fprintln(out, "Trace:")
			for i, e := range session.TraceEntries(s.Trace) {
				if e.Origin.RuleID != "" {
					fmt.Fprintf(out, "  %d. %s (%s, rule %s)\n", i+1, e.Fact, e.Origin.Kind, e.Origin.RuleID)
				} else {
					fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, e.Fact, e.Origin.Kind)
				}
			}
			return nil
		},
	})
	return cmd
}

func sessionSummary(s session.Session) string {
	created := s.CreatedAt.Format("2006-01-02 15:04:05")
	if s.Goal == "" {
		return fmt.Sprintf("%s  %s  %-8s  diagnoses: %s", s.ID, created, s.Mode, joinOrNone(s.Results))
	}
	status := "not proven"
	if s.Proven {
		status = fmt.Sprintf("proven %.2f via %s", s.Confidence, s.SourceRule)
	}
	return fmt.Sprintf("%s  %s  %-8s  goal %s: %s", s.ID, created, s.Mode, s.Goal, status)
}

func newExportCmd(a *app) *cobra.Command {
	var outPath, name string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the knowledge base as a YAML rules file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var w maintenance.RuleWriter = stdoutWriter{cmd.OutOrStdout()}
			if outPath != "" {
				w = maintenance.FileWriter{Path: outPath}
			}
			exporter := maintenance.RuleExporter{Writer: w, Name: name}
			if err := exporter.Export(cmd.Context(), a.sys.KnowledgeBase()); err != nil {
				return err
			}
			if outPath != "" {
				a.logger.Info("rules exported", zap.String("path", outPath), zap.Int("rules", a.sys.KnowledgeBase().Len()))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&name, "name", "medical", "Rule set name written to the file")
	return cmd
}

func newSaveRulesCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "save-rules",
		Short: "Store the loaded knowledge base as a named rule set in --db",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.store == nil {
				return fmt.Errorf("save-rules requires --db")
			}
			rs := config.FromKnowledgeBase(name, a.sys.KnowledgeBase())
			if err := a.store.SaveRuleSet(cmd.Context(), rs); err != nil {
				return err
			}
			names, err := a.store.RuleSetNames(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d rules as %q. Stored rule sets: %s\n", len(rs.Rules), name, strings.Join(names, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "medical", "Rule set name")
	return cmd
}

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the sample diagnoses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			printStats(out, a.sys.KnowledgeBase())

			banner(out, "DEMONSTRATION 1: Common Cold Symptoms")
			if err := runForward(cmd, a, []string{"runny_nose", "sneezing", "sore_throat"}); err != nil {
				return err
			}
			banner(out, "DEMONSTRATION 2: Flu Symptoms")
			if err := runForward(cmd, a, []string{"fever", "body_aches", "fatigue", "headache"}); err != nil {
				return err
			}
			banner(out, "DEMONSTRATION 3: Backward Chaining")
			return runBackward(cmd, a, "migraine", []string{"severe_headache", "nausea"})
		},
	}
}

func newInteractiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Enter symptoms line by line, then diagnose",
		Long: `Reads symptoms from standard input. Each line holds symptom names or
numbers from the "list" menu, comma-separated (e.g. 1,3,5 or fever,headache).
An empty line (or end of input) runs forward chaining on the collected symptoms.
"clear" forgets the symptoms entered so far, "prove <diagnosis>" runs backward
chaining on them, and "quit" exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, a, cmd.InOrStdin())
		},
	}
}

func runInteractive(cmd *cobra.Command, a *app, in io.Reader) error {
	out := cmd.OutOrStdout()
	menu := kb.Strings(a.sys.KnowledgeBase().Symptoms())

	fmt.Fprintln(out, "Enter symptoms by name or number (\"list\" for the menu, empty line to diagnose, \"quit\" to exit):")
	var symptoms []string
	add := func(name string) {
		for _, s := range symptoms {
			if s == name {
				return
			}
		}
		symptoms = append(symptoms, name)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "quit" || line == "exit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case line == "list":
			for i, name := range menu {
				fmt.Fprintf(out, "%2d. %s\n", i+1, name)
			}
			fmt.Fprintf(out, "Current symptoms: %s\n", joinOrNone(symptoms))
		case line == "clear":
			symptoms = nil
			fmt.Fprintln(out, "Current symptoms cleared.")
		case strings.HasPrefix(line, "prove "):
			if err := runBackward(cmd, a, strings.TrimPrefix(line, "prove "), symptoms); err != nil {
				return err
			}
		case line == "":
			if len(symptoms) == 0 {
				fmt.Fprintln(out, "No symptoms entered.")
				continue
			}
			if err := runForward(cmd, a, symptoms); err != nil {
				return err
			}
			symptoms = nil
		default:
			for _, tok := range splitSymptoms([]string{line}) {
				if n, err := strconv.Atoi(tok); err == nil {
					if n < 1 || n > len(menu) {
						fmt.Fprintf(out, "Invalid symptom number: %d\n", n)
						continue
					}
					add(menu[n-1])
					continue
				}
				f, known := a.sys.Resolve(tok)
				if !known {
					fmt.Fprintf(out, "Unknown symptom %q (type \"list\" to see known symptoms)\n", tok)
					continue
				}
				add(string(f))
			}
		}
	}

	if len(symptoms) > 0 {
		return runForward(cmd, a, symptoms)
	}
	fmt.Fprintln(out, "\nGoodbye!")
	return scanner.Err()
}

func printStats(out io.Writer, base *kb.KnowledgeBase) {
	fmt.Fprintln(out, "Knowledge Base Statistics:")
	fmt.Fprintf(out, "- Total rules: %d\n", base.Len())
	fmt.Fprintf(out, "- Total symptoms: %d\n", len(base.Symptoms()))
	fmt.Fprintf(out, "- Total diagnoses: %d\n", len(base.Diagnoses()))
}

func banner(out io.Writer, title string) {
	line := strings.Repeat("=", 50)
	fmt.Fprintf(out, "\n%s\n%s\n%s\n", line, title, line)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

type stdoutWriter struct{ w io.Writer }

func (s stdoutWriter) WriteRules(_ context.Context, content string) error {
	_, err := io.WriteString(s.w, content)
	return err
}
