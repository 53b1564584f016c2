package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/config"
	"github.com/shubhsaxena/search-layout/internal/models"
	"github.com/shubhsaxena/search-layout/internal/orchestrator"
)

type cli struct {
	out    io.Writer
	orch   *orchestrator.Orchestrator
	asJSON bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	analytics := config.DefaultConfig().Analytics
	analytics.PublishEvents = false

	c := &cli{
		out:  out,
		orch: orchestrator.New(orchestrator.Backends{}, nil, analytics, zap.NewNop()),
	}

	root := &cobra.Command{
		Use:           "layoutctl",
		Short:         "Classify search queries and inspect module layouts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "Print results as JSON")

	root.AddCommand(
		&cobra.Command{
			Use:   "classify <query>",
			Short: "Classify a query and show its layout",
			Long: `Classify a query the same way the HTTP API does.

All remaining arguments are joined with spaces, so quoting is optional:
  layoutctl classify how to make matcha`,
			Args: cobra.MinimumNArgs(1),
			RunE: c.runClassify,
		},
		&cobra.Command{
			Use:   "intents",
			Short: "List intents in classification order",
			Args:  cobra.NoArgs,
			RunE:  c.runIntents,
		},
		&cobra.Command{
			Use:   "examples <intent>",
			Short: "Show the sample queries documented for an intent",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runExamples,
		},
		&cobra.Command{
			Use:   "keywords <intent>",
			Short: "List the terms that select an intent, in match order",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runKeywords,
		},
		&cobra.Command{
			Use:   "layout <intent>",
			Short: "Show the module layout for an intent",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runLayout,
		},
	)

	return root
}

func (c *cli) runClassify(cmd *cobra.Command, args []string) error {
	resp := c.orch.Classify(context.Background(), &models.ClassifyRequest{
		Query: strings.Join(args, " "),
	})
	if c.asJSON {
		return c.printJSON(resp)
	}

	keyword := resp.Metadata.MatchedKeyword
	if resp.Metadata.Fallback {
		keyword = "(fallback)"
	}
	fmt.Fprintf(c.out, "intent:  %s\n", resp.Intent)
	fmt.Fprintf(c.out, "keyword: %s\n", keyword)
	c.printModules(resp.Render)
	return nil
}

func (c *cli) runIntents(cmd *cobra.Command, args []string) error {
	infos := c.orch.ListIntents()
	if c.asJSON {
		return c.printJSON(infos)
	}
	for _, info := range infos {
		lead := models.LayoutConfig{Intent: info.Intent, Modules: info.Layout}.Lead()
		fmt.Fprintf(c.out, "%-18s lead=%s\n", info.Intent, lead.Module)
	}
	return nil
}

func (c *cli) runExamples(cmd *cobra.Command, args []string) error {
	intent, err := parseIntent(args[0])
	if err != nil {
		return err
	}
	examples := c.orch.Examples(intent)
	if c.asJSON {
		return c.printJSON(examples)
	}
	for _, ex := range examples {
		fmt.Fprintln(c.out, ex)
	}
	return nil
}

func (c *cli) runKeywords(cmd *cobra.Command, args []string) error {
	intent, err := parseIntent(args[0])
	if err != nil {
		return err
	}
	keywords := c.orch.Keywords(intent)
	if c.asJSON {
		if keywords == nil {
			keywords = []string{}
		}
		return c.printJSON(keywords)
	}
	for _, kw := range keywords {
		fmt.Fprintf(c.out, "%q\n", kw)
	}
	return nil
}

func (c *cli) runLayout(cmd *cobra.Command, args []string) error {
	intent, err := parseIntent(args[0])
	if err != nil {
		return err
	}
	layout := c.orch.Layout(intent)
	if c.asJSON {
		return c.printJSON(layout)
	}
	c.printModules(layout.Modules)
	return nil
}

func (c *cli) printModules(modules []models.ModuleLayout) {
	for _, m := range modules {
		fmt.Fprintf(c.out, "  %-12s %-7s %s\n", m.Module, m.Priority, m.Display)
	}
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseIntent(s string) (models.Intent, error) {
	intent := models.Intent(strings.ToLower(strings.TrimSpace(s)))
	if !intent.Valid() {
		return "", fmt.Errorf("unknown intent %q", s)
	}
	return intent, nil
}
