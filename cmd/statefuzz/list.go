package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fluxfuzzer/statefuzz/internal/engine"
	"github.com/fluxfuzzer/statefuzz/internal/graph"
	"github.com/fluxfuzzer/statefuzz/internal/protocol"
	"github.com/fluxfuzzer/statefuzz/internal/ui"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List fuzzable paths and their test case counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildOffline(cmd)
			if err != nil {
				return err
			}

			plan, err := engine.New(p.Graph, p.Session, nil).Plan()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.RenderPlan(plan))
			fmt.Fprintln(out)
			for _, name := range p.Variables.Names() {
				value, _ := p.Variables.Get(name)
				fmt.Fprintln(out, ui.RenderLabelValue("{{"+name+"}}", value))
			}
			return nil
		},
	}
}

func newRenderCmd() *cobra.Command {
	var quote bool

	cmd := &cobra.Command{
		Use:   "render <path>",
		Short: "Print the canonical requests of a path",
		Long: `Print the canonical bytes of every request along a named path. State
callbacks run with no responses, so sequence numbers advance while session
tokens stay empty.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildOffline(cmd)
			if err != nil {
				return err
			}

			nodes, err := p.Graph.Path(args[0])
			if err != nil {
				return err
			}
			edges, err := p.Graph.ResolvePath(nodes)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p.Graph.RunPreSend(p.Session)
			for _, e := range edges {
				p.Graph.Traverse(e, p.Session, nil)
				req, err := p.Graph.Node(e.To)
				if err != nil {
					return err
				}

				fmt.Fprintln(out, ui.HeaderStyle.Render(e.To))
				if quote {
					fmt.Fprintln(out, strconv.Quote(string(req.Render())))
				} else {
					out.Write(req.Render())
				}
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, ui.RenderLabelValue("Path", graph.PathString(edges)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&quote, "quote", false, "Print requests as quoted strings")
	return cmd
}

// buildOffline compiles the configured definition without opening a connection
func buildOffline(cmd *cobra.Command) (*protocol.Protocol, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	def, err := loadDefinition(cfg.Protocol.Definition)
	if err != nil {
		return nil, err
	}
	return protocol.Build(def, cfg.Variables(),
		protocol.WithLogger(newLogger(os.Stderr, cfg.Output.Verbose)),
		protocol.WithSeed(cfg.Engine.Seed),
	)
}
