package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/casualjim/reagent/nodes"
	"github.com/casualjim/reagent/nodetype"
	"github.com/casualjim/reagent/provider"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func runCmd(flags *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run [query]",
		Short: "Run the agent once for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			con, err := newConsole(cmd.OutOrStdout(), flags.markdown)
			if err != nil {
				return err
			}
			answer, res, err := a.turn(ctx, con, strings.Join(args, " "))
			if flags.dump {
				con.dump(res)
			}
			if err != nil {
				return err
			}
			con.answer(answer)
			return nil
		},
	}
}

func chatCmd(flags *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the agent, one run per line, until exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			con, err := newConsole(cmd.OutOrStdout(), flags.markdown)
			if err != nil {
				return err
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Split(bufio.ScanLines)
			for {
				con.prompt()
				if !scanner.Scan() {
					fmt.Fprintln(cmd.OutOrStdout(), "Exiting...")
					return scanner.Err()
				}
				input := strings.TrimSpace(scanner.Text())
				if strings.EqualFold(input, "exit") {
					return nil
				}
				if input == "" {
					continue
				}

				answer, res, err := a.turn(ctx, con, input)
				if flags.dump {
					con.dump(res)
				}
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					con.failure(err)
					continue
				}
				con.answer(answer)
			}
		},
	}
}

func describeCmd(flags *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print the agent graph as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer a.Close()

			desc := a.graph.Describe()
			if flags.dump {
				con, _ := newConsole(cmd.OutOrStdout(), false)
				con.dump(desc)
				return nil
			}
			b, err := json.MarshalIndent(desc, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}

func typesCmd(_ *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the built-in node types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := nodetype.NewRegistry()
			// models are only consulted at run time
			if err := nodes.RegisterCore(reg, provider.NewModels()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range reg.List() {
				fmt.Fprintf(out, "%s\t%s\n", t, t.Description)
				for slot := range t.Inputs.All() {
					fmt.Fprintf(out, "  in  %-16s %s%s\n", slot.Name, slot.Type, slotFlags(slot))
				}
				for slot := range t.Outputs.All() {
					fmt.Fprintf(out, "  out %-16s %s%s\n", slot.Name, slot.Type, slotFlags(slot))
				}
			}
			return nil
		},
	}
}

func slotFlags(slot nodetype.Slot) string {
	var flags []string
	if slot.Streaming {
		flags = append(flags, "streaming")
	}
	if slot.Optional {
		flags = append(flags, "optional")
	}
	if len(flags) == 0 {
		return ""
	}
	return " (" + strings.Join(flags, ", ") + ")"
}
