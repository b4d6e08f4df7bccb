package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/odla/internal/envconfig"
	"github.com/born-ml/odla/internal/graph"
	"github.com/born-ml/odla/internal/logutil"
	"github.com/born-ml/odla/internal/odla"
	"github.com/born-ml/odla/internal/tensor"
)

// NewCLI builds the root command.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "odla",
		Short:         "Pure-Go operator lowering backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				versionHandler(cmd)
				return
			}
			cmd.Print(cmd.UsageString())
		},
	}
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Args:  cobra.NoArgs,
			Run:   func(cmd *cobra.Command, _ []string) { versionHandler(cmd) },
		},
		&cobra.Command{
			Use:   "env",
			Short: "Show configuration variables",
			Args:  cobra.NoArgs,
			RunE:  EnvHandler,
		},
		&cobra.Command{
			Use:   "demo",
			Short: "Run Relu followed by a 2x2 average pool on a 1x1x4x4 ramp",
			Args:  cobra.NoArgs,
			RunE:  DemoHandler,
		},
		newRunCmd(),
		&cobra.Command{
			Use:   "ops",
			Short: "List the operator types graphs may use",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				for _, op := range graph.NewRegistry().SupportedOps() {
					fmt.Fprintln(cmd.OutOrStdout(), op)
				}
			},
		},
	)
	return rootCmd
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run GRAPH",
		Short: "Lower a JSON graph and execute it once",
		Args:  cobra.ExactArgs(1),
		RunE:  RunHandler,
	}
	runCmd.Flags().String("inputs", "", "JSON file mapping input names to flat value arrays (default: zeros)")
	runCmd.Flags().Bool("bf16", envconfig.BF16(), "Compute convolutions in bfloat16")
	runCmd.Flags().Int("limit", 16, "Maximum values printed per output")
	return runCmd
}

func versionHandler(cmd *cobra.Command) {
	fmt.Fprintf(cmd.OutOrStdout(), "odla version %s\n", version)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	return table
}

// EnvHandler prints every ODLA_* variable with its current value.
func EnvHandler(cmd *cobra.Command, _ []string) error {
	vars := envconfig.AsMap()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.Sort(names)

	table := newTable(cmd.OutOrStdout(), []string{"NAME", "VALUE", "DESCRIPTION"})
	for _, name := range names {
		v := vars[name]
		table.Append([]string{v.Name, fmt.Sprint(v.Value), v.Description})
	}
	table.Render()
	return nil
}

// DemoHandler builds and runs the Relu -> AveragePool example.
func DemoHandler(cmd *cobra.Command, _ []string) error {
	comp := odla.NewComputation(odla.DefaultOptions())
	defer comp.Destroy()

	typ := odla.ValueType{Elem: tensor.Float32, Shape: tensor.Shape{1, 1, 4, 4}}
	var (
		x   odla.Value
		err error
	)
	in := make([]float32, typ.Shape.NumElements())
	for i := range in {
		in[i] = float32(i - 8)
	}
	if comp.Options().Policy == odla.Interpreted {
		if x, err = comp.CreateValue(typ, "x"); err != nil {
			return err
		}
		if err := comp.SetValueData(x, tensor.AsBytes(in)); err != nil {
			return err
		}
	} else if x, err = comp.CreateArgument(typ, "x"); err != nil {
		return err
	}

	y := comp.AveragePool(comp.Relu(x, "r"), odla.PoolParams{
		Window:  [2]int{2, 2},
		Strides: [2]int{2, 2},
	}, tensor.Shape{1, 1, 2, 2}, "y")
	if err := comp.Err(); err != nil {
		return err
	}
	if err := comp.SetValueAsOutput(y); err != nil {
		return err
	}

	out := make([]float32, 4)
	if comp.Options().Policy == odla.Interpreted {
		if err := comp.GetValueData(y, tensor.AsBytes(out)); err != nil {
			return err
		}
	} else {
		ctx, err := odla.NewContext(comp)
		if err != nil {
			return err
		}
		defer ctx.Destroy()
		if err := ctx.BindToArgumentByID("x", tensor.AsBytes(in)); err != nil {
			return err
		}
		if err := ctx.BindToOutputByID("y", tensor.AsBytes(out)); err != nil {
			return err
		}
		if err := comp.Execute(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "policy: %s\ninput:  %v\noutput: %v\n", comp.Options().Policy, in, out)
	return nil
}

// RunHandler lowers the graph file in args[0], feeds it and prints its
// outputs.
func RunHandler(cmd *cobra.Command, args []string) error {
	g, err := graph.Load(args[0])
	if err != nil {
		return err
	}

	values := make(map[string][]float64)
	if path, _ := cmd.Flags().GetString("inputs"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading inputs file: %w", err)
		}
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("parsing inputs JSON: %w", err)
		}
	}
	for _, in := range g.Inputs {
		if _, ok := values[in.Name]; !ok {
			slog.Warn("no data for input, using zeros", "input", in.Name, "shape", in.Shape)
			values[in.Name] = make([]float64, in.Shape.NumElements())
		}
	}

	opts := odla.DefaultOptions()
	opts.Policy = odla.Buffered
	opts.EnableBF16, _ = cmd.Flags().GetBool("bf16")
	comp := odla.NewComputation(opts)
	defer comp.Destroy()

	prog, err := graph.Lower(g, comp, nil)
	if err != nil {
		return err
	}
	feeds, err := prog.FeedsFromValues(values)
	if err != nil {
		return err
	}
	ctx, err := odla.NewContext(comp)
	if err != nil {
		return err
	}
	defer ctx.Destroy()
	results, err := prog.Run(ctx, feeds)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	table := newTable(cmd.OutOrStdout(), []string{"OUTPUT", "TYPE", "SHAPE", "VALUES"})
	for _, out := range prog.Outputs() {
		table.Append([]string{out.Name, out.Type.String(), out.Shape.String(), formatValues(graph.Decode(out.Type, results[out.Name]), limit)})
	}
	table.Render()
	return nil
}

func formatValues(vals []float64, limit int) string {
	var sb strings.Builder
	for i, v := range vals {
		if limit > 0 && i == limit {
			fmt.Fprintf(&sb, " ... (%d more)", len(vals)-limit)
			break
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%g", v)
	}
	return sb.String()
}
