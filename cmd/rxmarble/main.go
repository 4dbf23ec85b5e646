// Command rxmarble replays YAML marble scenarios through reactivex operators
// 在虚拟时间上运行弹珠图场景并打印结果
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xinjiayu/reactivex"
	"github.com/xinjiayu/reactivex/rxtest"
)

// ErrUnexpectedResult 结果与场景的expect不一致
var ErrUnexpectedResult = errors.New("result does not match expect")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:          "rxmarble",
		Short:        "Replay marble diagrams through reactivex operators",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				return nil
			}
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			reactivex.SetLogger(logger)
			return nil
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log operator events to stderr")

	cmd.AddCommand(newRunCmd())
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run marble scenarios on a virtual-time scheduler",
		Long: `Run one or more marble scenarios. Each scenario names its sources as marble
strings and applies an operator pipeline to the input source.
Example:
$ rxmarble run testdata/take_until.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				scenario, err := LoadScenario(path)
				if err != nil {
					return err
				}
				result, err := scenario.Run()
				if err != nil {
					return errors.WithMessage(err, path)
				}
				if err := Report(cmd.OutOrStdout(), scenario, result); err != nil {
					reactivex.Logger().Warn("scenario failed", zap.String("path", path), zap.Error(err))
					failed++
				}
			}
			if failed > 0 {
				return errors.Errorf("%d of %d scenarios failed", failed, len(args))
			}
			return nil
		},
	}
}

// Report 打印结果的弹珠图、消息表和订阅区间；场景有expect且不一致时返回ErrUnexpectedResult
func Report(w io.Writer, scenario *Scenario, result *Result) error {
	marbles := rxtest.ToMarbles(result.Messages,
		rxtest.WithFrame(scenario.Frame), rxtest.WithTimeShift(rxtest.Subscribed))

	name := scenario.Name
	if name == "" {
		name = scenario.Input
	}
	fmt.Fprintf(w, "== %s\n", name)
	fmt.Fprintf(w, "result:  %s\n", marbles)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Kind", "Value"})
	table.SetBorder(false)
	for _, m := range result.Messages {
		value := ""
		switch m.Value.Kind {
		case reactivex.KindNext:
			value = fmt.Sprint(m.Value.Value)
		case reactivex.KindError:
			value = m.Value.Err.Error()
		}
		table.Append([]string{strconv.FormatInt(m.Time, 10), m.Value.Kind.String(), value})
	}
	table.Render()

	for _, source := range sortedNames(result.Subscriptions) {
		subscriptions := make([]string, 0, len(result.Subscriptions[source]))
		for _, s := range result.Subscriptions[source] {
			subscriptions = append(subscriptions, s.String())
		}
		fmt.Fprintf(w, "subscriptions %s: %s\n", source, strings.Join(subscriptions, " "))
	}

	if scenario.Expect == "" {
		return nil
	}
	expected, err := rxtest.ParseMarbles[any](scenario.Expect, nil, nil,
		rxtest.WithFrame(scenario.Frame), rxtest.WithTimeShift(rxtest.Subscribed))
	if err != nil {
		return errors.WithMessage(err, "expect")
	}
	if !sameMessages(result.Messages, expected) {
		fmt.Fprintf(w, "expect:  %s\n", scenario.Expect)
		return errors.Wrapf(ErrUnexpectedResult, "got %s, want %s", marbles, scenario.Expect)
	}
	fmt.Fprintln(w, "ok")
	return nil
}

// sameMessages 按时刻、类型和值的文本比较，错误只比较类型
func sameMessages(got, want []rxtest.Recorded[any]) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		g, w := got[i], want[i]
		if g.Time != w.Time || g.Value.Kind != w.Value.Kind {
			return false
		}
		if g.Value.Kind == reactivex.KindNext && fmt.Sprint(g.Value.Value) != fmt.Sprint(w.Value.Value) {
			return false
		}
	}
	return true
}
