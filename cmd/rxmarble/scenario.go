package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/xinjiayu/reactivex"
	"github.com/xinjiayu/reactivex/rxtest"
)

// ErrInvalidScenario 场景文件内容无效
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario 一个弹珠图场景：命名的源序列和作用在主源上的操作符链
type Scenario struct {
	Name     string            `yaml:"name"`
	Frame    int64             `yaml:"frame"`
	Disposed int64             `yaml:"disposed"`
	Input    string            `yaml:"input"`
	Sources  map[string]string `yaml:"sources"`
	Hot      []string          `yaml:"hot"`
	Pipeline []Step            `yaml:"pipeline"`
	Expect   string            `yaml:"expect"`
}

// Step 操作符链中的一步
type Step struct {
	Op    string      `yaml:"op"`
	Fn    string      `yaml:"fn"`
	Arg   interface{} `yaml:"arg"`
	Count int         `yaml:"count"`
	Ticks int64       `yaml:"ticks"`
	With  []string    `yaml:"with"`
}

// LoadScenario 读取并校验场景文件
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenario %s", path)
	}
	return ParseScenario(data)
}

// ParseScenario 解析YAML场景并补齐默认值
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, errors.Wrap(err, "parse scenario")
	}
	if scenario.Frame <= 0 {
		scenario.Frame = rxtest.DefaultFrame
	}
	if scenario.Disposed <= 0 {
		scenario.Disposed = rxtest.Disposed
	}
	if len(scenario.Sources) == 0 {
		return nil, errors.Wrap(ErrInvalidScenario, "no sources")
	}
	if scenario.Input == "" {
		if len(scenario.Sources) != 1 {
			return nil, errors.Wrap(ErrInvalidScenario, "input is required with more than one source")
		}
		for name := range scenario.Sources {
			scenario.Input = name
		}
	}
	if _, ok := scenario.Sources[scenario.Input]; !ok {
		return nil, errors.Wrapf(ErrInvalidScenario, "unknown input %q", scenario.Input)
	}
	return &scenario, nil
}

// ============================================================================
// 运行
// ============================================================================

// Result 场景运行结果
type Result struct {
	Messages      []rxtest.Recorded[any]
	Subscriptions map[string][]rxtest.Subscription
}

// subscriptionSource 可以报告订阅区间的测试序列
type subscriptionSource interface {
	reactivex.Observable[any]
	Subscriptions() []rxtest.Subscription
}

// Run 在新的测试调度器上运行场景
func (sc *Scenario) Run() (*Result, error) {
	s := rxtest.NewTestScheduler()
	frame := rxtest.WithFrame(sc.Frame)

	hot := make(map[string]bool, len(sc.Hot))
	for _, name := range sc.Hot {
		hot[name] = true
	}

	sources := make(map[string]subscriptionSource, len(sc.Sources))
	for _, name := range sortedNames(sc.Sources) {
		marbles := sc.Sources[name]
		var source subscriptionSource
		var err error
		if hot[name] {
			source, err = build(func() subscriptionSource { return rxtest.Hot[any](s, marbles, nil, nil, frame) })
		} else {
			source, err = build(func() subscriptionSource { return rxtest.Cold[any](s, marbles, nil, nil, frame) })
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "source %q", name)
		}
		sources[name] = source
	}

	operators := make([]reactivex.Operator[any, any], 0, len(sc.Pipeline))
	for i, step := range sc.Pipeline {
		op, err := step.operator(sources)
		if err != nil {
			return nil, errors.WithMessagef(err, "pipeline step %d", i)
		}
		operators = append(operators, op)
	}

	observer := rxtest.StartWith(s, func() reactivex.Observable[any] {
		return reactivex.Pipe[any](sources[sc.Input], operators...)
	}, rxtest.Created, rxtest.Subscribed, sc.Disposed)

	result := &Result{
		Messages:      observer.Messages(),
		Subscriptions: make(map[string][]rxtest.Subscription, len(sources)),
	}
	for name, source := range sources {
		result.Subscriptions[name] = source.Subscriptions()
	}
	return result, nil
}

// build 把弹珠图解析的panic转为错误
func build(fn func() subscriptionSource) (source subscriptionSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = errors.Errorf("%v", r)
		}
	}()
	return fn(), nil
}

// ============================================================================
// 操作符
// ============================================================================

func (st Step) others(sources map[string]subscriptionSource) ([]reactivex.Observable[any], error) {
	if len(st.With) == 0 {
		return nil, errors.Wrapf(ErrInvalidScenario, "%s needs at least one source in with", st.Op)
	}
	others := make([]reactivex.Observable[any], 0, len(st.With))
	for _, name := range st.With {
		source, ok := sources[name]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidScenario, "unknown source %q", name)
		}
		others = append(others, source)
	}
	return others, nil
}

func (st Step) operator(sources map[string]subscriptionSource) (reactivex.Operator[any, any], error) {
	duration := time.Duration(st.Ticks)

	switch st.Op {
	case "map":
		fn, err := mapFunc(st.Fn, st.Arg)
		if err != nil {
			return nil, err
		}
		return reactivex.Map(fn), nil
	case "filter":
		fn, err := filterFunc(st.Fn, st.Arg)
		if err != nil {
			return nil, err
		}
		return reactivex.Filter(fn), nil
	case "take":
		return reactivex.Take[any](st.Count), nil
	case "skip":
		return reactivex.Skip[any](st.Count), nil
	case "delay":
		return reactivex.Delay[any](duration), nil
	case "debounce":
		return reactivex.Debounce[any](duration), nil
	case "sample":
		return reactivex.Sample[any](duration), nil
	case "distinct_until_changed":
		return reactivex.DistinctUntilChangedBy[any, any](func(v any) any { return v }, nil), nil
	case "merge", "concat", "zip", "combine_latest", "take_until", "switch_latest":
	default:
		return nil, errors.Wrapf(ErrInvalidScenario, "unknown operator %q", st.Op)
	}

	others, err := st.others(sources)
	if err != nil {
		return nil, err
	}

	switch st.Op {
	case "merge":
		return func(source reactivex.Observable[any]) reactivex.Observable[any] {
			return reactivex.Merge(append([]reactivex.Observable[any]{source}, others...)...)
		}, nil
	case "concat":
		return func(source reactivex.Observable[any]) reactivex.Observable[any] {
			return reactivex.Concat(append([]reactivex.Observable[any]{source}, others...)...)
		}, nil
	case "zip":
		return func(source reactivex.Observable[any]) reactivex.Observable[any] {
			return reactivex.Pipe1(reactivex.Zip(append([]reactivex.Observable[any]{source}, others...)...), tuple)
		}, nil
	case "combine_latest":
		return func(source reactivex.Observable[any]) reactivex.Observable[any] {
			return reactivex.Pipe1(reactivex.CombineLatest(append([]reactivex.Observable[any]{source}, others...)...), tuple)
		}, nil
	case "switch_latest":
		inner := others[0]
		return reactivex.SwitchMap(func(any) reactivex.Observable[any] {
			return inner
		}), nil
	default:
		return reactivex.TakeUntil[any](others[0]), nil
	}
}

// tuple 把组合结果格式化为单个值
var tuple = reactivex.Map(func(values []any) (any, error) {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "(" + strings.Join(parts, " ") + ")", nil
})

func mapFunc(name string, arg interface{}) (reactivex.Mapper[any, any], error) {
	switch name {
	case "mul", "add":
		n, ok := toFloat(arg)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidScenario, "map %s needs a numeric arg", name)
		}
		return func(v any) (any, error) {
			x, ok := toFloat(v)
			if !ok {
				return nil, errors.Errorf("map %s: %v is not a number", name, v)
			}
			if name == "mul" {
				return number(x * n), nil
			}
			return number(x + n), nil
		}, nil
	case "upper":
		return func(v any) (any, error) { return strings.ToUpper(fmt.Sprint(v)), nil }, nil
	case "prefix":
		prefix := fmt.Sprint(arg)
		return func(v any) (any, error) { return prefix + fmt.Sprint(v), nil }, nil
	}
	return nil, errors.Wrapf(ErrInvalidScenario, "unknown map fn %q", name)
}

func filterFunc(name string, arg interface{}) (reactivex.Predicate[any], error) {
	switch name {
	case "even", "odd":
		odd := name == "odd"
		return func(v any) bool {
			x, ok := toFloat(v)
			return ok && (int64(x)%2 != 0) == odd
		}, nil
	case "gt", "lt":
		n, ok := toFloat(arg)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidScenario, "filter %s needs a numeric arg", name)
		}
		return func(v any) bool {
			x, ok := toFloat(v)
			if !ok {
				return false
			}
			if name == "gt" {
				return x > n
			}
			return x < n
		}, nil
	case "eq", "ne":
		want := fmt.Sprint(arg)
		return func(v any) bool {
			return (fmt.Sprint(v) == want) == (name == "eq")
		}, nil
	}
	return nil, errors.Wrapf(ErrInvalidScenario, "unknown filter fn %q", name)
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// number 整数值保持为int
func number(x float64) any {
	if x == float64(int(x)) {
		return int(x)
	}
	return x
}

// sortedNames 按名称排序的源
func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
