package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xinjiayu/reactivex/rxtest"
)

func TestRunTakeUntilScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/take_until.yaml")
	require.NoError(t, err)

	result, err := scenario.Run()
	require.NoError(t, err)
	require.Equal(t, []rxtest.Recorded[any]{
		rxtest.OnNext[any](220, 2),
		rxtest.OnCompleted[any](230),
	}, result.Messages)
	require.Equal(t, []rxtest.Subscription{rxtest.Subscribe(200, 230)}, result.Subscriptions["source"])
	require.Equal(t, []rxtest.Subscription{rxtest.Subscribe(200, 230)}, result.Subscriptions["trigger"])

	var out bytes.Buffer
	require.NoError(t, Report(&out, scenario, result))
	require.Contains(t, out.String(), "result:  --2|")
	require.Contains(t, out.String(), "TIME")
	require.Regexp(t, `220\s*\|\s*N\s*\|\s*2`, out.String())
	require.Regexp(t, `230\s*\|\s*C`, out.String())
	require.Contains(t, out.String(), "ok")
}

func TestRunMergeScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/merge_map.yaml")
	require.NoError(t, err)

	result, err := scenario.Run()
	require.NoError(t, err)
	require.Equal(t, []rxtest.Recorded[any]{
		rxtest.OnNext[any](220, 20),
		rxtest.OnNext[any](250, 30),
		rxtest.OnNext[any](260, 40),
		rxtest.OnCompleted[any](270),
	}, result.Messages)
}

func TestReportMismatch(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
sources:
  a: "-1-|"
expect: "-2-|"
`))
	require.NoError(t, err)
	require.Equal(t, "a", scenario.Input)

	result, err := scenario.Run()
	require.NoError(t, err)

	var out bytes.Buffer
	require.ErrorIs(t, Report(&out, scenario, result), ErrUnexpectedResult)
}

func TestScenarioOperators(t *testing.T) {
	cases := []struct {
		name     string
		yaml     string
		expected []rxtest.Recorded[any]
	}{
		{
			name: "zip",
			yaml: `
input: a
sources:
  a: "-1-2|"
  b: "--x-y-z|"
pipeline:
  - op: zip
    with: [b]
`,
			expected: []rxtest.Recorded[any]{
				rxtest.OnNext[any](220, "(1 x)"),
				rxtest.OnNext[any](240, "(2 y)"),
				rxtest.OnCompleted[any](240),
			},
		},
		{
			name: "distinct_until_changed",
			yaml: `
sources:
  a: "-1-1-2-2-1|"
pipeline:
  - op: distinct_until_changed
`,
			expected: []rxtest.Recorded[any]{
				rxtest.OnNext[any](210, 1),
				rxtest.OnNext[any](250, 2),
				rxtest.OnNext[any](290, 1),
				rxtest.OnCompleted[any](300),
			},
		},
		{
			name: "take and skip",
			yaml: `
sources:
  a: "-1-2-3-4|"
pipeline:
  - op: skip
    count: 1
  - op: take
    count: 2
`,
			expected: []rxtest.Recorded[any]{
				rxtest.OnNext[any](230, 2),
				rxtest.OnNext[any](250, 3),
				rxtest.OnCompleted[any](250),
			},
		},
		{
			name: "delay",
			yaml: `
sources:
  a: "-a-b|"
pipeline:
  - op: delay
    ticks: 100
  - op: map
    fn: upper
`,
			expected: []rxtest.Recorded[any]{
				rxtest.OnNext[any](310, "A"),
				rxtest.OnNext[any](330, "B"),
				rxtest.OnCompleted[any](340),
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			scenario, err := ParseScenario([]byte(c.yaml))
			require.NoError(t, err)
			result, err := scenario.Run()
			require.NoError(t, err)
			require.Equal(t, c.expected, result.Messages)
		})
	}
}

func TestParseScenarioErrors(t *testing.T) {
	_, err := ParseScenario([]byte(`sources: {}`))
	require.ErrorIs(t, err, ErrInvalidScenario)

	_, err = ParseScenario([]byte(`
sources:
  a: "-1|"
  b: "-2|"
`))
	require.ErrorIs(t, err, ErrInvalidScenario)

	scenario, err := ParseScenario([]byte(`
sources:
  a: "-1|"
pipeline:
  - op: teleport
`))
	require.NoError(t, err)
	_, err = scenario.Run()
	require.ErrorIs(t, err, ErrInvalidScenario)

	scenario, err = ParseScenario([]byte(`
sources:
  a: "-1,|"
`))
	require.NoError(t, err)
	_, err = scenario.Run()
	require.ErrorIs(t, err, rxtest.ErrInvalidMarbles)
}
