// File: internal/wallet/steps_test.go
package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/walletctl/internal/browser"
	"github.com/xkilldash9x/walletctl/internal/browser/browsertest"
)

func names(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Name
	}
	return out
}

func recorder(log *[]string, name string, err error) Step {
	return Step{Name: name, Run: func(context.Context, browser.Page, Options) error {
		*log = append(*log, name)
		return err
	}}
}

func TestRunSteps(t *testing.T) {
	page := browsertest.NewPage("p", home)

	t.Run("runs every step in order", func(t *testing.T) {
		var ran []string
		steps := []Step{recorder(&ran, "a", nil), recorder(&ran, "b", nil), recorder(&ran, "c", nil)}

		require.NoError(t, RunSteps(context.Background(), page, Options{}, steps))
		assert.Equal(t, []string{"a", "b", "c"}, ran)
	})

	t.Run("first failure aborts the rest", func(t *testing.T) {
		var ran []string
		boom := errors.New("button never appeared")
		steps := []Step{recorder(&ran, "a", nil), recorder(&ran, "b", boom), recorder(&ran, "c", nil)}

		err := RunSteps(context.Background(), page, Options{}, steps)

		assert.Equal(t, []string{"a", "b"}, ran)
		assert.ErrorIs(t, err, boom)
		var stepErr *StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, "b", stepErr.Step)
		assert.Contains(t, err.Error(), `"b"`)
	})

	t.Run("options reach every step unchanged", func(t *testing.T) {
		opts := Options{Seed: "one two", Password: "pw", ShowTestNets: true}
		var seen []Options
		step := Step{Name: "s", Run: func(_ context.Context, _ browser.Page, o Options) error {
			seen = append(seen, o)
			o.Password = "mutated"
			return nil
		}}

		require.NoError(t, RunSteps(context.Background(), page, opts, []Step{step, step}))
		assert.Equal(t, []Options{opts, opts}, seen)
	})

	t.Run("canceled context runs nothing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var ran []string

		err := RunSteps(ctx, page, Options{}, []Step{recorder(&ran, "a", nil)})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, ran)
	})
}

func TestStepSequences(t *testing.T) {
	logger := zaptest.NewLogger(t)
	actions := NewActions(logger, NewGuard(logger, testTiming().OverlayPollInterval), testTiming())

	wantDefault := []string{
		StepImportAccount, StepCloseNewModal, StepShowTestNets,
		StepEnableEthSign, StepCloseWhatsNew, StepCloseWhatsNew,
	}
	wantFlask := []string{
		StepAcceptTheRisks, StepImportAccount, StepShowTestNets, StepEnableEthSign,
		StepClosePortfolioTooltip, StepCloseWhatsNew, StepCloseWhatsNew,
	}

	if diff := cmp.Diff(wantDefault, names(actions.DefaultSteps())); diff != "" {
		t.Errorf("DefaultSteps() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantFlask, names(actions.FlaskSteps())); diff != "" {
		t.Errorf("FlaskSteps() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantFlask, names(actions.StepsFor(true))); diff != "" {
		t.Errorf("StepsFor(true) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantDefault, names(actions.StepsFor(false))); diff != "" {
		t.Errorf("StepsFor(false) mismatch (-want +got):\n%s", diff)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{ShowTestNets: true}
	filled := opts.WithDefaults()

	assert.Equal(t, DefaultSeed, filled.Seed)
	assert.Equal(t, DefaultPassword, filled.Password)
	assert.True(t, filled.ShowTestNets)
	assert.Empty(t, opts.Seed, "receiver must not change")

	custom := Options{Seed: "a b c", Password: "hunter2"}.WithDefaults()
	assert.Equal(t, "a b c", custom.Seed)
	assert.Equal(t, "hunter2", custom.Password)
}
