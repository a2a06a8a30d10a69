package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idilsaglam/shoplist/internal/store"
	"github.com/idilsaglam/shoplist/internal/store/memstore"
	"github.com/idilsaglam/shoplist/internal/ui"
)

// syncBuffer is a bytes.Buffer safe for the watch goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func sharedStore(st store.Store) opener {
	return func(context.Context, *flags, bool) (*app, error) {
		return newApp(st, store.DefaultCollection, zap.NewNop(), nil), nil
	}
}

type result struct {
	code   int
	stdout string
	stderr string
}

func exec(t *testing.T, open opener, args ...string) result {
	t.Helper()
	ui.SetTheme("mono")
	t.Cleanup(func() { ui.SetTheme("classic") })
	var out, errb bytes.Buffer
	code := run(context.Background(), args, &out, &errb, open)
	return result{code: code, stdout: out.String(), stderr: errb.String()}
}

func TestAddListToggleRemove(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st := memstore.New(memstore.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	open := sharedStore(st)

	r := exec(t, open, "add", "oat", "milk")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Equal(t, "ok added\n", r.stdout)
	require.Equal(t, ExitOK, exec(t, open, "add", "eggs").code)

	r = exec(t, open, "ls", "--plain")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Less(t, strings.Index(r.stdout, "eggs"), strings.Index(r.stdout, "oat milk"), "newest first")

	// 1 is eggs (newest). Toggle it, then it cannot be removed.
	r = exec(t, open, "done", "1")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Equal(t, "ok toggled\n", r.stdout)

	r = exec(t, open, "ls", "--plain")
	assert.Contains(t, r.stdout, "[x] eggs")

	r = exec(t, open, "rm", "1")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "is purchased")

	require.Equal(t, ExitOK, exec(t, open, "rm", "2").code)
	r = exec(t, open, "ls", "--plain")
	assert.NotContains(t, r.stdout, "oat milk")
	assert.Contains(t, r.stdout, "eggs")
}

func TestUsageErrors(t *testing.T) {
	open := sharedStore(memstore.New())
	tests := []struct {
		name string
		args []string
	}{
		{"unknown subcommand", []string{"frobnicate"}},
		{"add without text", []string{"add"}},
		{"add blank text", []string{"add", "   "}},
		{"done not a number", []string{"done", "x"}},
		{"done out of range", []string{"done", "3"}},
		{"rm zero", []string{"rm", "0"}},
		{"rm too many args", []string{"rm", "1", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := exec(t, open, tt.args...)
			assert.Equal(t, ExitUsage, r.code)
			assert.NotEmpty(t, r.stderr)
		})
	}
}

func TestBackendFlagOverridesInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shoplist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: firestore\n"), 0o644))

	r := exec(t, openApp, "--config", path, "ls", "--plain")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "store.project_id")

	r = exec(t, openApp, "--config", path, "--backend", "memory", "ls", "--plain")
	assert.Equal(t, ExitOK, r.code, r.stderr)
}

func TestAdd_WriteFailure(t *testing.T) {
	st := memstore.New()
	st.FailNext(assert.AnError)

	r := exec(t, sharedStore(st), "add", "milk")
	assert.Equal(t, ExitError, r.code)
	assert.Contains(t, r.stderr, "not saved")
}

func TestWatch_PrintsEverySnapshot(t *testing.T) {
	ui.SetTheme("mono")
	defer ui.SetTheme("classic")
	st := memstore.New()
	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan int, 1)
	go func() { done <- run(ctx, []string{"watch"}, out, &syncBuffer{}, sharedStore(st)) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "no items") }, time.Second, 10*time.Millisecond)
	_, err := st.Create(context.Background(), store.DefaultCollection, store.Fields{store.FieldText: "bread"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "bread") }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, ExitOK, code)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
