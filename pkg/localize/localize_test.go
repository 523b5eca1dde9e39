package localize

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

var (
	errHi    = NewErrorID("ERROR_0", "hi")
	errHello = NewErrorID("ERROR_1", "hello '{}'")
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	r, err := NewRegistry()
	require.NoError(t, err)
	t.Cleanup(r.Close)

	err = r.LoadFS(fstest.MapFS{
		"upper/root.yaml": {Data: []byte("ERROR_0: HI\nERROR_1: HELLO '{}'\n")},
		"upper/pt.yaml":   {Data: []byte("ERROR_1: OLÁ '{}'\n")},
		"other/root.yaml": {Data: []byte("UNRELATED: x\n")},
	})
	require.NoError(t, err)
	return r
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		template string
		args     []any
		want     string
	}{
		{name: "no_placeholder", template: "hi", want: "hi"},
		{name: "one_arg", template: "hello '{}'", args: []any{"foo"}, want: "hello 'foo'"},
		{name: "nil_arg", template: "hello '{}'", args: []any{nil}, want: "hello 'null'"},
		{name: "missing_arg", template: "hello '{}'", want: "hello 'null'"},
		{name: "surplus_args", template: "{}", args: []any{1, 2}, want: "1"},
		{name: "several", template: "{} -> {}", args: []any{"a", 3}, want: "a -> 3"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, Format(test.template, test.args...))
		})
	}
}

func TestMessageWithMissingBundle(t *testing.T) {
	r := newTestRegistry(t)

	require.Equal(t, "hi ", New("missing", errHi).Message(r, Context{}))
	require.Equal(t, "hello 'foo' ", New("missing", errHello, "foo").Message(r, Context{}))
	require.Equal(t, "hello 'null' ", New("missing", errHello, nil).Message(r, Context{}))
}

func TestMessageWithContextBundle(t *testing.T) {
	r := newTestRegistry(t)
	lc := Context{Bundle: "upper"}

	require.Equal(t, "HI", New("missing", errHi).Message(r, lc))
	require.Equal(t, "HELLO 'foo'", New("missing", errHello, "foo").Message(r, lc))
}

func TestMessageResolutionOrder(t *testing.T) {
	r := newTestRegistry(t)

	t.Run("caller_bundle_wins", func(t *testing.T) {
		msg := New("upper", errHi).Message(r, Context{Bundle: "other"})
		require.Equal(t, "HI", msg)
	})

	t.Run("known_bundle_without_code_uses_template", func(t *testing.T) {
		msg := New("other", errHello, "foo").Message(r, Context{})
		require.Equal(t, "hello 'foo'", msg)
	})

	t.Run("locale_then_parent_then_root", func(t *testing.T) {
		brazil := Context{Bundle: "upper", Locale: language.MustParse("pt-BR")}
		require.Equal(t, "OLÁ 'x'", New("", errHello, "x").Message(r, brazil))
		require.Equal(t, "HI", New("", errHi).Message(r, brazil))
	})
}

func TestRegistryAddInvalidatesCache(t *testing.T) {
	r := newTestRegistry(t)

	_, ok := r.Lookup("upper", language.Und, "ERROR_9")
	require.False(t, ok)

	r.Add("upper", language.Und, map[string]string{"ERROR_9": "nine"})

	tmpl, ok := r.Lookup("upper", language.Und, "ERROR_9")
	require.True(t, ok)
	require.Equal(t, "nine", tmpl)
}

func TestLoadFSRejectsBadFiles(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	t.Cleanup(r.Close)

	require.Error(t, r.LoadFS(fstest.MapFS{"root.yaml": {Data: []byte("A: b")}}))
	require.Error(t, r.LoadFS(fstest.MapFS{"b/@@.yaml": {Data: []byte("A: b")}}))
	require.Error(t, r.LoadFS(fstest.MapFS{"b/root.yaml": {Data: []byte("- not a map")}}))
}

func TestError(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, "missing", errHello, "foo")

	require.Equal(t, errHello, err.ErrorID())
	require.Equal(t, "ERROR_1", err.Code())
	require.Equal(t, []any{"foo"}, err.Args())
	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, New("", errHello))
	require.NotErrorIs(t, err, New("", errHi))
	require.Equal(t, "hello 'foo' : disk full", err.Error())

	require.Panics(t, func() {
		New("b", nil)
	})
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	require.True(t, r.HasBundle("batchlane"))

	id := NewErrorID("BATCH_0001", "fallback")
	msg := New("batchlane", id, "tap").Message(nil, Context{})
	require.Equal(t, "stage 'tap' is an observer and cannot emit records", msg)

	pt := New("batchlane", id, "tap").Message(nil, Context{Locale: language.Portuguese})
	require.Equal(t, "o estágio 'tap' é um observador e não pode emitir registos", pt)
}
