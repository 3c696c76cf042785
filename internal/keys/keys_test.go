package keys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type scriptedReader struct {
	states []State
	errAt  int
	calls  int
}

func (r *scriptedReader) Read() (State, error) {
	r.calls++
	if r.errAt > 0 && r.calls == r.errAt {
		return State{}, errors.New("device gone")
	}
	if len(r.states) == 0 {
		return State{}, nil
	}
	state := r.states[0]
	if len(r.states) > 1 {
		r.states = r.states[1:]
	}
	return state, nil
}

func pressed(codes ...Code) State {
	var state State
	for _, code := range codes {
		state.Set(code)
	}
	return state
}

func TestParseKeyNamesAndAliases(t *testing.T) {
	cases := map[string]Code{
		"space":     CodeSpace,
		"SPACE":     CodeSpace,
		"KEY_SPACE": CodeSpace,
		"esc":       CodeEsc,
		"Escape":    CodeEsc,
		"f13":       183,
		"ctrl":      29,
		"super":     125,
		" a ":       30,
	}
	for name, want := range cases {
		got, err := ParseKey(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}
}

func TestParseKeyRejectsUnknown(t *testing.T) {
	_, err := ParseKey("hyperspace")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown key")

	_, err = ParseKey("  ")
	require.Error(t, err)
}

func TestCodeName(t *testing.T) {
	require.Equal(t, "space", CodeSpace.Name())
	require.Equal(t, "esc", CodeEsc.String())
	require.Equal(t, "code(700)", Code(700).Name())
	require.Contains(t, KnownNames(), "f24")
}

func TestStateSetDownMerge(t *testing.T) {
	var a, b State
	a.Set(CodeSpace)
	b.Set(CodeEsc)
	b.Set(maxCode + 1)

	require.True(t, a.Down(CodeSpace))
	require.False(t, a.Down(CodeEsc))
	require.False(t, b.Down(maxCode+1))

	a.Merge(b)
	require.True(t, a.Down(CodeEsc))
	require.True(t, a.Down(CodeSpace))
}

func TestNewSamplerValidation(t *testing.T) {
	_, err := NewSampler(nil, CodeSpace, CodeEsc)
	require.Error(t, err)

	_, err = NewSampler(&scriptedReader{}, CodeSpace, CodeSpace)
	require.Error(t, err)
}

func TestSamplerRecordEdges(t *testing.T) {
	reader := &scriptedReader{states: []State{
		{},
		pressed(CodeSpace),
		pressed(CodeSpace),
		pressed(CodeSpace),
		{},
		{},
	}}
	sampler, err := NewSampler(reader, CodeSpace, CodeEsc)
	require.NoError(t, err)

	var got [][]Edge
	for range 6 {
		edges, err := sampler.Sample()
		require.NoError(t, err)
		got = append(got, edges)
	}

	require.Equal(t, [][]Edge{
		nil,
		{EdgeRecordStart},
		nil,
		nil,
		{EdgeRecordStop},
		nil,
	}, got)
	require.False(t, sampler.RecordHeld())
}

func TestSamplerQuitIsLevelTriggered(t *testing.T) {
	reader := &scriptedReader{states: []State{pressed(CodeEsc), pressed(CodeEsc)}}
	sampler, err := NewSampler(reader, CodeSpace, CodeEsc)
	require.NoError(t, err)

	for range 2 {
		edges, err := sampler.Sample()
		require.NoError(t, err)
		require.Equal(t, []Edge{EdgeQuit}, edges)
	}
}

func TestSamplerReportsRecordEdgeBeforeQuit(t *testing.T) {
	reader := &scriptedReader{states: []State{pressed(CodeSpace), pressed(CodeEsc)}}
	sampler, err := NewSampler(reader, CodeSpace, CodeEsc)
	require.NoError(t, err)

	edges, err := sampler.Sample()
	require.NoError(t, err)
	require.Equal(t, []Edge{EdgeRecordStart}, edges)

	edges, err = sampler.Sample()
	require.NoError(t, err)
	require.Equal(t, []Edge{EdgeRecordStop, EdgeQuit}, edges)
}

func TestSamplerWrapsReaderError(t *testing.T) {
	sampler, err := NewSampler(&scriptedReader{errAt: 1}, CodeSpace, CodeEsc)
	require.NoError(t, err)

	_, err = sampler.Sample()
	require.Error(t, err)
	require.Contains(t, err.Error(), "read key state")
}

func TestEdgeString(t *testing.T) {
	require.Equal(t, "record_start", EdgeRecordStart.String())
	require.Equal(t, "record_stop", EdgeRecordStop.String())
	require.Equal(t, "quit", EdgeQuit.String())
	require.Equal(t, "edge(9)", Edge(9).String())
}

func TestEviocMatchesKernelRequestNumbers(t *testing.T) {
	require.Equal(t, uintptr(0x80604518), evioc(nrGetKey, 96))
	require.Equal(t, uintptr(0x81004506), evioc(nrGetName, 256))
}

func TestDiscoverKeyboardsDeduplicatesSymlinks(t *testing.T) {
	dir := t.TempDir()
	node := filepath.Join(dir, "event3")
	require.NoError(t, os.WriteFile(node, nil, 0o600))
	link := filepath.Join(dir, "usb-kbd-event-kbd")
	require.NoError(t, os.Symlink(node, link))

	paths, err := DiscoverKeyboards([]string{link, node, " "})
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(node)
	require.NoError(t, err)
	require.Equal(t, []string{resolved}, paths)
}

func TestOpenEvdevFailsWhenNothingOpens(t *testing.T) {
	_, err := OpenEvdev([]string{filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "open keyboards")

	_, err = OpenEvdev(nil)
	require.Error(t, err)
}

func TestEvdevReaderReadFailsOnNonInputNode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event0")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	reader, err := OpenEvdev([]string{path})
	require.NoError(t, err)
	require.Equal(t, []string{path}, reader.Paths())

	_, err = reader.Read()
	require.Error(t, err)
	require.Contains(t, err.Error(), "EVIOCGKEY")

	require.NoError(t, reader.Close())
	_, err = reader.Read()
	require.Error(t, err)
}

func TestListKeyboardsReportsUnreadableDevices(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "event9")
	keyboards, err := ListKeyboards([]string{missing})
	require.NoError(t, err)
	require.Len(t, keyboards, 1)
	require.False(t, keyboards[0].Readable)
	require.Error(t, keyboards[0].Err)
}
