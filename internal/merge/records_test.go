package merge

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mergeRecordLines(t *testing.T, contentA, contentB string) []string {
	t.Helper()
	got, err := Resolve(&Conflict{
		Path:     "sessions/s1/transcript.jsonl",
		DeviceA:  "device-a",
		ContentA: contentA,
		DeviceB:  "device-b",
		ContentB: contentB,
	}, KeepBoth, "device-a", "")
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(got, "\n"), "\n")
}

func TestMergeRecordsDedupeByID(t *testing.T) {
	lines := mergeRecordLines(t,
		`{"id":1,"ts":5,"msg":"old"}`,
		`{"id":1,"ts":9,"msg":"new"}`,
	)
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, float64(9), rec["ts"])
	assert.Equal(t, "new", rec["msg"])
}

func TestMergeRecordsSortedByTimestamp(t *testing.T) {
	lines := mergeRecordLines(t,
		"{\"id\":1,\"ts\":5}\n{\"id\":3,\"ts\":20}",
		"{\"id\":2,\"ts\":10}",
	)
	require.Len(t, lines, 3)

	var order []float64
	for _, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		order = append(order, rec["ts"].(float64))
	}
	assert.Equal(t, []float64{5, 10, 20}, order)
}

func TestMergeRecordsIdentityPreference(t *testing.T) {
	t.Run("uuid used when id missing", func(t *testing.T) {
		lines := mergeRecordLines(t,
			`{"uuid":"u1","ts":1}`,
			`{"uuid":"u1","ts":2}`,
		)
		assert.Len(t, lines, 1)
	})

	t.Run("timestamp used when id and uuid missing", func(t *testing.T) {
		lines := mergeRecordLines(t,
			`{"timestamp":100,"note":"x"}`,
			`{"timestamp":100,"note":"y"}`,
		)
		// same identity, side B survives
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], `"y"`)
	})
}

func TestMergeRecordsVerbatimLines(t *testing.T) {
	lines := mergeRecordLines(t,
		"not json at all\n{\"id\":1,\"ts\":3}",
		"not json at all",
	)
	// the raw line deduplicates against itself and keeps its text
	require.Len(t, lines, 2)
	assert.Contains(t, lines, "not json at all")
}

func TestMergeRecordsDeterministic(t *testing.T) {
	a := "{\"id\":\"x\",\"ts\":4}\n{\"id\":\"y\",\"ts\":2}"
	b := "{\"id\":\"z\",\"ts\":3}"

	first := mergeRecordLines(t, a, b)
	second := mergeRecordLines(t, a, b)
	assert.Equal(t, first, second)
}
