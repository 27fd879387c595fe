package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindStructured, KindOf("settings.json"))
	assert.Equal(t, KindStructured, KindOf("todos/session-1.json"))
	assert.Equal(t, KindRecords, KindOf("sessions/abc/transcript.jsonl"))
	assert.Equal(t, KindEnv, KindOf("local.env"))
	assert.Equal(t, KindText, KindOf("commands/deploy.md"))
	assert.Equal(t, KindText, KindOf("NOTES"))
}

func TestResolveSides(t *testing.T) {
	conflict := &Conflict{
		Path:     "notes.md",
		DeviceA:  "device-a",
		ContentA: "from a",
		DeviceB:  "device-b",
		ContentB: "from b",
	}

	t.Run("keep_local picks the resolving device's side", func(t *testing.T) {
		got, err := Resolve(conflict, KeepLocal, "device-b", "")
		require.NoError(t, err)
		assert.Equal(t, "from b", got)

		got, err = Resolve(conflict, KeepLocal, "device-a", "")
		require.NoError(t, err)
		assert.Equal(t, "from a", got)
	})

	t.Run("keep_local from an unrelated device falls back to side A", func(t *testing.T) {
		got, err := Resolve(conflict, KeepLocal, "device-c", "")
		require.NoError(t, err)
		assert.Equal(t, "from a", got)
	})

	t.Run("keep_remote picks the other side", func(t *testing.T) {
		got, err := Resolve(conflict, KeepRemote, "device-a", "")
		require.NoError(t, err)
		assert.Equal(t, "from b", got)

		got, err = Resolve(conflict, KeepRemote, "device-b", "")
		require.NoError(t, err)
		assert.Equal(t, "from a", got)
	})
}

func TestResolveManual(t *testing.T) {
	conflict := &Conflict{Path: "settings.json", DeviceA: "a", DeviceB: "b"}

	t.Run("requires content", func(t *testing.T) {
		_, err := Resolve(conflict, Manual, "a", "")
		assert.ErrorIs(t, err, ErrEmptyManualContent)
	})

	t.Run("returns supplied content verbatim", func(t *testing.T) {
		got, err := Resolve(conflict, Manual, "a", `{"picked":true}`)
		require.NoError(t, err)
		assert.Equal(t, `{"picked":true}`, got)
	})
}

func TestResolveUnknown(t *testing.T) {
	_, err := Resolve(&Conflict{}, Resolution("coin_flip"), "a", "")
	assert.ErrorIs(t, err, ErrUnknownResolution)
	assert.False(t, ValidResolution("coin_flip"))
	assert.True(t, ValidResolution(KeepBoth))
}

func TestMergeStructured(t *testing.T) {
	conflict := &Conflict{
		Path:     "settings.json",
		DeviceA:  "device-a",
		ContentA: `{"a":1}`,
		DeviceB:  "device-b",
		ContentB: `{"a":2,"b":3}`,
	}

	t.Run("second side wins key collisions", func(t *testing.T) {
		got, err := Resolve(conflict, KeepBoth, "device-a", "")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":2,"b":3}`, got)
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		first, err := Resolve(conflict, KeepBoth, "device-a", "")
		require.NoError(t, err)
		second, err := Resolve(conflict, KeepBoth, "device-a", "")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("parse failure falls back to banners", func(t *testing.T) {
		bad := &Conflict{
			Path:     "settings.json",
			DeviceA:  "device-a",
			ContentA: `{not json`,
			DeviceB:  "device-b",
			ContentB: `{"a":2}`,
		}
		got, err := Resolve(bad, KeepBoth, "device-a", "")
		require.NoError(t, err)
		assert.Contains(t, got, "<<<<<<< device-a")
		assert.Contains(t, got, "=======")
		assert.Contains(t, got, ">>>>>>> device-b")
		assert.Contains(t, got, "{not json")
	})
}

func TestMergeEnv(t *testing.T) {
	conflict := &Conflict{
		Path:     "local.env",
		DeviceA:  "device-a",
		ContentA: "A=1\nB=2\n",
		DeviceB:  "device-b",
		ContentB: "B=3\nC=4\n",
	}

	got, err := Resolve(conflict, KeepBoth, "device-a", "")
	require.NoError(t, err)
	assert.Equal(t, "A=1\nB=3\nC=4\n", got)
}

func TestMergeText(t *testing.T) {
	conflict := &Conflict{
		Path:     "commands/deploy.md",
		DeviceA:  "device-a",
		ContentA: "run deploy\n",
		DeviceB:  "device-b",
		ContentB: "run deploy --safe\n",
	}

	got, err := Resolve(conflict, KeepBoth, "device-a", "")
	require.NoError(t, err)
	assert.Equal(t, "<<<<<<< device-a\nrun deploy\n=======\nrun deploy --safe\n>>>>>>> device-b\n", got)
}
