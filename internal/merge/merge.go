// Package merge turns a divergent pair of file versions into one final
// content. Merging is deterministic: the same conflict and resolution always
// produce byte-identical output, so any device can resolve and converge.
package merge

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

type Resolution string

const (
	KeepLocal  Resolution = "keep_local"
	KeepRemote Resolution = "keep_remote"
	KeepBoth   Resolution = "keep_both"
	Manual     Resolution = "manual"
)

var (
	ErrEmptyManualContent = errors.New("merge: manual resolution requires content")
	ErrUnknownResolution  = errors.New("merge: unknown resolution")
)

// Conflict is the minimal divergence record the resolver needs. Side A is
// the catalog side, side B the incoming writer, in the order the conflict
// was recorded.
type Conflict struct {
	Path     string
	DeviceA  string
	ContentA string
	DeviceB  string
	ContentB string
}

// Resolve produces the final content for a conflict. deviceID identifies the
// resolving device; "local" is whichever side that device wrote. A device
// that wrote neither side falls back to side A as local.
func Resolve(c *Conflict, res Resolution, deviceID string, manualContent string) (string, error) {
	switch res {
	case KeepLocal:
		if deviceID == c.DeviceB {
			return c.ContentB, nil
		}
		return c.ContentA, nil
	case KeepRemote:
		if deviceID == c.DeviceB {
			return c.ContentA, nil
		}
		return c.ContentB, nil
	case KeepBoth:
		return mergeBoth(c), nil
	case Manual:
		if manualContent == "" {
			return "", ErrEmptyManualContent
		}
		return manualContent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownResolution, res)
	}
}

// ValidResolution reports whether res is one of the known strategies.
func ValidResolution(res Resolution) bool {
	switch res {
	case KeepLocal, KeepRemote, KeepBoth, Manual:
		return true
	}
	return false
}

func mergeBoth(c *Conflict) string {
	switch KindOf(c.Path) {
	case KindStructured:
		return mergeStructured(c)
	case KindEnv:
		return mergeEnv(c)
	case KindRecords:
		return mergeRecords(c)
	default:
		return mergeBanners(c)
	}
}

// mergeStructured shallow-merges two JSON documents; side B wins on key
// collisions. Either side failing to parse degrades to banner output rather
// than failing the resolution.
func mergeStructured(c *Conflict) string {
	var docA, docB map[string]any
	if err := json.Unmarshal([]byte(c.ContentA), &docA); err != nil {
		return mergeBanners(c)
	}
	if err := json.Unmarshal([]byte(c.ContentB), &docB); err != nil {
		return mergeBanners(c)
	}

	merged := make(map[string]any, len(docA)+len(docB))
	for k, v := range docA {
		merged[k] = v
	}
	for k, v := range docB {
		merged[k] = v
	}

	// map keys marshal in sorted order, which keeps the output stable
	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return mergeBanners(c)
	}
	return string(out) + "\n"
}

// mergeEnv merges two KEY=VALUE files; side B wins on collisions.
func mergeEnv(c *Conflict) string {
	envA, err := godotenv.Unmarshal(c.ContentA)
	if err != nil {
		return mergeBanners(c)
	}
	envB, err := godotenv.Unmarshal(c.ContentB)
	if err != nil {
		return mergeBanners(c)
	}

	merged := make(map[string]string, len(envA)+len(envB))
	for k, v := range envA {
		merged[k] = v
	}
	for k, v := range envB {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%s\n", k, merged[k])
	}
	return sb.String()
}

// mergeBanners concatenates both sides with git-style conflict markers.
func mergeBanners(c *Conflict) string {
	var sb strings.Builder
	sb.WriteString("<<<<<<< " + c.DeviceA + "\n")
	sb.WriteString(strings.TrimRight(c.ContentA, "\n"))
	sb.WriteString("\n=======\n")
	sb.WriteString(strings.TrimRight(c.ContentB, "\n"))
	sb.WriteString("\n>>>>>>> " + c.DeviceB + "\n")
	return sb.String()
}
