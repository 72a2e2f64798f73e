package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Tag is one key=value pair from a measurement's tag set.
type Tag struct {
	Key, Value string
}

func isKeyStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKeyByte(c byte) bool {
	return isKeyStart(c) || (c >= '0' && c <= '9') ||
		c == '_' || c == '-' || c == '.' || c == ':' || c == '%' || c == '@'
}

func isValueByte(c byte) bool { return c != ',' }

// ValidateTags checks the grammar of a raw "k=v,k=v" tag string, mirroring
// original_source/tags.c's state machine (BEFORE/KSTART/KEY/VALUE).
func ValidateTags(tags string) error {
	const (
		stateKeyStart = iota
		stateKey
		stateValue
	)

	state := stateKeyStart
	for i := 0; i < len(tags); i++ {
		c := tags[i]
		switch state {
		case stateKeyStart:
			if isKeyStart(c) {
				state = stateKey
			} else {
				return fmt.Errorf("catalog: invalid tag key start at byte %d in %q", i, tags)
			}
		case stateKey:
			if c == '=' {
				state = stateValue
			} else if !isKeyByte(c) {
				return fmt.Errorf("catalog: invalid tag key byte at %d in %q", i, tags)
			}
		case stateValue:
			if !isValueByte(c) {
				state = stateKeyStart
			}
		}
	}

	if state != stateValue {
		return fmt.Errorf("catalog: malformed tag set %q", tags)
	}
	return nil
}

// ParseTags splits an already-validated "k=v,k=v" string into Tag pairs.
func ParseTags(tags string) []Tag {
	parts := strings.Split(tags, ",")
	out := make([]Tag, 0, len(parts))
	for _, p := range parts {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out = append(out, Tag{Key: kv[0], Value: kv[1]})
	}
	return out
}

// Canonicalize validates and reorders a raw tag string into the canonical
// `k1=v1,k2=v2,…` form: a lexicographic sort by key. Duplicate keys are
// not reconciled; the first occurrence for a given key wins ties so sort
// stability alone decides their relative order (per the unresolved
// ambiguity noted for duplicate tag keys).
func Canonicalize(tags string) (string, error) {
	if err := ValidateTags(tags); err != nil {
		return "", err
	}

	parsed := ParseTags(tags)
	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].Key < parsed[j].Key
	})

	var b strings.Builder
	for i, t := range parsed {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	return b.String(), nil
}
