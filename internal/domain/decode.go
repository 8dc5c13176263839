package domain

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Attribute values arrive in every shape several generations of editorial
// tooling left behind: scalar IDs, JSON arrays, JSON objects with an "ID"
// key, comma-separated lists, and PHP-serialized arrays. The decoders here
// accept all of them and return empty on anything else: a resolution miss,
// not an error.

// ParseID extracts a single entity ID from a raw attribute value.
func ParseID(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		for _, key := range []string{"ID", "id"} {
			if v, ok := obj[key]; ok {
				return ParseID(strings.Trim(string(v), `"`))
			}
		}
		return 0
	}
	var list []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &list); err == nil && len(list) > 0 {
		return ParseID(strings.Trim(string(list[0]), `"`))
	}
	return 0
}

// ParseIDList extracts a deduplicated list of entity IDs from a raw value.
func ParseIDList(raw string) []int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if id == 0 {
			return nil
		}
		return []int64{id}
	}

	if strings.HasPrefix(raw, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			var out []int64
			for _, item := range list {
				if id := ParseID(strings.Trim(string(item), `"`)); id != 0 {
					out = append(out, id)
				} else if id := ParseID(string(item)); id != 0 {
					out = append(out, id)
				}
			}
			return DedupeIDs(out)
		}
	}

	if strings.HasPrefix(raw, "{") {
		if id := ParseID(raw); id != 0 {
			return []int64{id}
		}
		return nil
	}

	if ids, ok := parsePHPSerializedInts(raw); ok {
		return DedupeIDs(ids)
	}

	if strings.Contains(raw, ",") {
		var out []int64
		for _, part := range strings.Split(raw, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil && id != 0 {
				out = append(out, id)
			}
		}
		return DedupeIDs(out)
	}

	return nil
}

// ParseBool interprets the truthy spellings editorial tooling stores.
func ParseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// DedupeIDs removes zeros and duplicates, preserving first-seen order.
func DedupeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var phpSerializedToken = regexp.MustCompile(`i:(-?\d+);|s:\d+:"(-?\d*)";`)

// parsePHPSerializedInts handles the one legacy serialized shape that still
// occurs in migrated data: a flat array of ints (or numeric strings), e.g.
// a:2:{i:0;i:55;i:1;s:2:"66";}. Tokens inside the braces alternate
// key, value; only the values are kept.
func parsePHPSerializedInts(raw string) ([]int64, bool) {
	if !strings.HasPrefix(raw, "a:") {
		return nil, false
	}
	open := strings.Index(raw, "{")
	close := strings.LastIndex(raw, "}")
	if open < 0 || close < open {
		return nil, false
	}
	tokens := phpSerializedToken.FindAllStringSubmatch(raw[open+1:close], -1)
	var out []int64
	for i, tok := range tokens {
		if i%2 == 0 {
			continue // array key
		}
		lit := tok[1]
		if lit == "" {
			lit = tok[2]
		}
		if id, err := strconv.ParseInt(lit, 10, 64); err == nil && id != 0 {
			out = append(out, id)
		}
	}
	return out, true
}

// EncodeIDList renders IDs in the canonical stored form: a JSON int array.
func EncodeIDList(ids []int64) string {
	ids = DedupeIDs(ids)
	if len(ids) == 0 {
		return "[]"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// NormalizeMatchResult maps free-text match_result values onto the outcome
// used when a match resolves with no winners.
func NormalizeMatchResult(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "draw", "time limit draw", "time-limit draw", "double pin", "double count out", "double count-out", "double countout", "double dq", "double disqualification":
		return OutcomeDraw
	case "no contest", "no-contest", "nocontest", "nc", "thrown out":
		return OutcomeNoContest
	}
	return OutcomeUnknown
}
