package msort

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

type row struct {
	key   string
	value int
}

func TestDedupeLastWinsKeepsLastOccurrence(t *testing.T) {
	rows := []row{
		{"a", 1},
		{"b", 1},
		{"a", 2},
		{"c", 1},
		{"a", 3},
	}
	out := DedupeLastWins(rows, func(r row) string { return r.key })

	byKey := make(map[string]int)
	for _, r := range out {
		byKey[r.key] = r.value
	}
	require.Len(t, out, 3)
	require.Equal(t, 3, byKey["a"])
	require.Equal(t, 1, byKey["b"])
	require.Equal(t, 1, byKey["c"])
}

func TestDedupeLastWinsNoDuplicates(t *testing.T) {
	rows := []row{{"a", 1}, {"b", 2}, {"c", 3}}
	out := DedupeLastWins(rows, func(r row) string { return r.key })

	require.Len(t, out, 3)
	keys := make([]string, len(out))
	for i, r := range out {
		keys[i] = r.key
	}
	sort.Strings(keys)
	require.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestDedupeLastWinsEmptyAndSingle(t *testing.T) {
	require.Empty(t, DedupeLastWins([]row{}, func(r row) string { return r.key }))
	one := DedupeLastWins([]row{{"a", 1}}, func(r row) string { return r.key })
	require.Equal(t, []row{{"a", 1}}, one)
}
