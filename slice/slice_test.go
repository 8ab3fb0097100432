package slice

import "testing"

func TestMap(t *testing.T) {
	got := Map([]int{1, 2, 3}, func(i int) string { return string(rune('a' + i - 1)) })
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("[a b c] expected, got %v", got)
	}

	empty := Map[int, int](nil, func(i int) int { return i })
	if empty == nil || len(empty) != 0 {
		t.Errorf("empty non-nil slice expected, got %#v", empty)
	}
}
