package sds

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatAndRoom(t *testing.T) {
	s := New("foo")
	require.Equal(t, 3, Len(s))
	Cat(s, "bar")
	require.Equal(t, "foobar", s.String())
	require.Equal(t, 6, Len(s))
	// 6 bytes needed, doubled.
	require.Equal(t, 12, AllocSize(s))
	require.Equal(t, 6, Avail(s))

	CatLen(s, []byte{0, 'x'})
	require.Equal(t, []byte("foobar\x00x"), s.Bytes())

	big := Empty()
	MakeRoomFor(big, MaxPreAlloc)
	require.Equal(t, 2*MaxPreAlloc, AllocSize(big))
	require.Zero(t, Len(big))

	huge := Empty()
	MakeRoomFor(huge, MaxPreAlloc+1)
	require.Equal(t, 2*MaxPreAlloc+1, AllocSize(huge))
}

func TestDupAndFree(t *testing.T) {
	s := New("hello")
	d := Dup(s)
	Cat(d, "!")
	require.Equal(t, "hello", s.String())
	require.Equal(t, "hello!", d.String())
	Free(d)
	Free(nil)

	require.Equal(t, "-9223372036854775808", FromLongLong(-1<<63).String())
	require.Equal(t, "42", FromLongLong(42).String())
}

func TestRange(t *testing.T) {
	for _, tc := range []struct {
		start, end int
		want       string
	}{
		{1, 1, "i"},
		{1, -1, "iao"},
		{-2, -1, "ao"},
		{2, 1, ""},
		{1, 100, "iao"},
		{100, 100, ""},
		{0, 0, "c"},
		{-100, 1, "ci"},
	} {
		s := New("ciao")
		Range(s, tc.start, tc.end)
		require.Equal(t, tc.want, s.String(), "range(%d, %d)", tc.start, tc.end)
	}
}

func TestTrimLowerCmp(t *testing.T) {
	s := New("xxciaoyyy")
	Trim(s, "xy")
	require.Equal(t, "ciao", s.String())

	s = New("xyx")
	Trim(s, "xy")
	require.Zero(t, Len(s))

	s = New("HeLLo")
	ToLower(s)
	require.Equal(t, "hello", s.String())

	require.Positive(t, Cmp(New("foo"), New("foa")))
	require.Zero(t, Cmp(New("bar"), New("bar")))
	require.Negative(t, Cmp(New("aar"), New("bar")))
	require.Positive(t, Cmp(New("bara"), New("bar")))

	Clear(s)
	require.Zero(t, Len(s))
	require.Positive(t, Avail(s))
}

func TestSplitLen(t *testing.T) {
	var got []string
	for _, tok := range SplitLen([]byte("a--b----c"), []byte("--")) {
		got = append(got, tok.String())
	}
	require.Equal(t, []string{"a", "b", "", "c"}, got)
	require.Nil(t, SplitLen(nil, []byte(",")))
	require.Nil(t, SplitLen([]byte("abc"), nil))
}

func TestSplitArgs(t *testing.T) {
	for _, tc := range []struct {
		line string
		want []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"set key value", []string{"set", "key", "value"}},
		{"  hz   10\t\n", []string{"hz", "10"}},
		{`set "a b" 'c d'`, []string{"set", "a b", "c d"}},
		{`"\x41\x62\n\t" '\'' ""`, []string{"Ab\n\t", "'", ""}},
		{`"\z\"" x`, []string{`z"`, "x"}},
		{"\"\\xZZ\"", []string{"xZZ"}},
	} {
		argv, err := SplitArgs(tc.line)
		require.NoError(t, err, tc.line)
		got := []string{}
		for _, a := range argv {
			got = append(got, a.String())
		}
		require.Equal(t, tc.want, got, tc.line)
	}

	for _, line := range []string{`"foo`, `'foo`, `"foo"bar`, `'foo'bar`} {
		_, err := SplitArgs(line)
		require.ErrorIs(t, err, ErrUnbalancedQuotes, line)
	}

	argv, err := SplitArgs("x " + strings.Repeat("v", 1000))
	require.NoError(t, err)
	require.Len(t, argv, 2)
	require.Equal(t, 1000, Len(argv[1]))
}

func TestCatRepr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", `""`},
		{"hello world", `"hello world"`},
		{"a\"b\\c", `"a\"b\\c"`},
		{"\r\n\t\a\b", `"\r\n\t\a\b"`},
		{"\x00\xff", `"\x00\xff"`},
	}
	for _, tt := range tests {
		s := New("> ")
		CatRepr(s, []byte(tt.in))
		require.Equal(t, "> "+tt.want, s.String())

		argv, err := SplitArgs(s.String())
		require.NoError(t, err)
		require.Len(t, argv, 2)
		require.Equal(t, tt.in, argv[1].String())
		Free(s)
	}
}
