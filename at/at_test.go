package at_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangoma/wat/at"
)

func TestTokenize(t *testing.T) {
	patterns := []struct {
		name     string
		in       string
		tokens   []string
		consumed int
	}{
		{"empty", "", nil, 0},
		{"partial", "+CRING: VOI", nil, 0},
		{"bare crlf", "\r\n", nil, 0},
		{"single", "\r\nOK\r\n", []string{"OK"}, 6},
		{"two", "\r\n+CRING: VOICE\r\n\r\nOK\r\n", []string{"+CRING: VOICE", "OK"}, 23},
		{"partial tail", "OK\r\n+CLIP: \"+1416", []string{"OK"}, 4},
		{"bare cr stripped", "NO\rCARRIER\n", []string{"NOCARRIER"}, 11},
		{"lf only", "OK\n", []string{"OK"}, 3},
		{"trailing cr", "OK\r\n\r", []string{"OK"}, 5},
		{"trailing empty runs", "OK\r\n\r\n\r\n", []string{"OK"}, 8},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			tokens, ends, err := at.Tokenize([]byte(p.in))
			require.Nil(t, err)
			assert.Equal(t, p.tokens, tokens)
			if len(tokens) > 0 {
				assert.Equal(t, p.consumed, ends[len(ends)-1])
			}
		}
		t.Run(p.name, f)
	}
}

func TestTokenizeEnds(t *testing.T) {
	tokens, ends, err := at.Tokenize([]byte("\r\nA\r\n\r\nB\r\nC\r\ntail"))
	require.Nil(t, err)
	require.Equal(t, []string{"A", "B", "C"}, tokens)
	// each end covers through the token's own line ending and any
	// empty run that follows it.
	assert.Equal(t, []int{7, 10, 13}, ends)
}

func TestTokenizeBounds(t *testing.T) {
	_, _, err := at.Tokenize([]byte(strings.Repeat("x", at.MaxTokenSize+1) + "\r\n"))
	assert.Equal(t, at.ErrTokenOverflow, err)

	_, _, err = at.Tokenize([]byte(strings.Repeat("x\r\n", at.MaxTokens+1)))
	assert.Equal(t, at.ErrTooManyTokens, err)

	// exactly at the bounds is fine
	_, _, err = at.Tokenize([]byte(strings.Repeat("x", at.MaxTokenSize) + "\r\n"))
	assert.Nil(t, err)
	tokens, _, err := at.Tokenize([]byte(strings.Repeat("x\r\n", at.MaxTokens)))
	assert.Nil(t, err)
	assert.Len(t, tokens, at.MaxTokens)
}

func TestFinal(t *testing.T) {
	patterns := []struct {
		token   string
		success bool
		ok      bool
	}{
		{"OK", true, true},
		{"ok", true, true},
		{"CONNECT", true, true},
		{"CONNECT 9600", true, true},
		{"BUSY", false, true},
		{"ERROR", false, true},
		{"NO DIALTONE", false, true},
		{"NO ANSWER", false, true},
		{"NO CARRIER", false, true},
		{"no carrier", false, true},
		{"+CMS ERROR: 204", false, true},
		{"+CME ERROR: 42", false, true},
		{"+EXT ERROR: 1", false, true},
		{"+CRING: VOICE", false, false},
		{"", false, false},
		{"O", false, false},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			success, ok := at.Final(p.token)
			assert.Equal(t, p.ok, ok)
			assert.Equal(t, p.success, success)
		}
		t.Run(p.token, f)
	}
}

func TestMatchPrefix(t *testing.T) {
	assert.True(t, at.MatchPrefix("+CLIP: \"123\"", "+CLIP"))
	assert.True(t, at.MatchPrefix("+clip: \"123\"", "+CLIP"))
	assert.False(t, at.MatchPrefix("+CLI", "+CLIP"))
	assert.False(t, at.MatchPrefix("#CODECINFO: FR", "+CLIP"))
}

func TestInfoPrefix(t *testing.T) {
	assert.True(t, at.HasInfoPrefix("+CSQ: 15,99", "+CSQ"))
	assert.False(t, at.HasInfoPrefix("+CSQ 15,99", "+CSQ"))
	assert.Equal(t, "15,99", at.TrimInfoPrefix("+CSQ: 15,99", "+CSQ"))
	assert.Equal(t, "15,99", at.TrimInfoPrefix("+CSQ:15,99", "+CSQ"))
	assert.Equal(t, "no prefix", at.TrimInfoPrefix("no prefix", "+CSQ"))
}

func TestSplitEntry(t *testing.T) {
	patterns := []struct {
		name   string
		in     string
		fields []string
	}{
		{"clip", `"+14165551212",145,"",0`, []string{"+14165551212", "145", "", "0"}},
		{"clcc", `1,0,3,0,0,"5551212",129,""`, []string{"1", "0", "3", "0", "0", "5551212", "129", ""}},
		{"creg", `0,1`, []string{"0", "1"}},
		{"single", `1`, []string{"1"}},
		{"spaces", ` 1 , 2 `, []string{"1", "2"}},
		{"quoted comma", `"TELEPHONE, INC","+16473380980"`, []string{"TELEPHONE, INC", "+16473380980"}},
		{"empty", ``, []string{""}},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			assert.Equal(t, p.fields, at.SplitEntry(p.in))
		}
		t.Run(p.name, f)
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, `\r\nOK\r\n`, at.FormatBytes([]byte("\r\nOK\r\n")))
	assert.Equal(t, "ATD5551212;", at.FormatBytes([]byte("ATD5551212;")))
}
