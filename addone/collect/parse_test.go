package collect

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkscollector/rkscollector/internal/errs"
)

func TestExtractLineValue(t *testing.T) {
	raw := "rkscli: get acx\r\nConfiguration Update State: IDLE\r\n  State: RUN\r\nConnection status: Connected\r\n"

	assert.Equal(t, "RUN", ExtractLineValue(raw, "State:"))
	assert.Equal(t, "IDLE", ExtractLineValue(raw, "configuration update state:"))
	assert.Equal(t, "Connected", ExtractLineValue(raw, "Connection status:"))
	assert.Equal(t, "", ExtractLineValue(raw, "Server List:"))

	first, ok := linePatterns.Load("State:")
	require.True(t, ok)
	assert.Equal(t, "RUN", ExtractLineValue(raw, "State:"))
	again, _ := linePatterns.Load("State:")
	assert.Same(t, first, again)
}

func TestLinePattern(t *testing.T) {
	re := LinePattern("Server List:")
	assert.Equal(t, "10.0.0.1", FindString("Server List: 10.0.0.1\r\n", re, ""))
	assert.Equal(t, "", FindString("Server List:\r\nState: RUN", re, ""))
	assert.Equal(t, "none", FindString("no match", re, "none"))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 10))
	assert.Equal(t, "abc", Excerpt("abcdef", 3))
	// "é" 占两个字节，不能被截成半个
	assert.Equal(t, "a", Excerpt("aé", 2))
	assert.Len(t, Excerpt(strings.Repeat("x", 1000), 500), 500)
}

func TestParseError(t *testing.T) {
	err := NewParseError("identify", "serial number not found in output", "garbage", 500)
	assert.True(t, errors.Is(err, errs.ErrParse))
	assert.Equal(t, "serial number not found in output. Raw output: garbage", err.Error())

	var pe *ParseError
	assert.True(t, errors.As(error(err), &pe))
	assert.Equal(t, "identify", pe.Operation)

	assert.Equal(t, "no output received", NewParseError("x", "no output received", "", 0).Error())
}

func TestFindNumbers(t *testing.T) {
	intRe := regexp.MustCompile(`count:\s*(\d+)`)
	floatRe := regexp.MustCompile(`rate:\s*(\d+\.?\d*)`)

	assert.Equal(t, 20, FindInt("count: 20", intRe))
	assert.Equal(t, 0, FindInt("count: n/a", intRe))
	assert.InDelta(t, 5.5, FindFloat("rate: 5.5", floatRe), 1e-9)
	assert.Zero(t, FindFloat("", floatRe))
	assert.Equal(t, "fallback", FindString("", intRe, "fallback"))
}
