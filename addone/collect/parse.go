package collect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rkscollector/rkscollector/internal/errs"
)

// ParseError 最小证据校验失败，携带截断后的原始输出
type ParseError struct {
	Operation string
	Reason    string
	Excerpt   string
}

func (e *ParseError) Error() string {
	if e.Excerpt == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s. Raw output: %s", e.Reason, e.Excerpt)
}

func (e *ParseError) Unwrap() error { return errs.ErrParse }

// NewParseError limit<=0 时不附带原始输出
func NewParseError(operation, reason, raw string, limit int) *ParseError {
	pe := &ParseError{Operation: operation, Reason: reason}
	if limit > 0 {
		pe.Excerpt = Excerpt(raw, limit)
	}
	return pe
}

// Excerpt 取前 n 个字节，不截断多字节字符
func Excerpt(raw string, n int) string {
	if n <= 0 || len(raw) <= n {
		return raw
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return raw[:cut]
}

// LinePattern 匹配以 key 开头的行（忽略大小写与行首空白），第一个分组为 key 之后的文本
func LinePattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t\r]*` + regexp.QuoteMeta(key) + `[ \t]*([^\r\n]*)`)
}

var linePatterns sync.Map // key -> *regexp.Regexp

// ExtractLineValue 按 LinePattern(key) 取值，编译结果按 key 缓存
func ExtractLineValue(raw, key string) string {
	re, ok := linePatterns.Load(key)
	if !ok {
		re, _ = linePatterns.LoadOrStore(key, LinePattern(key))
	}
	return FindString(raw, re.(*regexp.Regexp), "")
}

// FindString 返回 re 第一个分组，未匹配返回 def
func FindString(raw string, re *regexp.Regexp, def string) string {
	m := re.FindStringSubmatch(raw)
	if len(m) < 2 {
		return def
	}
	if v := strings.TrimSpace(m[1]); v != "" {
		return v
	}
	return def
}

// FindInt 第一个分组按整数解析，缺失或非法返回 0
func FindInt(raw string, re *regexp.Regexp) int {
	m := re.FindStringSubmatch(raw)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// FindFloat 第一个分组按浮点解析，缺失或非法返回 0
func FindFloat(raw string, re *regexp.Regexp) float64 {
	m := re.FindStringSubmatch(raw)
	if len(m) < 2 {
		return 0
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return f
}
