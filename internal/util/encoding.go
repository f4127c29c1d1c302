package util

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// legacyEncodings 固件横幅与 CLI 回显中可能出现的非 UTF-8 编码，按优先级尝试
var legacyEncodings = []encoding.Encoding{
	charmap.Windows1252,
	charmap.ISO8859_1,
}

// EnsureUTF8 非法 UTF-8 时按常见单字节编码解码；全部失败则替换非法字节
func EnsureUTF8(s string) string {
	if s == "" || utf8.ValidString(s) {
		return s
	}
	b := []byte(s)
	for _, enc := range legacyEncodings {
		if out, ok := tryDecode(enc, b); ok {
			return out
		}
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

// StripBOM 移除 UTF-8 BOM
func StripBOM(s string) string {
	out, _, err := transform.String(unicode.BOMOverride(transform.Nop), s)
	if err != nil {
		return s
	}
	return out
}

func tryDecode(enc encoding.Encoding, b []byte) (string, bool) {
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(b), enc.NewDecoder()))
	if err != nil || !utf8.Valid(decoded) {
		return "", false
	}
	return string(decoded), true
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]|\x1b[()][A-Za-z0-9]|\x1b[=>]`)

// NormalizeOutput 会话记录进入解析前的清洗：UTF-8、ANSI 控制序列、NUL 与退格
func NormalizeOutput(s string) string {
	s = StripBOM(EnsureUTF8(s))
	s = applyBackspace(ansiRe.ReplaceAllString(s, ""))
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\r' || r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, s)
}

// applyBackspace 退格删除其前一个字符，不跨越行首
func applyBackspace(s string) string {
	if !strings.ContainsRune(s, '\b') {
		return s
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r != '\b' {
			out = append(out, r)
			continue
		}
		if n := len(out); n > 0 && out[n-1] != '\n' && out[n-1] != '\r' {
			out = out[:n-1]
		}
	}
	return string(out)
}
