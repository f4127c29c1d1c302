package logger

import (
	"strings"
)

// OutputLines 会话记录的头部和尾部行
type OutputLines struct {
	HeadLines []string `json:"head_lines"`
	TailLines []string `json:"tail_lines"`
}

// ParseOutputLines 提取头尾各 maxLines 行，空白行跳过
func ParseOutputLines(output string, maxLines int) OutputLines {
	if maxLines <= 0 {
		maxLines = 5
	}

	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.ReplaceAll(output, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, strings.TrimRight(line, " \t"))
	}
	if len(lines) == 0 {
		return OutputLines{}
	}

	head := lines
	if len(head) > maxLines {
		head = head[:maxLines]
	}
	tail := lines
	if len(tail) > maxLines {
		tail = tail[len(tail)-maxLines:]
	}
	return OutputLines{
		HeadLines: append([]string(nil), head...),
		TailLines: append([]string(nil), tail...),
	}
}

// FormatOutputLines 格式化为单行日志文本
func FormatOutputLines(lines OutputLines) string {
	var parts []string
	if len(lines.HeadLines) > 0 {
		parts = append(parts, "head-lines: ["+strings.Join(lines.HeadLines, " ⟩ ")+"]")
	}
	if len(lines.TailLines) > 0 && strings.Join(lines.TailLines, "\n") != strings.Join(lines.HeadLines, "\n") {
		parts = append(parts, "tail-lines: ["+strings.Join(lines.TailLines, " ⟩ ")+"]")
	}
	return strings.Join(parts, ", ")
}

// Redact 将 secrets 中的每一项替换为 ***
func Redact(text string, secrets ...string) string {
	for _, s := range secrets {
		if s == "" {
			continue
		}
		text = strings.ReplaceAll(text, s, "***")
	}
	return text
}

// DebugCommandOutput debug 级别记录命令回显的头尾行，secrets 在输出前被遮蔽
func DebugCommandOutput(command string, output string, maxLines int, secrets ...string) {
	if !IsDebug() {
		return
	}
	lines := ParseOutputLines(Redact(output, secrets...), maxLines)
	if len(lines.HeadLines) == 0 {
		return
	}
	label := command
	if label == "" {
		label = "<banner>"
	}
	Debugf("Command echo [%s]: %s", label, FormatOutputLines(lines))
}
