package ssh

import "strings"

// Markers 设备固件输出的三个提示符，是会话的线上契约
type Markers struct {
	Login    string `mapstructure:"login" json:"login"`
	Password string `mapstructure:"password" json:"password"`
	Prompt   string `mapstructure:"prompt" json:"prompt"`
	// Rejected 密码错误时设备的提示
	Rejected string `mapstructure:"rejected" json:"rejected"`
}

// DefaultMarkers Ruckus AP 的提示符
func DefaultMarkers() Markers {
	return Markers{
		Login:    "login:",
		Password: "password",
		Prompt:   "rkscli:",
		Rejected: "Login incorrect",
	}
}

// orDefault 空字段回退到默认值
func (m Markers) orDefault() Markers {
	d := DefaultMarkers()
	if m.Login == "" {
		m.Login = d.Login
	}
	if m.Password == "" {
		m.Password = d.Password
	}
	if m.Prompt == "" {
		m.Prompt = d.Prompt
	}
	if m.Rejected == "" {
		m.Rejected = d.Rejected
	}
	return m
}

// MatchFrom 在 buf[from:] 中大小写不敏感地查找 marker，返回匹配结束位置
//
// 调用方传入累计缓冲区而非单次到达的数据块，拆分在两次读取之间的提示符也能匹配。
func MatchFrom(buf, marker string, from int) (int, bool) {
	if marker == "" || from < 0 || from > len(buf) {
		return 0, false
	}
	idx := strings.Index(foldASCII(buf[from:]), foldASCII(marker))
	if idx < 0 {
		return 0, false
	}
	return from + idx + len(marker), true
}

// foldASCII 仅转换 ASCII 大写字母，保证字节偏移不变
func foldASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
