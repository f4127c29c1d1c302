package ruckus_ap

import (
	"regexp"
	"strings"

	"github.com/rkscollector/rkscollector/addone/collect"
)

const OpIdentify = "identify"

var (
	// Ruckus T670 Multimedia Hotzone Wireless AP: 952443000155
	bannerRe   = regexp.MustCompile(`Ruckus (.+) AP:\s*(\d+)`)
	longNumRe  = regexp.MustCompile(`:\s*(\d{12,})`)
	bannerSize = 500
)

// ParseBanner 从登录横幅中提取型号与序列号
func ParseBanner(raw string) (SerialInfo, error) {
	if m := bannerRe.FindStringSubmatch(raw); m != nil {
		return SerialInfo{Model: strings.TrimSpace(m[1]), Serial: m[2]}, nil
	}
	if m := longNumRe.FindStringSubmatch(raw); m != nil {
		return SerialInfo{Model: "Unknown", Serial: m[1]}, nil
	}
	return SerialInfo{}, collect.NewParseError(OpIdentify, "serial number not found in output", raw, bannerSize)
}
