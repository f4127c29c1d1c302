package ruckus_ap

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/rkscollector/rkscollector/addone/collect"
)

const OpChannelInfo = "channel_info"

const (
	StatusOK          = "OK"
	StatusOKNoChannel = "OK - channel information not available"
	StatusRadioOff    = "Radio Off (no WLAN is enabled)"
	StatusUnknown     = "Unknown status"

	Band24GHz   = "2.4GHz"
	Band5GHz    = "5GHz"
	Band6GHz    = "6GHz"
	BandUnknown = "Unknown"
)

var (
	channelRe   = regexp.MustCompile(`(?i)Channel[:\s]+(\d+)`)
	frequencyRe = regexp.MustCompile(`(?i)(\d{4})\s*MHz`)
	okRe        = regexp.MustCompile(`\bOK\b`)
)

// radioResult 单个射频的解析结果；present=false 表示设备上不存在该射频
type radioResult struct {
	radio      ChannelRadio
	present    bool
	recognised bool
}

func parseChannelRadio(radio, raw string) radioResult {
	if strings.Contains(raw, "Invalid radio interface") {
		return radioResult{present: false, recognised: true}
	}

	var r ChannelRadio
	recognised := true
	switch {
	case strings.Contains(raw, "Radio Off"):
		r = ChannelRadio{RadioEnabled: false, Status: StatusRadioOff}
	case channelRe.MatchString(raw):
		ch := collect.FindInt(raw, channelRe)
		r = ChannelRadio{RadioEnabled: true, Channel: &ch, Status: StatusOK}
	case okRe.MatchString(raw):
		r = ChannelRadio{RadioEnabled: true, Status: StatusOKNoChannel}
	default:
		r = ChannelRadio{RadioEnabled: false, Status: StatusUnknown}
		recognised = false
	}

	if freq := collect.FindInt(raw, frequencyRe); freq > 0 {
		band := BandForFrequency(freq)
		r.FrequencyMHz = &freq
		r.Band = &band
	} else if band, ok := BandForRadio(radio); ok {
		r.Band = &band
	}
	return radioResult{radio: r, present: true, recognised: recognised}
}

// BandForFrequency 按频率（MHz）划分频段
func BandForFrequency(mhz int) string {
	switch {
	case mhz >= 2400 && mhz <= 2500:
		return Band24GHz
	case mhz >= 5000 && mhz <= 5900:
		return Band5GHz
	case mhz >= 5925 && mhz <= 7125:
		return Band6GHz
	default:
		return BandUnknown
	}
}

// BandForRadio 无频率信息时按射频序号推断；第三个射频可能是 6GHz 也可能是第二个 5GHz，无法确定
func BandForRadio(radio string) (string, bool) {
	idx, ok := radioIndex(radio)
	if !ok {
		return "", false
	}
	switch idx {
	case 0:
		return Band24GHz, true
	case 1:
		return Band5GHz, true
	default:
		return "", false
	}
}

// ParseChannel get channel，至少一个射频的回显可识别
func ParseChannel(outputs []collect.CommandOutput) (ChannelInfo, error) {
	info := ChannelInfo{Radios: map[string]ChannelRadio{}}
	recognised := false
	for _, out := range outputs {
		res := parseChannelRadio(out.Radio, out.Raw)
		recognised = recognised || res.recognised
		if res.present {
			info.Radios[out.Radio] = res.radio
		}
	}
	if !recognised {
		raw := strings.Join(lo.Map(outputs, func(o collect.CommandOutput, _ int) string { return o.Raw }), "\n")
		return ChannelInfo{}, collect.NewParseError(OpChannelInfo, "unable to parse WiFi channel information", raw, 300)
	}
	return info, nil
}
