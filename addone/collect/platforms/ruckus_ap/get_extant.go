package ruckus_ap

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/rkscollector/rkscollector/addone/collect"
)

const (
	OpAntennaInfo = "antenna_info"
	unknown       = "Unknown"
)

var (
	extantModeRe = regexp.MustCompile(`(?i)External Antenna Mode:\s*(\w+)`)
	extantGainRe = regexp.MustCompile(`(?i)External Antenna Gain:\s*([^\r\n]+)`)
)

// ParseAntenna 合并每个射频的 get extant 与 get extantgain 回显
func ParseAntenna(outputs []collect.CommandOutput) (AntennaInfo, error) {
	info := AntennaInfo{Radios: map[string]AntennaRadio{}}
	for _, out := range outputs {
		if out.Radio == "" {
			continue
		}
		r, ok := info.Radios[out.Radio]
		if !ok {
			r = AntennaRadio{Mode: unknown, Gain: unknown}
		}
		if strings.HasPrefix(strings.TrimSpace(out.Line), "get extantgain") {
			r.Gain = collect.FindString(out.Raw, extantGainRe, unknown)
		} else {
			r.Mode = collect.FindString(out.Raw, extantModeRe, unknown)
		}
		info.Radios[out.Radio] = r
	}

	known := lo.SomeBy(lo.Values(info.Radios), func(r AntennaRadio) bool { return r.Mode != unknown })
	if !known {
		raw := strings.Join(lo.Map(outputs, func(o collect.CommandOutput, _ int) string { return o.Raw }), "\n")
		return AntennaInfo{}, collect.NewParseError(OpAntennaInfo, "unable to parse external antenna information", raw, 300)
	}
	return info, nil
}
