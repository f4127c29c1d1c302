package ruckus_ap

import (
	"regexp"
	"strings"

	"github.com/rkscollector/rkscollector/addone/collect"
)

const OpAdmissionControl = "admission_control"

var (
	radioLoadRe   = regexp.MustCompile(`Radio Load threshold:\s*(\d+)\s*%`)
	clientCountRe = regexp.MustCompile(`Client Count threshold:\s*(\d+)\s*clients`)
	throughputRe  = regexp.MustCompile(`Client throughput threshold:\s*(\d+\.?\d*)\s*Mbps`)
)

// parseAdmctlRadio 单个射频的 get admctl 回显
func parseAdmctlRadio(raw string) AdmissionControlRadio {
	return AdmissionControlRadio{
		Enabled:                       !strings.Contains(raw, "Client Admission Control: Disabled"),
		RadioLoadThresholdPercent:     collect.FindInt(raw, radioLoadRe),
		ClientCountThreshold:          collect.FindInt(raw, clientCountRe),
		ClientThroughputThresholdMbps: collect.FindFloat(raw, throughputRe),
	}
}

// ParseAdmctl 每个射频的回显都必须包含 Client Admission Control
func ParseAdmctl(outputs []collect.CommandOutput) (AdmissionControlInfo, error) {
	info := AdmissionControlInfo{Radios: map[string]AdmissionControlRadio{}}
	for _, out := range outputs {
		if !strings.Contains(out.Raw, "Client Admission Control") {
			return AdmissionControlInfo{}, collect.NewParseError(OpAdmissionControl,
				"unable to parse client admission control information for "+out.Radio, out.Raw, 300)
		}
		info.Radios[out.Radio] = parseAdmctlRadio(out.Raw)
	}
	if len(info.Radios) == 0 {
		return AdmissionControlInfo{}, collect.NewParseError(OpAdmissionControl, "no admission control output received", "", 0)
	}
	return info, nil
}
