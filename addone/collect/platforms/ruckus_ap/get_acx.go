package ruckus_ap

import (
	"regexp"
	"strings"

	"github.com/rkscollector/rkscollector/addone/collect"
)

const OpManagementStatus = "management_status"

var (
	heartbeatRe  = regexp.MustCompile(`(?i)ACX heartbeat intervals:\s*(\d+)`)
	stateRe      = collect.LinePattern("State:")
	connectionRe = collect.LinePattern("Connection status:")
	serverListRe = collect.LinePattern("Server List:")
	configRe     = collect.LinePattern("Configuration Update State:")
	certRe       = collect.LinePattern("Controller Cert Validation Result:")
)

// ParseACX get acx
//
// 字段值按行首匹配，避免 "State:" 命中 "Configuration Update State:" 行。
func ParseACX(raw string) (ManagementStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return ManagementStatus{}, collect.NewParseError(OpManagementStatus, "no output received from get acx command", "", 0)
	}
	st := ManagementStatus{
		ServiceEnabled:           strings.Contains(raw, "ACX Service is enabled"),
		Managed:                  strings.Contains(raw, "AP is managed by ACX"),
		State:                    collect.FindString(raw, stateRe, ""),
		ConnectionStatus:         collect.FindString(raw, connectionRe, ""),
		ServerList:               collect.FindString(raw, serverListRe, ""),
		ConfigUpdateState:        collect.FindString(raw, configRe, ""),
		HeartbeatIntervalSeconds: collect.FindInt(raw, heartbeatRe),
		CertValidation:           collect.FindString(raw, certRe, ""),
	}
	if st.State == "" && st.ConnectionStatus == "" {
		return ManagementStatus{}, collect.NewParseError(OpManagementStatus, "unable to parse ACX status", raw, 300)
	}
	return st, nil
}
