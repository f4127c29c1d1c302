package ruckus_ap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkscollector/rkscollector/addone/collect"
	"github.com/rkscollector/rkscollector/internal/errs"
)

const banner = "\r\nRuckus T670 Multimedia Hotzone Wireless AP: 952443000155\r\nPlease login: admin\r\npassword : \r\n" +
	"Copyright(C) 2024 Ruckus Wireless, Inc. All Rights Reserved.\r\n\r\n** Ruckus T670 Multimedia Hotzone Wireless AP: 952443000155\r\n\r\nrkscli: "

// session 模拟一次完整会话的记录
func session(command, body string) string {
	return banner + command + "\r\n" + body + "\r\nrkscli: exit\r\n"
}

func out(command, radio, body string) collect.CommandOutput {
	return collect.CommandOutput{Command: collect.Command{Line: command, Radio: radio}, Raw: session(command, body)}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestCommands(t *testing.T) {
	assert.Equal(t, []collect.Command{{Line: ""}}, BannerCommands())
	assert.Equal(t, []collect.Command{
		{Line: "get extant wifi0", Radio: "wifi0"},
		{Line: "get extantgain wifi0", Radio: "wifi0"},
		{Line: "get extant wifi1", Radio: "wifi1"},
		{Line: "get extantgain wifi1", Radio: "wifi1"},
	}, AntennaCommands(DefaultRadios))
	assert.Len(t, ChannelCommands(DefaultChannelRadios), 3)
	assert.Equal(t, []collect.Command{{Line: "get admctl wifi0", Radio: "wifi0"}}, AdmctlCommands([]string{"wifi0", "wifi0"}))
}

func TestParseBanner(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   SerialInfo
		errMsg string
	}{
		{
			name: "banner",
			raw:  banner + "exit\r\n",
			want: SerialInfo{Model: "T670 Multimedia Hotzone Wireless", Serial: "952443000155"},
		},
		{
			name: "fallback serial",
			raw:  "Please login: admin\r\nSerial: 123456789012345\r\n",
			want: SerialInfo{Model: "Unknown", Serial: "123456789012345"},
		},
		{
			name:   "no serial",
			raw:    "Please login: \r\nrkscli: ",
			errMsg: "serial number not found in output",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBanner(tt.raw)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errs.ErrParse))
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBannerExcerptBounded(t *testing.T) {
	raw := make([]byte, 2000)
	for i := range raw {
		raw[i] = 'x'
	}
	_, err := ParseBanner(string(raw))
	var pe *collect.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Len(t, pe.Excerpt, 500)
}

func TestParseACX(t *testing.T) {
	body := "ACX Service is enabled.\r\nAP is managed by ACX.\r\nState: RUN\r\nServer List: ap.ruckus.cloud\r\n" +
		"Connection status: Connected\r\nConfiguration Update State: IDLE\r\nACX heartbeat intervals: 30 seconds\r\n" +
		"Controller Cert Validation Result: Success\r\nOK"
	got, err := ParseACX(session("get acx", body))
	require.NoError(t, err)
	assert.Equal(t, ManagementStatus{
		ServiceEnabled:           true,
		Managed:                  true,
		State:                    "RUN",
		ConnectionStatus:         "Connected",
		ServerList:               "ap.ruckus.cloud",
		ConfigUpdateState:        "IDLE",
		HeartbeatIntervalSeconds: 30,
		CertValidation:           "Success",
	}, got)

	again, err := ParseACX(session("get acx", body))
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestParseACXPartialAndFailures(t *testing.T) {
	got, err := ParseACX(session("get acx", "ACX Service is disabled.\r\nConnection status: Disconnected\r\nOK"))
	require.NoError(t, err)
	assert.False(t, got.ServiceEnabled)
	assert.False(t, got.Managed)
	assert.Empty(t, got.State)
	assert.Equal(t, "Disconnected", got.ConnectionStatus)
	assert.Zero(t, got.HeartbeatIntervalSeconds)

	_, err = ParseACX("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrParse))
	assert.Contains(t, err.Error(), "no output received")

	// 只有 "Configuration Update State:" 不算 state
	_, err = ParseACX(session("get acx", "Configuration Update State: IDLE\r\nOK"))
	require.Error(t, err)
	var pe *collect.ParseError
	require.True(t, errors.As(err, &pe))
	assert.LessOrEqual(t, len(pe.Excerpt), 300)
}

func TestParseAntenna(t *testing.T) {
	outputs := []collect.CommandOutput{
		out("get extant wifi0", "wifi0", "External Antenna Mode: Disabled\r\nOK"),
		out("get extantgain wifi0", "wifi0", "External Antenna Gain: 3 dBi\r\nOK"),
		out("get extant wifi1", "wifi1", "error: not supported\r\nOK"),
		out("get extantgain wifi1", "wifi1", "External Antenna Gain: 5 dBi\r\nOK"),
	}
	got, err := ParseAntenna(outputs)
	require.NoError(t, err)
	assert.Equal(t, AntennaInfo{Radios: map[string]AntennaRadio{
		"wifi0": {Mode: "Disabled", Gain: "3 dBi"},
		"wifi1": {Mode: "Unknown", Gain: "5 dBi"},
	}}, got)

	_, err = ParseAntenna([]collect.CommandOutput{
		out("get extant wifi0", "wifi0", "OK"),
		out("get extant wifi1", "wifi1", "OK"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrParse))
}

func TestParseAdmctl(t *testing.T) {
	enabled := "Client Admission Control: Enabled\nRadio Load threshold: 75 %\nClient Count threshold: 20 clients\nClient throughput threshold: 5.5 Mbps"
	disabled := "Client Admission Control: Disabled\r\nOK"

	got, err := ParseAdmctl([]collect.CommandOutput{
		out("get admctl wifi0", "wifi0", enabled),
		out("get admctl wifi1", "wifi1", disabled),
	})
	require.NoError(t, err)
	assert.Equal(t, AdmissionControlRadio{
		Enabled:                       true,
		RadioLoadThresholdPercent:     75,
		ClientCountThreshold:          20,
		ClientThroughputThresholdMbps: 5.5,
	}, got.Radios["wifi0"])
	assert.Equal(t, AdmissionControlRadio{}, got.Radios["wifi1"])

	_, err = ParseAdmctl([]collect.CommandOutput{
		out("get admctl wifi0", "wifi0", enabled),
		out("get admctl wifi1", "wifi1", "command not found"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrParse))
	assert.Contains(t, err.Error(), "wifi1")
}

func TestParseChannel(t *testing.T) {
	tests := []struct {
		name    string
		outputs []collect.CommandOutput
		want    map[string]ChannelRadio
	}{
		{
			name:    "channel with frequency",
			outputs: []collect.CommandOutput{out("get channel wifi1", "wifi1", "Channel: 44 (5220 Mhz)\r\nOK")},
			want: map[string]ChannelRadio{
				"wifi1": {RadioEnabled: true, Channel: intPtr(44), Status: StatusOK, Band: strPtr(Band5GHz), FrequencyMHz: intPtr(5220)},
			},
		},
		{
			name: "radio off and invalid interface",
			outputs: []collect.CommandOutput{
				out("get channel wifi0", "wifi0", "Channel: 6\r\nOK"),
				out("get channel wifi1", "wifi1", "Radio Off (no WLAN is enabled)\r\nOK"),
				out("get channel wifi2", "wifi2", "Invalid radio interface name\r\n"),
			},
			want: map[string]ChannelRadio{
				"wifi0": {RadioEnabled: true, Channel: intPtr(6), Status: StatusOK, Band: strPtr(Band24GHz)},
				"wifi1": {RadioEnabled: false, Status: StatusRadioOff, Band: strPtr(Band5GHz)},
			},
		},
		{
			name: "ok without channel and third radio",
			outputs: []collect.CommandOutput{
				out("get channel wifi2", "wifi2", "OK"),
				out("get channel wifi0", "wifi0", "Channel: 1 (2412 MHz)\r\nOK"),
			},
			want: map[string]ChannelRadio{
				"wifi0": {RadioEnabled: true, Channel: intPtr(1), Status: StatusOK, Band: strPtr(Band24GHz), FrequencyMHz: intPtr(2412)},
				"wifi2": {RadioEnabled: true, Status: StatusOKNoChannel},
			},
		},
		{
			name: "6GHz frequency",
			outputs: []collect.CommandOutput{
				out("get channel wifi2", "wifi2", "Channel: 37 (6135 MHz)\r\nOK"),
				out("get channel wifi0", "wifi0", "something odd"),
			},
			want: map[string]ChannelRadio{
				"wifi2": {RadioEnabled: true, Channel: intPtr(37), Status: StatusOK, Band: strPtr(Band6GHz), FrequencyMHz: intPtr(6135)},
				"wifi0": {RadioEnabled: false, Status: StatusUnknown, Band: strPtr(Band24GHz)},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChannel(tt.outputs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Radios)
		})
	}
}

func TestParseChannelNoMarkers(t *testing.T) {
	_, err := ParseChannel([]collect.CommandOutput{
		{Command: collect.Command{Line: "get channel wifi0", Radio: "wifi0"}, Raw: "garbage"},
		{Command: collect.Command{Line: "get channel wifi1", Radio: "wifi1"}, Raw: "more garbage"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrParse))
}

func TestBandForFrequency(t *testing.T) {
	assert.Equal(t, Band24GHz, BandForFrequency(2437))
	assert.Equal(t, Band5GHz, BandForFrequency(5745))
	assert.Equal(t, Band6GHz, BandForFrequency(5955))
	assert.Equal(t, BandUnknown, BandForFrequency(5910))
	assert.Equal(t, BandUnknown, BandForFrequency(900))

	_, ok := BandForRadio("wifi2")
	assert.False(t, ok)
	_, ok = BandForRadio("radio")
	assert.False(t, ok)
}
