package ruckus_ap

// SerialInfo 登录横幅中的型号与序列号
type SerialInfo struct {
	Model  string `json:"model"`
	Serial string `json:"serial"`
}

// ManagementStatus get acx
type ManagementStatus struct {
	ServiceEnabled           bool   `json:"serviceEnabled"`
	Managed                  bool   `json:"managedByACX"`
	State                    string `json:"state"`
	ConnectionStatus         string `json:"connectionStatus"`
	ServerList               string `json:"serverList"`
	ConfigUpdateState        string `json:"configUpdateState"`
	HeartbeatIntervalSeconds int    `json:"heartbeatInterval"`
	CertValidation           string `json:"certValidation"`
}

type AntennaRadio struct {
	Mode string `json:"mode"`
	Gain string `json:"gain"`
}

// AntennaInfo get extant / get extantgain
type AntennaInfo struct {
	Radios map[string]AntennaRadio `json:"radios"`
}

type AdmissionControlRadio struct {
	Enabled                       bool    `json:"enabled"`
	RadioLoadThresholdPercent     int     `json:"radioLoadThreshold"`
	ClientCountThreshold          int     `json:"clientCountThreshold"`
	ClientThroughputThresholdMbps float64 `json:"clientThroughputThreshold"`
}

// AdmissionControlInfo get admctl
type AdmissionControlInfo struct {
	Radios map[string]AdmissionControlRadio `json:"radios"`
}

type ChannelRadio struct {
	RadioEnabled bool    `json:"radioEnabled"`
	Channel      *int    `json:"channel"`
	Status       string  `json:"status"`
	Band         *string `json:"band,omitempty"`
	FrequencyMHz *int    `json:"frequencyMHz,omitempty"`
}

// ChannelInfo get channel；设备不存在的射频不出现在 Radios 中
type ChannelInfo struct {
	Radios map[string]ChannelRadio `json:"radios"`
}
