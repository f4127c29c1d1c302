package service

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/rkscollector/rkscollector/addone/collect"
	"github.com/rkscollector/rkscollector/addone/collect/platforms/ruckus_ap"
	"github.com/rkscollector/rkscollector/internal/errs"
)

// Operation 诊断操作标识，集合在编译期固定
type Operation int

const (
	OpIdentify Operation = iota
	OpManagementStatus
	OpAntennaInfo
	OpAdmissionControl
	OpChannelInfo
)

// RadioSet 按射频下发命令时使用的射频列表
type RadioSet struct {
	Default []string
	Channel []string
}

// DefaultRadioSet wifi0/wifi1，信道查询额外包含 wifi2
func DefaultRadioSet() RadioSet {
	return RadioSet{
		Default: ruckus_ap.DefaultRadios,
		Channel: ruckus_ap.DefaultChannelRadios,
	}
}

// OperationSpec 操作定义：设备命令与对应解析器
type OperationSpec struct {
	Op          Operation
	Name        string
	LegacyName  string
	Description string
	Commands    func(radios RadioSet) []collect.Command
	Parse       func(outputs []collect.CommandOutput) (any, error)
}

var operations = [...]OperationSpec{
	OpIdentify: {
		Op:          OpIdentify,
		Name:        ruckus_ap.OpIdentify,
		LegacyName:  "getSerialNumber",
		Description: "Get the access point serial number and model from the login banner",
		Commands:    func(RadioSet) []collect.Command { return ruckus_ap.BannerCommands() },
		Parse: func(outputs []collect.CommandOutput) (any, error) {
			raw, err := single(ruckus_ap.OpIdentify, outputs)
			if err != nil {
				return nil, err
			}
			return ruckus_ap.ParseBanner(raw)
		},
	},
	OpManagementStatus: {
		Op:          OpManagementStatus,
		Name:        ruckus_ap.OpManagementStatus,
		LegacyName:  "getACXStatus",
		Description: "Get the cloud management (ACX) service status and connection details",
		Commands:    func(RadioSet) []collect.Command { return ruckus_ap.ACXCommands() },
		Parse: func(outputs []collect.CommandOutput) (any, error) {
			raw, err := single(ruckus_ap.OpManagementStatus, outputs)
			if err != nil {
				return nil, err
			}
			return ruckus_ap.ParseACX(raw)
		},
	},
	OpAntennaInfo: {
		Op:          OpAntennaInfo,
		Name:        ruckus_ap.OpAntennaInfo,
		LegacyName:  "getExternalAntennaInfo",
		Description: "Get external antenna mode and gain for each radio",
		Commands:    func(r RadioSet) []collect.Command { return ruckus_ap.AntennaCommands(r.Default) },
		Parse: func(outputs []collect.CommandOutput) (any, error) {
			return ruckus_ap.ParseAntenna(outputs)
		},
	},
	OpAdmissionControl: {
		Op:          OpAdmissionControl,
		Name:        ruckus_ap.OpAdmissionControl,
		LegacyName:  "getClientAdmissionControl",
		Description: "Get client admission control thresholds for each radio",
		Commands:    func(r RadioSet) []collect.Command { return ruckus_ap.AdmctlCommands(r.Default) },
		Parse: func(outputs []collect.CommandOutput) (any, error) {
			return ruckus_ap.ParseAdmctl(outputs)
		},
	},
	OpChannelInfo: {
		Op:          OpChannelInfo,
		Name:        ruckus_ap.OpChannelInfo,
		LegacyName:  "getWiFiChannelInfo",
		Description: "Get the current channel, status and band of each radio",
		Commands:    func(r RadioSet) []collect.Command { return ruckus_ap.ChannelCommands(r.Channel) },
		Parse: func(outputs []collect.CommandOutput) (any, error) {
			return ruckus_ap.ParseChannel(outputs)
		},
	},
}

func single(op string, outputs []collect.CommandOutput) (string, error) {
	if len(outputs) == 0 {
		return "", collect.NewParseError(op, "no output received", "", 0)
	}
	return outputs[0].Raw, nil
}

func (o Operation) valid() bool { return o >= 0 && int(o) < len(operations) }

func (o Operation) String() string {
	if !o.valid() {
		return fmt.Sprintf("Operation(%d)", int(o))
	}
	return operations[o].Name
}

// Spec 操作定义
func (o Operation) Spec() OperationSpec {
	return operations[o]
}

// Operations 全部操作，按定义顺序
func Operations() []OperationSpec {
	return append([]OperationSpec(nil), operations[:]...)
}

// ParseOperation 按名称解析操作，兼容旧工具名，大小写不敏感
func ParseOperation(name string) (Operation, error) {
	key := strings.TrimSpace(name)
	spec, ok := lo.Find(operations[:], func(s OperationSpec) bool {
		return strings.EqualFold(s.Name, key) || strings.EqualFold(s.LegacyName, key)
	})
	if !ok {
		return 0, fmt.Errorf("%w: %q", errs.ErrUnknownOperation, name)
	}
	return spec.Op, nil
}
