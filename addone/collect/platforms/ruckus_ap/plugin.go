// Package ruckus_ap 解析 Ruckus AP rkscli 的命令回显
package ruckus_ap

import (
	"regexp"
	"strconv"

	"github.com/samber/lo"

	"github.com/rkscollector/rkscollector/addone/collect"
)

const Platform = "ruckus_ap"

// DefaultRadios 天线与准入控制默认查询的射频
var DefaultRadios = []string{"wifi0", "wifi1"}

// DefaultChannelRadios 信道查询默认覆盖第三个射频，设备不支持时会被剔除
var DefaultChannelRadios = []string{"wifi0", "wifi1", "wifi2"}

// perRadio 为每个射频生成一组命令
func perRadio(radios []string, formats ...string) []collect.Command {
	return lo.FlatMap(lo.Uniq(radios), func(r string, _ int) []collect.Command {
		return lo.Map(formats, func(f string, _ int) collect.Command {
			return collect.Command{Line: f + " " + r, Radio: r}
		})
	})
}

// BannerCommands 空命令，只取登录横幅
func BannerCommands() []collect.Command { return []collect.Command{{Line: ""}} }

func ACXCommands() []collect.Command { return []collect.Command{{Line: "get acx"}} }

func AntennaCommands(radios []string) []collect.Command {
	return perRadio(radios, "get extant", "get extantgain")
}

func AdmctlCommands(radios []string) []collect.Command {
	return perRadio(radios, "get admctl")
}

func ChannelCommands(radios []string) []collect.Command {
	return perRadio(radios, "get channel")
}

var radioIndexRe = regexp.MustCompile(`(\d+)$`)

// radioIndex wifiN -> N
func radioIndex(radio string) (int, bool) {
	m := radioIndexRe.FindStringSubmatch(radio)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
