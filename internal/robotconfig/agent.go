package robotconfig

import (
	"github.com/pkg/errors"

	"github.com/mattjperez/micro-rdk/internal/attr"
)

// NetworkSetting is one stored WiFi network.
type NetworkSetting struct {
	SSID     string `json:"ssid" yaml:"ssid"`
	Password string `json:"password" yaml:"password"`
	Priority int    `json:"priority" yaml:"priority"`
}

// DeviceAgentConfig is the raw device/agent configuration.
type DeviceAgentConfig struct {
	AdditionalFeatures attr.Attributes `json:"additional_features" yaml:"additional_features"`
}

type AgentConfig struct {
	NetworkSettings []NetworkSetting
}

// AgentConfigFromDevice reads additional_features.networks. A device config
// without networks yields an empty list.
func AgentConfigFromDevice(d *DeviceAgentConfig) (AgentConfig, error) {
	if d == nil {
		return AgentConfig{}, errors.New("nil device agent config")
	}
	networks, err := d.AdditionalFeatures.StructList("networks")
	if attr.IsKeyNotFound(err) {
		return AgentConfig{}, nil
	}
	if err != nil {
		return AgentConfig{}, errors.Wrap(err, "cannot read networks")
	}

	settings := make([]NetworkSetting, 0, len(networks))
	for _, n := range networks {
		ssid, err := n.String("ssid")
		if err != nil {
			return AgentConfig{}, errors.Wrap(err, "cannot read network ssid")
		}
		password, err := n.String("password")
		if err != nil {
			return AgentConfig{}, errors.Wrapf(err, "cannot read password for network %q", ssid)
		}
		priority := 0
		if n.Has("priority") {
			if priority, err = n.Int("priority"); err != nil {
				return AgentConfig{}, errors.Wrapf(err, "cannot read priority for network %q", ssid)
			}
		}
		settings = append(settings, NetworkSetting{SSID: ssid, Password: password, Priority: priority})
	}
	return AgentConfig{NetworkSettings: settings}, nil
}

// SameNetworkSettings compares by membership: equal length and every declared
// entry present in stored. Order does not matter.
func SameNetworkSettings(declared, stored []NetworkSetting) bool {
	if len(declared) != len(stored) {
		return false
	}
	set := make(map[NetworkSetting]struct{}, len(stored))
	for _, s := range stored {
		set[s] = struct{}{}
	}
	for _, d := range declared {
		if _, ok := set[d]; !ok {
			return false
		}
	}
	return true
}
