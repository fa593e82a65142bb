package hardware

import (
	"os"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ListUSB enumerates serial ports that could be an Ultimate-NAG52 board.
// USB devices are listed first with their VID:PID in the description.
func ListUSB() []Info {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil
	}
	var out []Info
	for _, port := range ports {
		desc := port.Product
		if port.IsUSB {
			if desc == "" {
				desc = "USB serial"
			}
			desc += " (" + port.VID + ":" + port.PID + ")"
		}
		out = append(out, Info{Name: port.Name, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListSocketCAN lists can* network interfaces. Linux only; elsewhere the
// directory does not exist and the list is empty.
func ListSocketCAN() []Info {
	entries, err := os.ReadDir("/sys/class/net")
	if err != nil {
		return nil
	}
	var out []Info
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "can") || strings.HasPrefix(e.Name(), "vcan") {
			out = append(out, Info{Name: e.Name(), Description: "SocketCAN interface"})
		}
	}
	return out
}
