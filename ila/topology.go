package ila

import (
	"fmt"
	"strings"

	"github.com/amcolex/sump-surfer/bits"
)

// Signal describes one displayable slice of a pod's data word, either
// reported by an on-chip view ROM (not modeled here — view_rom_en pods
// report no signals from this driver) or synthesized by the no-ROM
// generator below.
type Signal struct {
	Name    string `json:"name"`
	BitLow  int    `json:"bit_low"`
	BitHigh int    `json:"bit_high"`
	Type    string `json:"signal_type"` // "analog", "vector", or "bit"
}

// Pod is one capture unit within a hub.
type Pod struct {
	Name string `json:"name"`

	HWRev uint8 `json:"hw_rev"`

	NoRomViewDwords bool `json:"norom_view_dwords"`
	NoRomViewWords  bool `json:"norom_view_words"`
	NoRomViewBytes  bool `json:"norom_view_bytes"`
	NoRomViewBits   bool `json:"norom_view_bits"`
	RleDisable      bool `json:"rle_disable"`
	ViewROMEn       bool `json:"view_rom_en"`

	DepthBits uint8  `json:"depth_bits"`
	DataBits  uint16 `json:"data_bits"`
	TSBits    uint8  `json:"ts_bits"`
	RAMDepth  uint32 `json:"ram_depth"`

	Triggerable uint32 `json:"triggerable"`

	ViewMode string   `json:"view_mode"`
	Signals  []Signal `json:"signals"`
}

// Hub is a clock-domain grouping of pods.
type Hub struct {
	Name     string `json:"name"`
	FreqMHz  uint16 `json:"freq_mhz"`
	PodCount uint8  `json:"pod_count"`
	Pods     []Pod  `json:"pods"`
}

// Topology is the full result of enumerating the device.
type Topology struct {
	Connected bool   `json:"connected"`
	HWID      string `json:"hw_id"`
	Revision  uint8  `json:"revision"`
	HubCount  uint8  `json:"hub_count"`
	IsArmed   bool   `json:"is_armed"`
	IsAwake   bool   `json:"is_awake"`
	Hubs      []Hub  `json:"hubs"`
}

// Enumerate discovers the device topology: HW_INFO, CAP_STATUS, and, if
// connected, every hub and its pods. A disconnected device (unexpected
// HW_INFO id) yields a Topology with an empty hub list rather than an
// error — enumeration is best-effort and always returns something useful.
func (d *Driver) Enumerate() Topology {
	hwInfo, _ := d.ReadRawRegister(regHWInfo)
	id := uint16((hwInfo >> 16) & 0xFFFF)

	topo := Topology{
		Connected: id == expectedHwID,
		HWID:      decodeHwID(id),
		HubCount:  uint8(bits.GetN(hwInfo, 8, 0xFF)),
		Revision:  uint8(bits.GetN(hwInfo, 0, 0xFF)),
		Hubs:      make([]Hub, 0),
	}

	if capStatus, ok := d.ReadRawRegister(regCapStatus); ok {
		topo.IsArmed = bits.Get(capStatus, capStatusArmedBit)
		topo.IsAwake = bits.Get(capStatus, capStatusAwakeBit)
	}

	if !topo.Connected {
		return topo
	}

	for hub := uint8(0); hub < topo.HubCount; hub++ {
		topo.Hubs = append(topo.Hubs, d.enumerateHub(hub))
	}

	return topo
}

func (d *Driver) enumerateHub(hub uint8) Hub {
	h := Hub{Name: d.ReadHubName(hub), Pods: make([]Pod, 0)}

	if freqReg, ok := d.execCmd(cmdRdHubFreq, uint32(hub)<<16, 0); ok {
		h.FreqMHz = uint16(bits.GetN(freqReg, 20, 0xFFF))
	}

	podCountReg, _ := d.execCmd(cmdRdPodCount, uint32(hub)<<16, 0)
	h.PodCount = uint8(bits.GetN(podCountReg, 0, 0xFF))

	for pod := uint8(0); pod < h.PodCount; pod++ {
		h.Pods = append(h.Pods, d.enumeratePod(hub, pod))
	}

	return h
}

func (d *Driver) enumeratePod(hub, pod uint8) Pod {
	p := Pod{Name: d.ReadPodName(hub, pod)}

	if hwCfg, ok := d.ReadPodReg(hub, pod, podRegHwCfg); ok {
		p.HWRev = uint8(bits.GetN(hwCfg, 24, 0xFF))
		p.NoRomViewDwords = bits.Get(hwCfg, 11)
		p.NoRomViewWords = bits.Get(hwCfg, 10)
		p.NoRomViewBytes = bits.Get(hwCfg, 9)
		p.NoRomViewBits = bits.Get(hwCfg, 8)
		p.RleDisable = bits.Get(hwCfg, 2)
		p.ViewROMEn = bits.Get(hwCfg, 1)
	}

	if ramCfg, ok := d.ReadPodReg(hub, pod, podRegRamCfg); ok {
		p.DepthBits = uint8(bits.GetN(ramCfg, 0, 0xFF))
		p.DataBits = uint16(bits.GetN(ramCfg, 8, 0xFFFF))
		p.TSBits = uint8(bits.GetN(ramCfg, 24, 0xFF))
		p.RAMDepth = uint32(1) << p.DepthBits
	}

	if triggerable, ok := d.ReadPodReg(hub, pod, podRegTrigAble); ok {
		p.Triggerable = triggerable
	}

	if p.ViewROMEn {
		p.ViewMode = "custom"
		p.Signals = make([]Signal, 0)
	} else {
		p.ViewMode, p.Signals = generateSignals(p.Name, p.DataBits, p.NoRomViewDwords, p.NoRomViewWords, p.NoRomViewBytes, p.NoRomViewBits, p.RleDisable)
		if p.Signals == nil {
			p.Signals = make([]Signal, 0)
		}
	}

	return p
}

// decodeHwID renders HW_INFO's 16-bit id field as two ASCII characters,
// falling back to '?' for any byte outside the printable ASCII range.
func decodeHwID(id uint16) string {
	asciiOrFallback := func(b byte) byte {
		if b >= 0x20 && b <= 0x7E {
			return b
		}
		return '?'
	}

	hi := asciiOrFallback(byte(id >> 8))
	lo := asciiOrFallback(byte(id))
	return string([]byte{hi, lo})
}

// generateSignals implements the no-ROM signal generator (used for every
// pod that does not report an on-chip view ROM). It first checks the ADC
// I/Q special case, then otherwise tiles data_bits into windows sized by
// the first set view flag, defaulting to "dwords".
func generateSignals(podName string, dataBits uint16, dwords, words, bytesFlag, bitsFlag, rleDisable bool) (string, []Signal) {
	name := strings.TrimSpace(podName)
	db := int(dataBits)

	if strings.Contains(name, "adc") && strings.Contains(name, "iq") && dataBits >= 25 {
		return "iq", []Signal{
			{Name: "adc_i", BitLow: 0, BitHigh: 11, Type: "analog"},
			{Name: "adc_q", BitLow: 12, BitHigh: 23, Type: "analog"},
			{Name: "adc_valid", BitLow: 24, BitHigh: 24, Type: "bit"},
		}
	}

	viewMode := "dwords"
	switch {
	case dwords:
		viewMode = "dwords"
	case words:
		viewMode = "words"
	case bytesFlag:
		viewMode = "bytes"
	case bitsFlag:
		viewMode = "bits"
	}

	signalType := "vector"
	if rleDisable {
		signalType = "analog"
	}

	switch viewMode {
	case "dwords":
		return viewMode, tileWindows(name, db, 32, "_d", signalType, true)
	case "words":
		return viewMode, tileWindows(name, db, 16, "_w", signalType, true)
	case "bytes":
		return viewMode, tileWindows(name, db, 8, "_b", "vector", false)
	default: // "bits"
		signals := make([]Signal, 0, db)
		for i := 0; i < db; i++ {
			signals = append(signals, Signal{
				Name:    fmt.Sprintf("%s[%d]", name, i),
				BitLow:  i,
				BitHigh: i,
				Type:    "bit",
			})
		}
		return viewMode, signals
	}
}

// tileWindows slices [0, dataBits) into fixed-size windows. When
// collapseSingle is true and the slicing produces exactly one window, the
// signal is named "{name}[{bit_high}:0]" instead of carrying an index
// suffix.
func tileWindows(name string, dataBits, windowSize int, suffix, sigType string, collapseSingle bool) []Signal {
	if dataBits <= 0 {
		return nil
	}

	numWindows := (dataBits + windowSize - 1) / windowSize
	signals := make([]Signal, 0, numWindows)

	for i := 0; i < numWindows; i++ {
		bitLow := windowSize * i
		bitHigh := windowSize*(i+1) - 1
		if bitHigh > dataBits-1 {
			bitHigh = dataBits - 1
		}

		var sigName string
		if collapseSingle && numWindows == 1 {
			sigName = fmt.Sprintf("%s[%d:0]", name, bitHigh)
		} else {
			sigName = fmt.Sprintf("%s%s%d[%d:%d]", name, suffix, i, bitHigh, bitLow)
		}

		signals = append(signals, Signal{Name: sigName, BitLow: bitLow, BitHigh: bitHigh, Type: sigType})
	}

	return signals
}
