// Package ila implements the SUMP3 Integrated Logic Analyzer command/status
// register protocol: a mutex-serialized command engine built over a 256-byte
// mmap window, pod-register indirection through a 3-field address bus, and
// the dynamic hub/pod topology that protocol exposes.
package ila

import (
	"log"
	"runtime"
	"strings"
	"sync"

	"github.com/amcolex/sump-surfer/bits"
)

// regWindow is the minimal surface Driver needs from its backing memory
// window. mmio.Window satisfies it; tests substitute a simulated register
// file instead of real /dev/mem.
type regWindow interface {
	Read32(offset int) (uint32, bool)
	Write32(offset int, value uint32) bool
}

// Driver owns one ILA register window and serializes every command issued
// against it. No device state is cached: every exported operation re-reads
// the hardware.
type Driver struct {
	mu   sync.Mutex
	mem  regWindow
	base uintptr

	// Logger receives command timeout/ERR-bit failures. A nil Logger
	// falls back to log.Default(), the same way http.Server.ErrorLog
	// does.
	Logger *log.Logger
}

// New wraps mem (expected to cover exactly the 256-byte ILA register block)
// as a command-protocol driver. base is retained for reporting only.
func New(mem regWindow, base uintptr) *Driver {
	return &Driver{mem: mem, base: base}
}

// Base returns the physical base address the driver was created with.
func (d *Driver) Base() uintptr {
	return d.base
}

func (d *Driver) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}

// execCmd performs one command: write CMD/ADDR/WDATA, set CTRL=START, then
// poll STATUS until DONE is set (reading RDATA on success) or the command
// times out after maxPolls iterations. The whole sequence runs under the
// driver's mutex so commands from concurrent callers never interleave.
func (d *Driver) execCmd(cmd, addr, wdata uint32) (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mem.Write32(regCMD, cmd)
	d.mem.Write32(regADDR, addr)
	d.mem.Write32(regWDATA, wdata)
	d.mem.Write32(regCTRL, ctrlStart)

	for i := 0; i < maxPolls; i++ {
		status, ok := d.mem.Read32(regSTATUS)
		if !ok {
			return 0, false
		}

		if !bits.Get(status, statusDoneBit) {
			if i%yieldEvery == yieldEvery-1 {
				runtime.Gosched()
			}
			continue
		}

		if bits.Get(status, statusErrBit) {
			d.logger().Printf("ila: command 0x%02X addr 0x%08X: ERR bit set in STATUS (0x%08X)", cmd, addr, status)
			return 0, false
		}

		return d.mem.Read32(regRDATA)
	}

	d.logger().Printf("ila: command 0x%02X addr 0x%08X: timed out after %d polls", cmd, addr, maxPolls)
	return 0, false
}

// ReadRawRegister reads offset directly out of the 256-byte window,
// bypassing the command protocol entirely. Used for HW_INFO, CAP_STATUS,
// and the diagnostic raw-register-read service operation.
func (d *Driver) ReadRawRegister(offset int) (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem.Read32(offset)
}

// Reset issues the RESET state command.
func (d *Driver) Reset() bool {
	_, ok := d.execCmd(cmdReset, 0, 0)
	return ok
}

// Initialize issues the INIT state command (RAM initialization).
func (d *Driver) Initialize() bool {
	_, ok := d.execCmd(cmdInit, 0, 0)
	return ok
}

// Arm issues the ARM state command.
func (d *Driver) Arm() bool {
	_, ok := d.execCmd(cmdArm, 0, 0)
	return ok
}

// ReadStatusWord issues RD_STATUS and returns the raw five-bit capture
// status word (see DecodeCaptureStatus).
func (d *Driver) ReadStatusWord() (uint32, bool) {
	return d.execCmd(cmdRdStatus, 0, 0)
}

// WriteTrigType issues WR_TRIG_TYPE with the given trigger type code.
func (d *Driver) WriteTrigType(code uint32) bool {
	_, ok := d.execCmd(cmdWrTrigType, 0, code)
	return ok
}

// WriteTrigDigField issues WR_TRIG_DIG_FIELD with the given bitmask.
func (d *Driver) WriteTrigDigField(bits uint32) bool {
	_, ok := d.execCmd(cmdWrTrigDigField, 0, bits)
	return ok
}

// WriteDigPostTrig issues WR_DIG_POST_TRIG with the given sample count.
func (d *Driver) WriteDigPostTrig(count uint32) bool {
	_, ok := d.execCmd(cmdWrDigPostTrig, 0, count)
	return ok
}

// podAddr composes the 3-field serial bus address used by every
// hub/pod-scoped command.
func podAddr(hub, pod, reg uint8) uint32 {
	return uint32(hub)<<16 | uint32(pod)<<8 | uint32(reg)
}

// ReadPodReg issues RD_POD_REG for the given hub/pod/register triple.
func (d *Driver) ReadPodReg(hub, pod, reg uint8) (uint32, bool) {
	return d.execCmd(cmdRdPodReg, podAddr(hub, pod, reg), 0)
}

// WritePodReg issues WR_POD_REG for the given hub/pod/register triple.
func (d *Driver) WritePodReg(hub, pod, reg uint8, value uint32) bool {
	_, ok := d.execCmd(cmdWrPodReg, podAddr(hub, pod, reg), value)
	return ok
}

// ReadHubName reads and decodes a hub's 12-byte ASCII name.
func (d *Driver) ReadHubName(hub uint8) string {
	addr := uint32(hub) << 16

	var raw [12]byte
	for i, cmd := range [3]uint32{cmdRdHubName03, cmdRdHubName47, cmdRdHubName8_11} {
		data, ok := d.execCmd(cmd, addr, 0)
		if !ok {
			continue
		}
		raw[i*4+0] = byte(data >> 24)
		raw[i*4+1] = byte(data >> 16)
		raw[i*4+2] = byte(data >> 8)
		raw[i*4+3] = byte(data)
	}

	return decodeName(raw[:])
}

// ReadPodName reads and decodes a pod's 12-byte ASCII name.
func (d *Driver) ReadPodName(hub, pod uint8) string {
	var raw [12]byte
	for i, reg := range [3]uint8{podRegName03, podRegName47, podRegName8_11} {
		data, ok := d.ReadPodReg(hub, pod, reg)
		if !ok {
			continue
		}
		raw[i*4+0] = byte(data >> 24)
		raw[i*4+1] = byte(data >> 16)
		raw[i*4+2] = byte(data >> 8)
		raw[i*4+3] = byte(data)
	}

	return decodeName(raw[:])
}

// decodeName renders a big-endian byte buffer as lossy UTF-8 and trims
// trailing whitespace and NULs, the way hub/pod names come off the wire
// padded with zero bytes.
func decodeName(raw []byte) string {
	s := strings.ToValidUTF8(string(raw), "�")
	return strings.TrimRight(s, " \t\r\n\x00")
}

// PodConfig is the decoded contents of a pod's RAM_CFG register.
type PodConfig struct {
	TSBits   uint8
	DataBits uint16
	RAMDepth uint32
}

// GetPodConfig reads RAM_CFG for the given pod. A failed read yields the
// zero PodConfig, which callers treat as "pod offline".
func (d *Driver) GetPodConfig(hub, pod uint8) PodConfig {
	ramCfg, ok := d.ReadPodReg(hub, pod, podRegRamCfg)
	if !ok {
		return PodConfig{}
	}

	depthBits := uint8(bits.GetN(ramCfg, 0, 0xFF))
	return PodConfig{
		TSBits:   uint8(bits.GetN(ramCfg, 24, 0xFF)),
		DataBits: uint16(bits.GetN(ramCfg, 8, 0xFFFF)),
		RAMDepth: uint32(1) << depthBits,
	}
}

// RleSample is one decoded RAM word from a pod's capture buffer.
type RleSample struct {
	Address   uint32 `json:"address"`
	Code      uint8  `json:"code"`
	Timestamp uint32 `json:"timestamp"`
	Data      uint32 `json:"data"`
}

// ReadRleSample reads and decodes one RLE sample at addr, given the pod's
// timestamp width. It issues, in order: write RAM_PTR (page 0, addr), read
// RAM_DATA (the low word), write RAM_PTR (page 1, addr), read RAM_DATA (the
// high word carrying code+timestamp).
func (d *Driver) ReadRleSample(hub, pod uint8, addr uint32, tsBits uint8) (RleSample, bool) {
	if !d.WritePodReg(hub, pod, podRegRamPtr, addr) {
		return RleSample{}, false
	}

	data, ok := d.ReadPodReg(hub, pod, podRegRamData)
	if !ok {
		return RleSample{}, false
	}

	if !d.WritePodReg(hub, pod, podRegRamPtr, (1<<20)|addr) {
		return RleSample{}, false
	}

	hi, ok := d.ReadPodReg(hub, pod, podRegRamData)
	if !ok {
		return RleSample{}, false
	}

	return RleSample{
		Address:   addr,
		Code:      uint8(bits.GetN(hi, int(tsBits), 0x3)),
		Timestamp: bits.GetN(hi, 0, (uint32(1)<<tsBits)-1),
		Data:      data,
	}, true
}

// CaptureStatus is the decoded five-bit state word returned by RD_STATUS.
type CaptureStatus struct {
	Armed          bool `json:"armed"`
	PreTrigger     bool `json:"pre_trigger"`
	Triggered      bool `json:"triggered"`
	Acquired       bool `json:"acquired"`
	InitInProgress bool `json:"init_in_progress"`
}

// DecodeCaptureStatus unpacks a raw RD_STATUS word.
func DecodeCaptureStatus(word uint32) CaptureStatus {
	return CaptureStatus{
		Armed:          bits.Get(word, 0),
		PreTrigger:     bits.Get(word, 1),
		Triggered:      bits.Get(word, 2),
		Acquired:       bits.Get(word, 3),
		InitInProgress: bits.Get(word, 4),
	}
}
