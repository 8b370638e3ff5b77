package ila

// Register offsets within the 256-byte SUMP3 ILA window
// (p.4, sump3_axi_wrapper.sv register map).
const (
	regCMD       = 0x00 // W
	regADDR      = 0x04 // W
	regWDATA     = 0x08 // W
	regCTRL      = 0x0C // W, bit 0 = START
	regSTATUS    = 0x10 // R, bit 1 = DONE, bit 2 = ERR
	regRDATA     = 0x14 // R
	regHWInfo    = 0x1C // R
	regCapStatus = 0x20 // R
)

const ctrlStart = 0x01

const (
	statusDoneBit = 1
	statusErrBit  = 2
)

const (
	capStatusArmedBit = 0
	capStatusAwakeBit = 1
)

// Command codes.
const (
	// State commands.
	cmdArm   = 0x01
	cmdReset = 0x02
	cmdInit  = 0x03

	// Local reads.
	cmdRdHwID    = 0x10
	cmdRdStatus  = 0x12

	// Local writes.
	cmdWrTrigType     = 0x23
	cmdWrTrigDigField = 0x24
	cmdWrDigPostTrig  = 0x2A

	// Serial bus reads.
	cmdRdHubFreq     = 0x30
	cmdRdPodCount    = 0x31
	cmdRdPodReg      = 0x32
	cmdRdHubInstance = 0x35
	cmdRdHubName03   = 0x36
	cmdRdHubName47   = 0x37
	cmdRdHubName8_11 = 0x38

	// Serial bus writes.
	cmdWrPodReg = 0x40
)

// Pod register addresses, reached through cmdRdPodReg/cmdWrPodReg.
//
// PodRegTrigCfg and PodRegTrigEn are exported: callers composing a
// trigger-configure sequence write them directly through WritePodReg.
const (
	podRegHwCfg    = 0x00
	PodRegTrigCfg  = 0x03
	PodRegTrigEn   = 0x04
	podRegRamPtr   = 0x08
	podRegRamData  = 0x09
	podRegRamCfg   = 0x0A
	podRegTrigAble = 0x0E
	podRegName03   = 0x1D
	podRegName47   = 0x1E
	podRegName8_11 = 0x1F
)

// Trigger type field values, written with cmdWrTrigType.
const (
	TrigOrRising  = 0x02
	TrigOrFalling = 0x03
	TrigExtRising = 0x06
)

// maxPolls bounds execCmd's busy-wait on regSTATUS. Fixed by the protocol,
// must never change (see execCmd).
const maxPolls = 100000

// yieldEvery is how often exec_cmd's poll loop calls runtime.Gosched, purely
// a scheduler fairness nicety. Does not affect maxPolls or the ordering of
// operations.
const yieldEvery = 1024

const ilaWindowSize = 0x100

// expectedHwID is the 16-bit value of HW_INFO[31:16] for an online SUMP3
// instance: ASCII "S3".
const expectedHwID = 0x5303
