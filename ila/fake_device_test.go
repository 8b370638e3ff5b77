package ila

// fakeMem simulates the SUMP3 ILA register protocol well enough to drive
// Driver through its real code paths in tests, standing in for the
// /dev/mem-backed mmio.Window a production Driver would use.
type fakeMem struct {
	hwInfo     uint32
	capStatus  uint32
	statusWord uint32

	hubNames    []string
	hubFreqRegs []uint32
	podCounts   []uint32

	podNames       map[[2]uint8]string
	podHwCfg       map[[2]uint8]uint32
	podRamCfg      map[[2]uint8]uint32
	podTriggerable map[[2]uint8]uint32
	podRam         map[[2]uint8]map[uint32]uint32
	podRamPtr      map[[2]uint8]uint32

	// staged command registers
	cmd, addr, wdata uint32
	rdata            uint32

	// poll behavior knobs
	timeoutForever   bool
	errorImmediately bool
	doneAfterPolls   int
	pollsSeen        int

	log []string
}

func newFakeMem() *fakeMem {
	return &fakeMem{
		podNames:       map[[2]uint8]string{},
		podHwCfg:       map[[2]uint8]uint32{},
		podRamCfg:      map[[2]uint8]uint32{},
		podTriggerable: map[[2]uint8]uint32{},
		podRam:         map[[2]uint8]map[uint32]uint32{},
		podRamPtr:      map[[2]uint8]uint32{},
		doneAfterPolls: 1,
	}
}

func (f *fakeMem) ramFor(key [2]uint8) map[uint32]uint32 {
	m, ok := f.podRam[key]
	if !ok {
		m = map[uint32]uint32{}
		f.podRam[key] = m
	}
	return m
}

func (f *fakeMem) Read32(offset int) (uint32, bool) {
	switch offset {
	case regHWInfo:
		return f.hwInfo, true
	case regCapStatus:
		return f.capStatus, true
	case regSTATUS:
		f.pollsSeen++
		f.log = append(f.log, "R:STATUS")
		switch {
		case f.timeoutForever:
			return 0, true
		case f.errorImmediately:
			return (1 << statusDoneBit) | (1 << statusErrBit), true
		case f.pollsSeen < f.doneAfterPolls:
			return 0, true
		default:
			return 1 << statusDoneBit, true
		}
	case regRDATA:
		f.log = append(f.log, "R:RDATA")
		return f.rdata, true
	}
	return 0, false
}

func (f *fakeMem) Write32(offset int, value uint32) bool {
	switch offset {
	case regCMD:
		f.cmd = value
		f.log = append(f.log, "W:CMD")
	case regADDR:
		f.addr = value
		f.log = append(f.log, "W:ADDR")
	case regWDATA:
		f.wdata = value
		f.log = append(f.log, "W:WDATA")
	case regCTRL:
		f.log = append(f.log, "W:CTRL")
		f.pollsSeen = 0
		f.resolve()
	default:
		return false
	}
	return true
}

func (f *fakeMem) resolve() {
	hub := uint8((f.addr >> 16) & 0xFF)
	pod := uint8((f.addr >> 8) & 0xFF)
	reg := uint8(f.addr & 0xFF)
	key := [2]uint8{hub, pod}

	switch f.cmd {
	case cmdRdPodReg:
		switch reg {
		case podRegHwCfg:
			f.rdata = f.podHwCfg[key]
		case podRegRamCfg:
			f.rdata = f.podRamCfg[key]
		case podRegTrigAble:
			f.rdata = f.podTriggerable[key]
		case podRegRamData:
			f.rdata = f.ramFor(key)[f.podRamPtr[key]]
		case podRegName03:
			f.rdata = nameWord(f.podNames[key], 0)
		case podRegName47:
			f.rdata = nameWord(f.podNames[key], 1)
		case podRegName8_11:
			f.rdata = nameWord(f.podNames[key], 2)
		default:
			f.rdata = 0
		}
	case cmdWrPodReg:
		switch reg {
		case podRegRamPtr:
			f.podRamPtr[key] = f.wdata
		case podRegHwCfg:
			f.podHwCfg[key] = f.wdata
		case podRegRamCfg:
			f.podRamCfg[key] = f.wdata
		default:
			// not exercised by current tests beyond RAM_PTR/HW_CFG/RAM_CFG
		}
		f.rdata = 0
	case cmdRdHubFreq:
		f.rdata = f.hubFreqRegs[hub]
	case cmdRdPodCount:
		f.rdata = f.podCounts[hub]
	case cmdRdHubName03:
		f.rdata = nameWord(f.hubNames[hub], 0)
	case cmdRdHubName47:
		f.rdata = nameWord(f.hubNames[hub], 1)
	case cmdRdHubName8_11:
		f.rdata = nameWord(f.hubNames[hub], 2)
	case cmdRdStatus:
		f.rdata = f.statusWord
	case cmdReset, cmdInit, cmdArm, cmdWrTrigType, cmdWrTrigDigField, cmdWrDigPostTrig:
		f.rdata = 0
	default:
		f.rdata = 0
	}
}

// nameWord renders one 4-byte big-endian segment (0, 1, or 2) of a name
// space-padded to 12 bytes, mirroring how hub/pod names are packed on the
// wire.
func nameWord(name string, segment int) uint32 {
	buf := make([]byte, 12)
	copy(buf, name)
	for i := len(name); i < 12; i++ {
		buf[i] = ' '
	}
	o := segment * 4
	return uint32(buf[o])<<24 | uint32(buf[o+1])<<16 | uint32(buf[o+2])<<8 | uint32(buf[o+3])
}
