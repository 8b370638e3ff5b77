// Package service is a request-oriented facade over ila.Driver: it turns
// driver-level bool/zero-value failures into the {success, message} result
// records the HTTP layer serializes, and owns the compound,
// multi-command operations (configure-trigger, capture) that don't belong
// on the driver itself.
package service

import (
	"fmt"
	"time"

	"github.com/amcolex/sump-surfer/ila"
)

// maxCaptureSamples bounds how many samples a single capture request can
// return, regardless of the requested count or the pod's RAM depth.
const maxCaptureSamples = 2048

// initSettleDelay is how long Init() waits after a successful INIT command
// for RAM initialization to complete.
const initSettleDelay = 100 * time.Millisecond

// triggerInitSettleDelay is the equivalent wait inside ConfigureTrigger's
// INIT step.
const triggerInitSettleDelay = 200 * time.Millisecond

const defaultPostTrigger = 64

// Service exposes the driver's operations as self-contained, serializable
// results. It holds no state of its own.
type Service struct {
	driver *ila.Driver
}

// New wraps driver as a request-oriented facade.
func New(driver *ila.Driver) *Service {
	return &Service{driver: driver}
}

// InfoResult is the response to GET /.
type InfoResult struct {
	ila.Topology
	BaseAddr string `json:"base_addr"`
}

// Info enumerates the device topology and reports the driver's base
// address alongside it.
func (s *Service) Info() InfoResult {
	return InfoResult{
		Topology: s.driver.Enumerate(),
		BaseAddr: fmt.Sprintf("0x%08X", s.driver.Base()),
	}
}

// Status is the response to GET /status.
func (s *Service) Status() ila.CaptureStatus {
	word, ok := s.driver.ReadStatusWord()
	if !ok {
		return ila.CaptureStatus{}
	}
	return ila.DecodeCaptureStatus(word)
}

// ActionResult is the response to every POST action (reset/init/arm/trigger).
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Reset issues the RESET state command.
func (s *Service) Reset() ActionResult {
	if !s.driver.Reset() {
		return ActionResult{Success: false, Message: "Reset failed"}
	}
	return ActionResult{Success: true, Message: "Reset OK"}
}

// Init issues the INIT state command and waits for RAM initialization to
// settle.
func (s *Service) Init() ActionResult {
	if !s.driver.Initialize() {
		return ActionResult{Success: false, Message: "Init failed"}
	}
	time.Sleep(initSettleDelay)
	return ActionResult{Success: true, Message: "Init OK"}
}

// Arm issues the ARM state command.
func (s *Service) Arm() ActionResult {
	if !s.driver.Arm() {
		return ActionResult{Success: false, Message: "Arm failed"}
	}
	return ActionResult{Success: true, Message: "Arm OK"}
}

// TriggerConfig is the request body for POST /trigger.
type TriggerConfig struct {
	TriggerType string `json:"trigger_type"`
	TriggerBits uint32 `json:"trigger_bits"`
	PostTrigger uint32 `json:"post_trigger"`
}

// trigTypeCode maps a trigger_type name onto its wire code. Unrecognized
// names fall back to OR_RISING.
func trigTypeCode(name string) uint32 {
	switch name {
	case "or_falling":
		return ila.TrigOrFalling
	case "external":
		return ila.TrigExtRising
	default:
		return ila.TrigOrRising
	}
}

// ConfigureTrigger runs the full reset/program/init/arm sequence described
// for the trigger configuration operation. The first failing step aborts
// the sequence and reports a step-scoped message; pod 0/hub 0
// pre-programming (step 5) is best-effort and never aborts the sequence.
func (s *Service) ConfigureTrigger(cfg TriggerConfig) ActionResult {
	trigCode := trigTypeCode(cfg.TriggerType)

	trigBits := cfg.TriggerBits
	if trigBits == 0 {
		trigBits = 1
	}

	postTrigger := cfg.PostTrigger
	if postTrigger == 0 {
		postTrigger = defaultPostTrigger
	}

	if !s.driver.Reset() {
		return ActionResult{Success: false, Message: "Reset failed"}
	}
	if !s.driver.WriteTrigType(trigCode) {
		return ActionResult{Success: false, Message: "Failed to set trigger type"}
	}
	if !s.driver.WriteTrigDigField(trigBits) {
		return ActionResult{Success: false, Message: "Failed to set trigger field"}
	}
	if !s.driver.WriteDigPostTrig(postTrigger) {
		return ActionResult{Success: false, Message: "Failed to set post-trigger"}
	}

	// Pod 0/hub 0 pre-programming: best-effort, ignored on failure.
	s.driver.WritePodReg(0, 0, ila.PodRegTrigCfg, (trigCode&0x07)|0x20)
	s.driver.WritePodReg(0, 0, ila.PodRegTrigEn, trigBits)

	if !s.driver.Initialize() {
		return ActionResult{Success: false, Message: "Init failed"}
	}
	time.Sleep(triggerInitSettleDelay)

	if !s.driver.Arm() {
		return ActionResult{Success: false, Message: "Arm failed"}
	}

	return ActionResult{
		Success: true,
		Message: fmt.Sprintf("Configured: type=%s, bits=0x%08X, post=%d", cfg.TriggerType, trigBits, postTrigger),
	}
}

// CaptureResult is the response to GET /capture/{hub}/{pod}/{count}.
type CaptureResult struct {
	Hub         uint8             `json:"hub"`
	Pod         uint8             `json:"pod"`
	TSBits      uint8             `json:"ts_bits"`
	DataBits    uint16            `json:"data_bits"`
	Status      ila.CaptureStatus `json:"status"`
	Samples     []ila.RleSample   `json:"samples"`
	SampleCount int               `json:"sample_count"`
}

// Capture reads up to count samples (and never more than the pod's RAM
// depth, nor more than maxCaptureSamples) from hub/pod's capture RAM.
// Addresses whose read fails are silently skipped, so the returned sample
// list may be shorter than SampleCount, which always reports the
// requested target.
func (s *Service) Capture(hub, pod uint8, count int) CaptureResult {
	status := s.Status()
	cfg := s.driver.GetPodConfig(hub, pod)

	if count < 0 {
		count = 0
	}

	n := count
	if int(cfg.RAMDepth) < n {
		n = int(cfg.RAMDepth)
	}
	if maxCaptureSamples < n {
		n = maxCaptureSamples
	}

	result := CaptureResult{
		Hub:         hub,
		Pod:         pod,
		TSBits:      cfg.TSBits,
		DataBits:    cfg.DataBits,
		Status:      status,
		Samples:     make([]ila.RleSample, 0, n),
		SampleCount: n,
	}

	for addr := uint32(0); addr < uint32(n); addr++ {
		sample, ok := s.driver.ReadRleSample(hub, pod, addr, cfg.TSBits)
		if !ok {
			continue
		}
		result.Samples = append(result.Samples, sample)
	}

	return result
}

// RegisterResult is the response to GET /reg/{offset}.
type RegisterResult struct {
	Offset int     `json:"offset"`
	Value  *uint32 `json:"value"`
}

// ReadRegister reads one raw register by byte offset within the 256-byte
// window. Offsets outside [0, 256) report a nil Value rather than an
// error.
func (s *Service) ReadRegister(offset int) RegisterResult {
	if offset < 0 || offset >= 256 {
		return RegisterResult{Offset: offset}
	}

	value, ok := s.driver.ReadRawRegister(offset)
	if !ok {
		return RegisterResult{Offset: offset}
	}
	return RegisterResult{Offset: offset, Value: &value}
}
