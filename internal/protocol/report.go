package protocol

import "fmt"

// ReportCode selects the report variant carried by an envelope.
type ReportCode uint32

const (
	CodeModuleChecksumFailure         ReportCode = 10
	CodeThreadStartAddressFailure     ReportCode = 20
	CodePageProtectionFailure         ReportCode = 30
	CodePatternScanFailure            ReportCode = 40
	CodeNMICallbackFailure            ReportCode = 50
	CodeKernelModuleValidationFailure ReportCode = 60
	CodeOpenHandleFailure             ReportCode = 70
)

// String returns the variant kind, e.g. "module_checksum_failure".
func (c ReportCode) String() string {
	if l, ok := layouts[c]; ok {
		return l.kind
	}
	return fmt.Sprintf("unknown(%d)", uint32(c))
}

// Known reports whether c names a report variant.
func (c ReportCode) Known() bool {
	_, ok := layouts[c]
	return ok
}

// Report is one decoded report variant. The set of implementations is
// closed: ModuleChecksumFailure, ThreadStartAddressFailure,
// PageProtectionFailure, PatternScanFailure, NMICallbackFailure,
// KernelModuleValidationFailure and OpenHandleFailure.
//
// Addresses are opaque numbers reported by the peer and are never
// dereferenced.
type Report interface {
	Code() ReportCode
	// values returns the fields after the report code, in layout order.
	values() []uint64
}

type ModuleChecksumFailure struct {
	ModuleBase uint64 `json:"module_base"`
	ModuleSize uint32 `json:"module_size"`
}

func (ModuleChecksumFailure) Code() ReportCode { return CodeModuleChecksumFailure }
func (r ModuleChecksumFailure) values() []uint64 {
	return []uint64{r.ModuleBase, uint64(r.ModuleSize)}
}

type ThreadStartAddressFailure struct {
	ThreadID     uint32 `json:"thread_id"`
	StartAddress uint64 `json:"start_address"`
}

func (ThreadStartAddressFailure) Code() ReportCode { return CodeThreadStartAddressFailure }
func (r ThreadStartAddressFailure) values() []uint64 {
	return []uint64{uint64(r.ThreadID), r.StartAddress}
}

type PageProtectionFailure struct {
	PageBase             uint64 `json:"page_base"`
	AllocationProtection uint32 `json:"allocation_protection"`
	AllocationState      uint32 `json:"allocation_state"`
	AllocationType       uint32 `json:"allocation_type"`
}

func (PageProtectionFailure) Code() ReportCode { return CodePageProtectionFailure }
func (r PageProtectionFailure) values() []uint64 {
	return []uint64{r.PageBase, uint64(r.AllocationProtection), uint64(r.AllocationState), uint64(r.AllocationType)}
}

type PatternScanFailure struct {
	SignatureID uint32 `json:"signature_id"`
	Address     uint64 `json:"address"`
}

func (PatternScanFailure) Code() ReportCode { return CodePatternScanFailure }
func (r PatternScanFailure) values() []uint64 {
	return []uint64{uint64(r.SignatureID), r.Address}
}

type NMICallbackFailure struct {
	WereNMIsDisabled bool   `json:"were_nmis_disabled"`
	KThreadAddress   uint64 `json:"kthread_address"`
	InvalidRIP       uint64 `json:"invalid_rip"`
}

func (NMICallbackFailure) Code() ReportCode { return CodeNMICallbackFailure }
func (r NMICallbackFailure) values() []uint64 {
	var disabled uint64
	if r.WereNMIsDisabled {
		disabled = 1
	}
	return []uint64{disabled, r.KThreadAddress, r.InvalidRIP}
}

type KernelModuleValidationFailure struct {
	ReportType uint32 `json:"report_type"`
	DriverBase uint64 `json:"driver_base"`
	DriverSize uint32 `json:"driver_size"`
}

func (KernelModuleValidationFailure) Code() ReportCode { return CodeKernelModuleValidationFailure }
func (r KernelModuleValidationFailure) values() []uint64 {
	return []uint64{uint64(r.ReportType), r.DriverBase, uint64(r.DriverSize)}
}

type OpenHandleFailure struct {
	ProcessID     uint32 `json:"process_id"`
	ThreadID      uint32 `json:"thread_id"`
	DesiredAccess uint32 `json:"desired_access"`
}

func (OpenHandleFailure) Code() ReportCode { return CodeOpenHandleFailure }
func (r OpenHandleFailure) values() []uint64 {
	return []uint64{uint64(r.ProcessID), uint64(r.ThreadID), uint64(r.DesiredAccess)}
}
