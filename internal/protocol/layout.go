package protocol

import (
	"fmt"
	"log/slog"
)

// field is one fixed-offset member of a report record. Offsets follow the
// peer's natural x64 alignment: 8-byte words sit on 8-byte boundaries.
type field struct {
	name   string
	offset int
	width  int // 4 or 8
}

// layout describes a report variant on the wire. size includes trailing
// padding and is the number of envelope bytes the variant occupies.
type layout struct {
	kind   string
	size   int
	fields []field // members after the report code
	build  func(v []uint64) Report
}

var layouts = map[ReportCode]layout{
	CodeModuleChecksumFailure: {
		kind: "module_checksum_failure",
		size: 24,
		fields: []field{
			{"module_base", 8, 8},
			{"module_size", 16, 4},
		},
		build: func(v []uint64) Report {
			return ModuleChecksumFailure{ModuleBase: v[0], ModuleSize: uint32(v[1])}
		},
	},
	CodeThreadStartAddressFailure: {
		kind: "thread_start_address_failure",
		size: 16,
		fields: []field{
			{"thread_id", 4, 4},
			{"start_address", 8, 8},
		},
		build: func(v []uint64) Report {
			return ThreadStartAddressFailure{ThreadID: uint32(v[0]), StartAddress: v[1]}
		},
	},
	CodePageProtectionFailure: {
		kind: "page_protection_failure",
		size: 32,
		fields: []field{
			{"page_base", 8, 8},
			{"allocation_protection", 16, 4},
			{"allocation_state", 20, 4},
			{"allocation_type", 24, 4},
		},
		build: func(v []uint64) Report {
			return PageProtectionFailure{
				PageBase:             v[0],
				AllocationProtection: uint32(v[1]),
				AllocationState:      uint32(v[2]),
				AllocationType:       uint32(v[3]),
			}
		},
	},
	CodePatternScanFailure: {
		kind: "pattern_scan_failure",
		size: 16,
		fields: []field{
			{"signature_id", 4, 4},
			{"address", 8, 8},
		},
		build: func(v []uint64) Report {
			return PatternScanFailure{SignatureID: uint32(v[0]), Address: v[1]}
		},
	},
	CodeNMICallbackFailure: {
		kind: "nmi_callback_failure",
		size: 24,
		fields: []field{
			{"were_nmis_disabled", 4, 4},
			{"kthread_address", 8, 8},
			{"invalid_rip", 16, 8},
		},
		build: func(v []uint64) Report {
			return NMICallbackFailure{WereNMIsDisabled: v[0] != 0, KThreadAddress: v[1], InvalidRIP: v[2]}
		},
	},
	CodeKernelModuleValidationFailure: {
		kind: "kernel_module_validation_failure",
		size: 24,
		fields: []field{
			{"report_type", 4, 4},
			{"driver_base", 8, 8},
			{"driver_size", 16, 4},
		},
		build: func(v []uint64) Report {
			return KernelModuleValidationFailure{ReportType: uint32(v[0]), DriverBase: v[1], DriverSize: uint32(v[2])}
		},
	},
	CodeOpenHandleFailure: {
		kind: "open_handle_failure",
		size: 16,
		fields: []field{
			{"process_id", 4, 4},
			{"thread_id", 8, 4},
			{"desired_access", 12, 4},
		},
		build: func(v []uint64) Report {
			return OpenHandleFailure{ProcessID: uint32(v[0]), ThreadID: uint32(v[1]), DesiredAccess: uint32(v[2])}
		},
	},
}

// RecordSize returns the wire size of the variant selected by code.
func RecordSize(code ReportCode) (int, bool) {
	l, ok := layouts[code]
	return l.size, ok
}

// FieldNames returns the names of the fields following the report code.
func FieldNames(code ReportCode) []string {
	l := layouts[code]
	names := make([]string, len(l.fields))
	for i, f := range l.fields {
		names[i] = f.name
	}
	return names
}

// NewReport builds a report from field values given in layout order.
func NewReport(code ReportCode, values []uint64) (Report, error) {
	l, ok := layouts[code]
	if !ok {
		return nil, &UnknownReportCodeError{Code: code}
	}
	if len(values) != len(l.fields) {
		return nil, fmt.Errorf("%s: expected %d values %v, got %d", l.kind, len(l.fields), FieldNames(code), len(values))
	}
	for i, f := range l.fields {
		if f.width == 4 && values[i] > 0xFFFFFFFF {
			return nil, fmt.Errorf("%s: %s overflows 32 bits: %#x", l.kind, f.name, values[i])
		}
	}
	return l.build(values), nil
}

// Attrs renders a report as slog attributes. Word-sized fields are shown
// in hex.
func Attrs(r Report) []slog.Attr {
	l := layouts[r.Code()]
	vals := r.values()
	attrs := make([]slog.Attr, 0, len(l.fields)+1)
	attrs = append(attrs, slog.String("kind", l.kind))
	for i, f := range l.fields {
		if f.width == 8 {
			attrs = append(attrs, slog.String(f.name, fmt.Sprintf("%#x", vals[i])))
			continue
		}
		attrs = append(attrs, slog.Uint64(f.name, vals[i]))
	}
	return attrs
}
