package ingest

import (
	"encoding/hex"
	"strings"
)

// LookupEPCScheme returns the EPC Tag Data Standard scheme name for the
// header byte of a hex-encoded EPC, or "" when unknown.
// See: https://www.gs1.org/standards/rfid/tds
func LookupEPCScheme(epc string) string {
	h, ok := EPCHeader(epc)
	if !ok {
		return ""
	}
	if name, ok := epcSchemes[h]; ok {
		return name
	}
	return ""
}

// EPCHeader decodes the first byte of a hex EPC. Separators are ignored.
func EPCHeader(epc string) (byte, bool) {
	epc = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(epc)
	if len(epc) < 2 {
		return 0, false
	}
	b, err := hex.DecodeString(epc[:2])
	if err != nil {
		return 0, false
	}
	return b[0], true
}

// ShortEPC keeps the last n hex digits, which is how tags are labelled on
// the radar.
func ShortEPC(epc string, n int) string {
	if n <= 0 || len(epc) <= n {
		return epc
	}
	return "…" + epc[len(epc)-n:]
}

var epcSchemes = map[byte]string{
	0x2C: "GDTI-96",
	0x2D: "GSRN-96",
	0x2E: "GSRNP-96",
	0x2F: "USDOD-96",
	0x30: "SGTIN-96",
	0x31: "SSCC-96",
	0x32: "SGLN-96",
	0x33: "GRAI-96",
	0x34: "GIAI-96",
	0x35: "GID-96",
	0x36: "SGTIN-198",
	0x37: "GRAI-170",
	0x38: "GIAI-202",
	0x39: "SGLN-195",
	0x3A: "GDTI-113",
	0x3B: "ADI-var",
	0x3C: "CPI-96",
	0x3D: "CPI-var",
	0x3E: "GDTI-174",
	0x3F: "SGCN-96",
	0x40: "ITIP-110",
	0x41: "ITIP-212",
	0xE2: "TID (ISO/IEC 15963)",
}
