package incident

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet deliberately omits characters that are easy to misread
// (0/O, 1/I/L) so reporters can copy codes from a phone screen.
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// ReportCodeLen is the length of a shareable tracking code.
const ReportCodeLen = 10

// NewReportCode returns a random shareable tracking code, e.g. "7FJ2K9QX3M".
// Codes identify a report to its anonymous submitter; internal IDs are ULIDs.
func NewReportCode() (string, error) {
	buf := make([]byte, ReportCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("report code entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
