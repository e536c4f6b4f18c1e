package security

import (
	"time"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

// Verification messages returned to scanners.  The wording is part of
// the API surface and mirrored in client apps; do not reword casually.
const (
	MsgInvalidQR    = "Invalid QR code"
	MsgInvalidRFID  = "Invalid RFID tag"
	MsgTampered     = "Cylinder shows signs of tampering"
	MsgNotAuthentic = "Cylinder marked as non-authentic"
	MsgRetired      = "Cylinder has been retired"
	MsgStolen       = "Cylinder reported as stolen/lost"
	MsgExpired      = "Cylinder has expired - requires inspection"
	MsgVerified     = "Cylinder verified successfully"
)

// Verify runs the authenticity check sequence against a cylinder
// snapshot.  Checks run in fixed priority order and the first failure
// wins; today must be a date truncated to midnight UTC.  Verify is a
// pure function of its inputs.
func Verify(c *model.Cylinder, code, scanType string, today time.Time) (bool, string) {
	switch scanType {
	case model.ScanTypeQR:
		if code != c.QRCode {
			return false, MsgInvalidQR
		}
	case model.ScanTypeRFID:
		if code != c.RFIDTag {
			return false, MsgInvalidRFID
		}
	}
	if c.IsTampered {
		return false, MsgTampered
	}
	if !c.IsAuthentic {
		return false, MsgNotAuthentic
	}
	if c.Status == model.CylinderRetired {
		return false, MsgRetired
	}
	if c.Status == model.CylinderStolen {
		return false, MsgStolen
	}
	if c.IsExpired(today) {
		return false, MsgExpired
	}
	return true, MsgVerified
}

// ClassifyResult maps a verification outcome onto the scan result stored
// in the ledger.  Tamper outranks stolen, stolen outranks expiry and
// everything else collapses to FAILED.
func ClassifyResult(ok bool, c *model.Cylinder, today time.Time) string {
	switch {
	case ok:
		return model.ScanSuccess
	case c.IsTampered:
		return model.ScanTampered
	case c.Status == model.CylinderStolen:
		return model.ScanStolen
	case c.IsExpired(today):
		return model.ScanExpired
	default:
		return model.ScanFailed
	}
}

// Today truncates t to midnight UTC, the date-level precision used for
// expiry comparisons.
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
