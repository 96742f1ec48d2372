package wire

import (
	"golang.org/x/crypto/cryptobyte"
)

const recordTypeAlert uint8 = 21

// Alert descriptions that AlertObserver callers commonly look for.
const (
	AlertHandshakeFailure       uint8 = 40
	AlertBadCertificate         uint8 = 42
	AlertUnsupportedCertificate uint8 = 43
	AlertCertificateUnknown     uint8 = 46
	AlertUnknownCA              uint8 = 48
	AlertProtocolVersion        uint8 = 70
	AlertInsufficientSecurity   uint8 = 71
)

// AlertObserver parses one direction of a TLS byte stream and records the description of the
// first plaintext alert in it. Handshake records are skipped; any other record type ends the
// plaintext part of the stream.
type AlertObserver struct {
	records     []byte
	description uint8
	found       bool
	done        bool
}

// Observe consumes the next chunk of the stream.
func (o *AlertObserver) Observe(p []byte) {
	if o.done {
		return
	}
	o.records = append(o.records, p...)
	for !o.done {
		s := cryptobyte.String(o.records)
		var (
			typ     uint8
			version uint16
			body    cryptobyte.String
		)
		if !s.ReadUint8(&typ) || !s.ReadUint16(&version) || !s.ReadUint16LengthPrefixed(&body) {
			return
		}
		o.records = s
		switch typ {
		case recordTypeHandshake:
		case recordTypeAlert:
			var level uint8
			if body.ReadUint8(&level) && body.ReadUint8(&o.description) {
				o.found = true
			}
			o.done, o.records = true, nil
		default:
			o.done, o.records = true, nil
		}
	}
}

// Alert returns the description of the first plaintext alert, if one has been seen.
func (o *AlertObserver) Alert() (uint8, bool) {
	return o.description, o.found
}
