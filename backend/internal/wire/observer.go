// Package wire extracts the negotiated key-exchange group from the plaintext part of a TLS
// handshake, for stacks that do not report it through their public API.
package wire

import (
	"golang.org/x/crypto/cryptobyte"
)

const (
	recordTypeHandshake uint8 = 22

	typeServerHello       uint8 = 2
	typeServerKeyExchange uint8 = 12

	extensionKeyShare uint16 = 51

	curveTypeNamedCurve uint8 = 3
)

// GroupObserver parses the server-to-client byte stream of one handshake and records the group
// the server selected: the key_share group of the last ServerHello (TLS 1.3, including a
// HelloRetryRequest) or the named curve of a ServerKeyExchange (TLS 1.2). It stops at the first
// record of any other type (ChangeCipherSpec, alert, or encrypted data), since nothing after
// those is readable.
//
// Feed it bytes in order with Observe; chunks may split records and messages anywhere.
type GroupObserver struct {
	records   []byte
	handshake []byte
	group     uint16
	found     bool
	done      bool
}

// Observe consumes the next chunk of the server-to-client stream.
func (o *GroupObserver) Observe(p []byte) {
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
			o.handshake = append(o.handshake, body...)
			o.parseHandshake()
		default:
			o.finish()
		}
	}
}

// Group returns the selected group's code point, if one has been seen.
func (o *GroupObserver) Group() (uint16, bool) {
	return o.group, o.found
}

// Done reports whether the observer has stopped parsing.
func (o *GroupObserver) Done() bool {
	return o.done
}

func (o *GroupObserver) finish() {
	o.done = true
	o.records = nil
	o.handshake = nil
}

func (o *GroupObserver) parseHandshake() {
	for {
		s := cryptobyte.String(o.handshake)
		var (
			typ uint8
			msg cryptobyte.String
		)
		if !s.ReadUint8(&typ) || !s.ReadUint24LengthPrefixed(&msg) {
			return
		}
		o.handshake = s
		switch typ {
		case typeServerHello:
			o.parseServerHello(msg)
		case typeServerKeyExchange:
			o.parseServerKeyExchange(msg)
		}
	}
}

func (o *GroupObserver) parseServerHello(msg cryptobyte.String) {
	var (
		version     uint16
		random      []byte
		sessionID   cryptobyte.String
		cipherSuite uint16
		compression uint8
		extensions  cryptobyte.String
	)
	if !msg.ReadUint16(&version) || !msg.ReadBytes(&random, 32) ||
		!msg.ReadUint8LengthPrefixed(&sessionID) || !msg.ReadUint16(&cipherSuite) ||
		!msg.ReadUint8(&compression) {
		return
	}
	if msg.Empty() || !msg.ReadUint16LengthPrefixed(&extensions) {
		return
	}
	for !extensions.Empty() {
		var (
			extension uint16
			data      cryptobyte.String
		)
		if !extensions.ReadUint16(&extension) || !extensions.ReadUint16LengthPrefixed(&data) {
			return
		}
		if extension != extensionKeyShare {
			continue
		}
		// The group comes first in both the ServerHello and HelloRetryRequest forms.
		var group uint16
		if data.ReadUint16(&group) {
			o.group, o.found = group, true
		}
	}
}

func (o *GroupObserver) parseServerKeyExchange(msg cryptobyte.String) {
	var (
		curveType uint8
		group     uint16
	)
	if msg.ReadUint8(&curveType) && curveType == curveTypeNamedCurve && msg.ReadUint16(&group) {
		o.group, o.found = group, true
	}
}
