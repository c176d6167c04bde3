// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"

	"github.com/lightningnetwork/lnd/tlv"
)

// TLV types of the chain payload record.  The payload is the tagged variant
// holding every account-model field, so impossible field combinations never
// appear in the shared proposal envelope.
const (
	payloadTypeNonce          tlv.Type = 1
	payloadTypeGasPrice       tlv.Type = 2
	payloadTypeGasLimit       tlv.Type = 3
	payloadTypeDestinationTag tlv.Type = 4
	payloadTypeData           tlv.Type = 5
)

// Payload carries the chain-specific fields of an account-model proposal:
// nonce and gas parameters for the Ethereum family, the destination tag for
// XRP, and opaque call data.  The UTXO family never carries a payload.
type Payload struct {
	Nonce          uint64
	GasPrice       uint64
	GasLimit       uint64
	DestinationTag uint32
	Data           []byte
}

func (p *Payload) records() []tlv.Record {
	return []tlv.Record{
		tlv.MakePrimitiveRecord(payloadTypeNonce, &p.Nonce),
		tlv.MakePrimitiveRecord(payloadTypeGasPrice, &p.GasPrice),
		tlv.MakePrimitiveRecord(payloadTypeGasLimit, &p.GasLimit),
		tlv.MakePrimitiveRecord(payloadTypeDestinationTag, &p.DestinationTag),
		tlv.MakePrimitiveRecord(payloadTypeData, &p.Data),
	}
}

// Encode serializes the payload as a canonical TLV stream.
func (p *Payload) Encode() ([]byte, error) {
	stream, err := tlv.NewStream(p.records()...)
	if err != nil {
		return nil, newError(ErrPayload, "cannot create payload stream", err)
	}
	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return nil, newError(ErrPayload, "cannot encode payload", err)
	}
	return b.Bytes(), nil
}

// DecodePayload parses a TLV stream produced by Encode.  Unknown records are
// ignored so older cores can read records written by newer ones.
func DecodePayload(raw []byte) (*Payload, error) {
	p := &Payload{}
	stream, err := tlv.NewStream(p.records()...)
	if err != nil {
		return nil, newError(ErrPayload, "cannot create payload stream", err)
	}
	if err := stream.Decode(bytes.NewReader(raw)); err != nil {
		return nil, newError(ErrPayload, "cannot decode payload", err)
	}
	return p, nil
}
