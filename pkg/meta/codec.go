// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package meta

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2), so the same record always produces
// identical bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder; unknown fields are ignored for forward
// compatibility.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("meta: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("meta: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshalRecord(v interface{}) ([]byte, error) {
	data, err := encMode.Marshal(v)
	return data, Error.Wrap(err)
}

func unmarshalRecord(data []byte, v interface{}) error {
	return Error.Wrap(decMode.Unmarshal(data, v))
}
