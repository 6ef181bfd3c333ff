package server

import "github.com/chazu/garnet/vm/wire"

// cborCodec carries request and response messages as canonical CBOR, the
// same encoding used for program files. Clients select it with the
// application/cbor content type.
type cborCodec struct{}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Marshal(msg any) ([]byte, error) { return wire.Marshal(msg) }

func (cborCodec) Unmarshal(data []byte, msg any) error { return wire.Unmarshal(data, msg) }
