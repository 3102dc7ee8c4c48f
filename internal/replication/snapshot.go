package replication

import "encoding/base64"

// emptyRDBBase64 is the canonical codecrafters "empty RDB" payload: a
// minimal, valid RDB file with no keys. The primary ships this fixed
// blob on every full resync regardless of what the live keyspace holds
// (see the Open Question decision in DESIGN.md) — the reference
// behavior this server pins to, rather than serializing the store.
const emptyRDBBase64 = "UkVESVMwMDEx+glyZWRpcy12ZXIFNy4yLjD6CnJlZGlzLWJpdHPAQPoFY3RpbWXCbQi8ZfoIdXNlZC1tZW3CsMQQAPoIYW9mLWJhc2XAAP/wbjv+wP9aog=="

// EmptyRDB is the decoded fixed snapshot blob sent as a bare bulk
// during PSYNC full resync.
var EmptyRDB = mustDecodeRDB()

func mustDecodeRDB() []byte {
	b, err := base64.StdEncoding.DecodeString(emptyRDBBase64)
	if err != nil {
		panic("replication: malformed embedded empty-RDB blob: " + err.Error())
	}
	return b
}
