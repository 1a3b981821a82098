package dsc

import "github.com/bohrplanet/Defi-stablecoin/crypto"

var positionPrefix = []byte("dsc/position/")

func positionKey(addr crypto.Address) []byte {
	raw := addr.Bytes()
	buf := make([]byte, len(positionPrefix)+len(raw))
	copy(buf, positionPrefix)
	copy(buf[len(positionPrefix):], raw)
	return buf
}
