// Package dhkey implements the 2048-bit Diffie-Hellman session-key
// builder used by the T1 handshake. The derivation is byte-compatible
// with the reference Java implementation's DHSessionKeyBuilder: any
// deviation in the padding rules would silently break interoperability
// with existing peers.
package dhkey

import (
	"math/big"
	"sync"
)

// elgPHex is the well-known 2048-bit MODP group (RFC 3526 Group 14),
// the same safe prime the reference ecosystem's ElGamal/DH group uses.
const elgPHex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E08" +
	"8A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6D" +
	"F25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6" +
	"F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8" +
	"A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356" +
	"208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E46" +
	"2E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6" +
	"955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFF" +
	"FFFFFFFF"

// elgGHex is the generator for the I2P DH/ElGamal group, 2.
const elgGHex = "2"

var elgP = sync.OnceValue(func() *big.Int {
	p, ok := new(big.Int).SetString(elgPHex, 16)
	if !ok {
		panic("dhkey: failed to parse DH prime constant")
	}
	return p
})

var elgG = sync.OnceValue(func() *big.Int {
	g, ok := new(big.Int).SetString(elgGHex, 16)
	if !ok {
		panic("dhkey: failed to parse DH generator constant")
	}
	return g
})
