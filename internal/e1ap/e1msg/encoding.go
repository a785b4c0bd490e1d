package e1msg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
)

var (
	// ErrInvalidPLMN is returned for PLMN identities that are not a 3-digit
	// MCC followed by a 2 or 3-digit MNC.
	ErrInvalidPLMN = errors.New("e1msg: invalid plmn identity")
	// ErrInvalidAddress is returned for transport layer addresses that are
	// neither IPv4 nor IPv6.
	ErrInvalidAddress = errors.New("e1msg: invalid transport layer address")
)

const plmnFiller = 0xf

// ParsePLMN encodes a PLMN given as MCC and MNC digits ("00101", "310260").
func ParsePLMN(s string) (PLMNIdentity, error) {
	if len(s) != 5 && len(s) != 6 {
		return PLMNIdentity{}, fmt.Errorf("%w: %q has %d digits", ErrInvalidPLMN, s, len(s))
	}
	var d [6]byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return PLMNIdentity{}, fmt.Errorf("%w: %q", ErrInvalidPLMN, s)
		}
		d[i] = c - '0'
	}
	mnc3 := byte(plmnFiller)
	if len(s) == 6 {
		mnc3 = d[5]
	}
	return PLMNIdentity{
		d[1]<<4 | d[0],
		mnc3<<4 | d[2],
		d[4]<<4 | d[3],
	}, nil
}

// Digits decodes the identity back to MCC and MNC digits.
func (p PLMNIdentity) Digits() (string, error) {
	nibbles := []byte{p[0] & 0xf, p[0] >> 4, p[1] & 0xf, p[2] & 0xf, p[2] >> 4}
	if mnc3 := p[1] >> 4; mnc3 != plmnFiller {
		nibbles = append(nibbles, mnc3)
	}
	out := make([]byte, len(nibbles))
	for i, n := range nibbles {
		if n > 9 {
			return "", fmt.Errorf("%w: % x", ErrInvalidPLMN, p[:])
		}
		out[i] = '0' + n
	}
	return string(out), nil
}

func (p PLMNIdentity) String() string {
	s, err := p.Digits()
	if err != nil {
		return fmt.Sprintf("plmn(% x)", p[:])
	}
	return s
}

// AddressFromIP encodes an IPv4 or IPv6 address as a transport layer
// address.
func AddressFromIP(s string) (BitString, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return BitString{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if addr.Is4() {
		b := addr.As4()
		return BitString{Bytes: b[:], Len: 32}, nil
	}
	b := addr.As16()
	return BitString{Bytes: b[:], Len: 128}, nil
}

// IP decodes a transport layer address carrying a single IPv4 or IPv6
// address.
func (b BitString) IP() (string, error) {
	switch {
	case b.Len == 32 && len(b.Bytes) == 4:
		return netip.AddrFrom4([4]byte(b.Bytes)).String(), nil
	case b.Len == 128 && len(b.Bytes) == 16:
		return netip.AddrFrom16([16]byte(b.Bytes)).String(), nil
	default:
		return "", fmt.Errorf("%w: %d bits in %d bytes", ErrInvalidAddress, b.Len, len(b.Bytes))
	}
}

// BitStringFromUint encodes the low n bits of v.
func BitStringFromUint(v uint64, n uint16) BitString {
	nbytes := (int(n) + 7) / 8
	out := make([]byte, nbytes)
	v <<= uint(nbytes*8 - int(n))
	for i := nbytes - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return BitString{Bytes: out, Len: n}
}

// Uint decodes a bit string of at most 64 bits.
func (b BitString) Uint() (uint64, error) {
	if b.Len > 64 || len(b.Bytes) != (int(b.Len)+7)/8 {
		return 0, fmt.Errorf("e1msg: bit string of %d bits in %d bytes", b.Len, len(b.Bytes))
	}
	var v uint64
	for _, c := range b.Bytes {
		v = v<<8 | uint64(c)
	}
	return v >> uint(len(b.Bytes)*8-int(b.Len)), nil
}

func TEIDFromUint(v uint32) GTPTEID {
	var t GTPTEID
	binary.BigEndian.PutUint32(t[:], v)
	return t
}

func (t GTPTEID) Uint() uint32 { return binary.BigEndian.Uint32(t[:]) }
