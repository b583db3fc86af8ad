package pdu

import "github.com/pkg/errors"

// ErrNotGSM indicates a rune with no encoding in the GSM default alphabet.
var ErrNotGSM = errors.New("character not in GSM default alphabet")

const escape = 0x1b

// basic is the GSM 03.38 default alphabet, indexed by septet value.
// Index 0x1b is the escape to the extension table.
var basic = [128]rune{
	'@', '£', '$', '¥', 'è', 'é', 'ù', 'ì',
	'ò', 'Ç', '\n', 'Ø', 'ø', '\r', 'Å', 'å',
	'Δ', '_', 'Φ', 'Γ', 'Λ', 'Ω', 'Π', 'Ψ',
	'Σ', 'Θ', 'Ξ', 0, 'Æ', 'æ', 'ß', 'É',
	' ', '!', '"', '#', '¤', '%', '&', '\'',
	'(', ')', '*', '+', ',', '-', '.', '/',
	'0', '1', '2', '3', '4', '5', '6', '7',
	'8', '9', ':', ';', '<', '=', '>', '?',
	'¡', 'A', 'B', 'C', 'D', 'E', 'F', 'G',
	'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O',
	'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W',
	'X', 'Y', 'Z', 'Ä', 'Ö', 'Ñ', 'Ü', '§',
	'¿', 'a', 'b', 'c', 'd', 'e', 'f', 'g',
	'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o',
	'p', 'q', 'r', 's', 't', 'u', 'v', 'w',
	'x', 'y', 'z', 'ä', 'ö', 'ñ', 'ü', 'à',
}

// ext is the extension table reached through the escape septet.
var ext = map[byte]rune{
	0x0a: '\f',
	0x14: '^',
	0x28: '{',
	0x29: '}',
	0x2f: '\\',
	0x3c: '[',
	0x3d: '~',
	0x3e: ']',
	0x40: '|',
	0x65: '€',
}

var (
	toBasic = map[rune]byte{}
	toExt   = map[rune]byte{}
)

func init() {
	for i, r := range basic {
		if i == escape {
			continue
		}
		toBasic[r] = byte(i)
	}
	for c, r := range ext {
		toExt[r] = c
	}
}

// FitsDefault reports whether every rune of s is representable in the GSM
// default alphabet, including its extension table.
func FitsDefault(s string) bool {
	for _, r := range s {
		if _, ok := toBasic[r]; ok {
			continue
		}
		if _, ok := toExt[r]; ok {
			continue
		}
		return false
	}
	return true
}

// Encode7Bit converts text to a sequence of GSM default alphabet septet
// values, inserting extension escapes as required.
func Encode7Bit(s string) ([]byte, error) {
	septets := make([]byte, 0, len(s))
	for _, r := range s {
		if c, ok := toBasic[r]; ok {
			septets = append(septets, c)
			continue
		}
		if c, ok := toExt[r]; ok {
			septets = append(septets, escape, c)
			continue
		}
		return nil, errors.Wrapf(ErrNotGSM, "%q", r)
	}
	return septets, nil
}

// Decode7Bit converts a sequence of septet values back to text.
// Unknown extension codes decode per the standard fallback to the basic
// table.
func Decode7Bit(septets []byte) string {
	runes := make([]rune, 0, len(septets))
	for i := 0; i < len(septets); i++ {
		c := septets[i] & 0x7f
		if c == escape && i+1 < len(septets) {
			i++
			if r, ok := ext[septets[i]&0x7f]; ok {
				runes = append(runes, r)
			} else {
				runes = append(runes, basic[septets[i]&0x7f])
			}
			continue
		}
		runes = append(runes, basic[c])
	}
	return string(runes)
}

// Pack7Bit packs septet values into octets with the GSM packing scheme.
// fill is the number of zero bits inserted before the first septet so the
// user data starts on a septet boundary after a UDH.
func Pack7Bit(septets []byte, fill int) []byte {
	if len(septets) == 0 {
		return nil
	}
	out := make([]byte, 0, SeptetsToOctets(len(septets))+1)
	var acc uint32
	bits := uint(fill)
	for _, s := range septets {
		acc |= uint32(s&0x7f) << bits
		bits += 7
		for bits >= 8 {
			out = append(out, byte(acc))
			acc >>= 8
			bits -= 8
		}
	}
	if bits > 0 {
		out = append(out, byte(acc))
	}
	return out
}

// Unpack7Bit extracts count septet values from packed octets, skipping
// fill leading bits.
func Unpack7Bit(data []byte, count, fill int) ([]byte, error) {
	need := (fill + 7*count + 7) / 8
	if len(data) < need {
		return nil, ErrShortPDU
	}
	out := make([]byte, count)
	for i := 0; i < count; i++ {
		bitpos := fill + 7*i
		idx := bitpos / 8
		off := uint(bitpos % 8)
		v := uint16(data[idx]) >> off
		if off > 1 && idx+1 < len(data) {
			v |= uint16(data[idx+1]) << (8 - off)
		}
		out[i] = byte(v & 0x7f)
	}
	return out, nil
}

// SeptetsToOctets returns the packed octet length of n septets.
func SeptetsToOctets(n int) int {
	return (n*7 + 7) / 8
}

// OctetsToSeptets returns the number of septets spanned by n octets.
func OctetsToSeptets(n int) int {
	return (n*8 + 6) / 7
}

// fillBits returns the number of zero bits padding the user data to the
// next septet boundary after a header of udhOctets bytes (including the
// length byte).
func fillBits(udhOctets int) int {
	if udhOctets == 0 {
		return 0
	}
	return (7 - (udhOctets*8)%7) % 7
}
