// Package pdu implements the SMS PDU codec of GSM 03.40: SMS-SUBMIT and
// SMS-DELIVER transfer units with semi-octet addresses, the 7-bit default
// alphabet packing of GSM 03.38, UCS-2 user data, and the optional user
// data header used for concatenation.
package pdu

import (
	"unicode/utf16"

	"github.com/pkg/errors"
)

var (
	// ErrShortPDU indicates the octet stream ended inside a field.
	ErrShortPDU = errors.New("pdu truncated")
	// ErrBadDigit indicates a non-decimal character in an address.
	ErrBadDigit = errors.New("invalid address digit")
	// ErrMessageTooLong indicates user data exceeding the single PDU limit.
	ErrMessageTooLong = errors.New("message too long")
	// ErrBadAlphabet indicates a DCS alphabet this codec does not handle.
	ErrBadAlphabet = errors.New("unsupported alphabet")
	// ErrBadMTI indicates a message type other than the one being decoded.
	ErrBadMTI = errors.New("unexpected message type indicator")
)

// Type-of-number values carried in the type-of-address octet.
const (
	TONUnknown       = 0
	TONInternational = 1
	TONNational      = 2
)

// Numbering-plan values carried in the type-of-address octet.
const (
	NPIUnknown = 0
	NPIISDN    = 1
)

// Alphabet is the DCS character coding.
type Alphabet byte

// DCS alphabets.
const (
	AlphabetDefault Alphabet = 0
	Alphabet8Bit    Alphabet = 1
	AlphabetUCS2    Alphabet = 2
)

// Validity period formats, as encoded in the SUBMIT first octet.
const (
	VPFNone     = 0x0
	VPFEnhanced = 0x1
	VPFRelative = 0x2
	VPFAbsolute = 0x3
)

// Address is a semi-octet encoded phone number with its type-of-address.
type Address struct {
	Digits string
	TON    byte
	NPI    byte
}

// TOA returns the type-of-address octet.
func (a Address) TOA() byte {
	return 0x80 | (a.TON&0x7)<<4 | a.NPI&0xf
}

// DCS is the data coding scheme octet, decomposed.
type DCS struct {
	Compressed bool
	Alphabet   Alphabet
	HasClass   bool
	Class      byte
}

func (d DCS) octet() byte {
	var b byte
	if d.Compressed {
		b |= 0x20
	}
	if d.HasClass {
		b |= 0x10
	}
	b |= byte(d.Alphabet&0x3) << 2
	b |= d.Class & 0x3
	return b
}

func decodeDCS(b byte) DCS {
	return DCS{
		Compressed: b&0x20 != 0,
		Alphabet:   Alphabet(b >> 2 & 0x3),
		HasClass:   b&0x10 != 0,
		Class:      b & 0x3,
	}
}

// Timestamp is the service centre time stamp (TP-SCTS).
// TZ is the offset from GMT in quarter hours.
type Timestamp struct {
	Year   int // two digit
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
	TZ     int
}

func (t Timestamp) encode() []byte {
	tz := t.TZ
	var sign byte
	if tz < 0 {
		tz = -tz
		sign = 0x08
	}
	return []byte{
		swapNibble(t.Year % 100),
		swapNibble(t.Month),
		swapNibble(t.Day),
		swapNibble(t.Hour),
		swapNibble(t.Minute),
		swapNibble(t.Second),
		swapNibble(tz) | sign,
	}
}

func decodeTimestamp(data []byte) Timestamp {
	t := Timestamp{
		Year:   unswapNibble(data[0]),
		Month:  unswapNibble(data[1]),
		Day:    unswapNibble(data[2]),
		Hour:   unswapNibble(data[3]),
		Minute: unswapNibble(data[4]),
		Second: unswapNibble(data[5]),
		TZ:     unswapNibble(data[6] &^ 0x08),
	}
	if data[6]&0x08 != 0 {
		t.TZ = -t.TZ
	}
	return t
}

func swapNibble(v int) byte {
	return byte(v%10)<<4 | byte(v/10%10)
}

func unswapNibble(b byte) int {
	return int(b&0xf)*10 + int(b>>4)
}

// UDH is the concatenation information carried in a user data header.
type UDH struct {
	Ref   uint16
	Ref16 bool // 16-bit reference (IEI 0x08) rather than 8-bit (IEI 0x00)
	Total byte
	Seq   byte
}

// encode renders the header including its leading length octet.
func (u UDH) encode() []byte {
	if u.Ref16 {
		return []byte{0x06, 0x08, 0x04, byte(u.Ref >> 8), byte(u.Ref), u.Total, u.Seq}
	}
	return []byte{0x05, 0x00, 0x03, byte(u.Ref), u.Total, u.Seq}
}

// Submit is an SMS-SUBMIT transfer unit together with its SMSC prefix.
type Submit struct {
	SMSC             Address // empty digits defer to the SIM default
	RejectDuplicates bool
	StatusReport     bool
	ReplyPath        bool
	MessageRef       byte
	To               Address
	PID              byte
	DCS              DCS
	VPF              byte
	VP               byte // relative validity, used when VPF == VPFRelative
	UDH              *UDH
	Message          string
}

// Encode renders the full octet stream written to the modem, and the
// length of the TPDU excluding the SMSC field, which is the length
// reported on the AT+CMGS command line.
//
// When the DCS names the default alphabet but the message does not fit in
// it, the alphabet is switched to UCS-2.
func (p *Submit) Encode() (data []byte, tpduLen int, err error) {
	data, err = encodeSMSCAddress(p.SMSC)
	if err != nil {
		return nil, 0, err
	}
	smscLen := len(data)

	fo := byte(0x01) // MTI = SMS-SUBMIT
	if p.RejectDuplicates {
		fo |= 0x04
	}
	fo |= (p.VPF & 0x3) << 3
	if p.StatusReport {
		fo |= 0x20
	}
	if p.UDH != nil {
		fo |= 0x40
	}
	if p.ReplyPath {
		fo |= 0x80
	}
	data = append(data, fo, p.MessageRef)

	da, err := encodeAddress(p.To)
	if err != nil {
		return nil, 0, err
	}
	data = append(data, da...)

	dcs := p.DCS
	if dcs.Alphabet == AlphabetDefault && !FitsDefault(p.Message) {
		dcs.Alphabet = AlphabetUCS2
	}
	data = append(data, p.PID, dcs.octet())

	switch p.VPF {
	case VPFNone:
	case VPFRelative:
		data = append(data, p.VP)
	default:
		return nil, 0, errors.Errorf("validity period format %d not supported", p.VPF)
	}

	udl, ud, err := encodeUserData(p.Message, dcs, p.UDH)
	if err != nil {
		return nil, 0, err
	}
	data = append(data, udl)
	data = append(data, ud...)

	return data, len(data) - smscLen, nil
}

// DecodeSubmit parses an octet stream containing an SMSC field followed by
// an SMS-SUBMIT TPDU.
func DecodeSubmit(data []byte) (*Submit, error) {
	r := &reader{data: data}
	p := Submit{}
	var err error
	if p.SMSC, err = decodeSMSCAddress(r); err != nil {
		return nil, err
	}
	fo, err := r.byte()
	if err != nil {
		return nil, err
	}
	if fo&0x03 != 0x01 {
		return nil, ErrBadMTI
	}
	p.RejectDuplicates = fo&0x04 != 0
	p.VPF = fo >> 3 & 0x3
	p.StatusReport = fo&0x20 != 0
	p.ReplyPath = fo&0x80 != 0
	udhi := fo&0x40 != 0

	if p.MessageRef, err = r.byte(); err != nil {
		return nil, err
	}
	if p.To, err = decodeAddress(r); err != nil {
		return nil, err
	}
	if p.PID, err = r.byte(); err != nil {
		return nil, err
	}
	b, err := r.byte()
	if err != nil {
		return nil, err
	}
	p.DCS = decodeDCS(b)
	switch p.VPF {
	case VPFNone:
	case VPFRelative:
		if p.VP, err = r.byte(); err != nil {
			return nil, err
		}
	default:
		if _, err = r.bytes(7); err != nil {
			return nil, err
		}
	}
	p.UDH, p.Message, err = decodeUserData(r, udhi, p.DCS)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Deliver is an SMS-DELIVER transfer unit together with its SMSC prefix.
type Deliver struct {
	SMSC         Address
	From         Address
	MoreMessages bool
	StatusReport bool
	ReplyPath    bool
	PID          byte
	DCS          DCS
	SCTS         Timestamp
	UDH          *UDH
	Message      string
}

// Encode renders the octet stream as a service centre would deliver it.
func (p *Deliver) Encode() ([]byte, error) {
	data, err := encodeSMSCAddress(p.SMSC)
	if err != nil {
		return nil, err
	}
	fo := byte(0x00) // MTI = SMS-DELIVER
	if !p.MoreMessages {
		fo |= 0x04
	}
	if p.StatusReport {
		fo |= 0x20
	}
	if p.UDH != nil {
		fo |= 0x40
	}
	if p.ReplyPath {
		fo |= 0x80
	}
	data = append(data, fo)

	oa, err := encodeAddress(p.From)
	if err != nil {
		return nil, err
	}
	data = append(data, oa...)

	dcs := p.DCS
	if dcs.Alphabet == AlphabetDefault && !FitsDefault(p.Message) {
		dcs.Alphabet = AlphabetUCS2
	}
	data = append(data, p.PID, dcs.octet())
	data = append(data, p.SCTS.encode()...)

	udl, ud, err := encodeUserData(p.Message, dcs, p.UDH)
	if err != nil {
		return nil, err
	}
	data = append(data, udl)
	data = append(data, ud...)
	return data, nil
}

// DecodeDeliver parses an octet stream containing an SMSC field followed
// by an SMS-DELIVER TPDU, as received in +CMT and +CMGR payloads.
func DecodeDeliver(data []byte) (*Deliver, error) {
	r := &reader{data: data}
	p := Deliver{}
	var err error
	if p.SMSC, err = decodeSMSCAddress(r); err != nil {
		return nil, err
	}
	fo, err := r.byte()
	if err != nil {
		return nil, err
	}
	if fo&0x03 != 0x00 {
		return nil, ErrBadMTI
	}
	p.MoreMessages = fo&0x04 == 0
	p.StatusReport = fo&0x20 != 0
	p.ReplyPath = fo&0x80 != 0
	udhi := fo&0x40 != 0

	if p.From, err = decodeAddress(r); err != nil {
		return nil, err
	}
	if p.PID, err = r.byte(); err != nil {
		return nil, err
	}
	b, err := r.byte()
	if err != nil {
		return nil, err
	}
	p.DCS = decodeDCS(b)
	scts, err := r.bytes(7)
	if err != nil {
		return nil, err
	}
	p.SCTS = decodeTimestamp(scts)
	p.UDH, p.Message, err = decodeUserData(r, udhi, p.DCS)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// EncodeSemiOctets packs decimal digits two to an octet, low nibble first,
// padding an odd count with 0xF.
func EncodeSemiOctets(digits string) ([]byte, error) {
	out := make([]byte, 0, (len(digits)+1)/2)
	for i := 0; i < len(digits); i += 2 {
		lo, err := digitVal(digits[i])
		if err != nil {
			return nil, err
		}
		hi := byte(0xf)
		if i+1 < len(digits) {
			if hi, err = digitVal(digits[i+1]); err != nil {
				return nil, err
			}
		}
		out = append(out, hi<<4|lo)
	}
	return out, nil
}

// DecodeSemiOctets unpacks up to n digits from semi-octet data, dropping
// the 0xF pad.
func DecodeSemiOctets(data []byte, n int) string {
	digits := make([]byte, 0, n)
	for _, b := range data {
		if len(digits) < n {
			digits = append(digits, '0'+b&0xf)
		}
		if hi := b >> 4; hi != 0xf && len(digits) < n {
			digits = append(digits, '0'+hi)
		}
	}
	return string(digits)
}

func digitVal(c byte) (byte, error) {
	if c < '0' || c > '9' {
		return 0, errors.Wrapf(ErrBadDigit, "%q", c)
	}
	return c - '0', nil
}

// normalize strips a leading '+', marking the address international.
func normalize(a Address) Address {
	if len(a.Digits) > 0 && a.Digits[0] == '+' {
		a.Digits = a.Digits[1:]
		a.TON = TONInternational
		a.NPI = NPIISDN
	}
	return a
}

// encodeSMSCAddress renders the SMSC field: length in octets covering the
// TOA and number, or a single zero octet when no SMSC is carried.
func encodeSMSCAddress(a Address) ([]byte, error) {
	a = normalize(a)
	if a.Digits == "" {
		return []byte{0x00}, nil
	}
	so, err := EncodeSemiOctets(a.Digits)
	if err != nil {
		return nil, err
	}
	out := []byte{byte(1 + len(so)), a.TOA()}
	return append(out, so...), nil
}

func decodeSMSCAddress(r *reader) (Address, error) {
	n, err := r.byte()
	if err != nil {
		return Address{}, err
	}
	if n == 0 {
		return Address{}, nil
	}
	data, err := r.bytes(int(n))
	if err != nil {
		return Address{}, err
	}
	a := Address{
		TON:    data[0] >> 4 & 0x7,
		NPI:    data[0] & 0xf,
		Digits: DecodeSemiOctets(data[1:], 2*(len(data)-1)),
	}
	if a.TON == TONInternational {
		a.Digits = "+" + a.Digits
	}
	return a, nil
}

// encodeAddress renders a TP-DA/TP-OA field: length in digits, TOA, and
// semi-octet digits.
func encodeAddress(a Address) ([]byte, error) {
	a = normalize(a)
	so, err := EncodeSemiOctets(a.Digits)
	if err != nil {
		return nil, err
	}
	out := []byte{byte(len(a.Digits)), a.TOA()}
	return append(out, so...), nil
}

func decodeAddress(r *reader) (Address, error) {
	n, err := r.byte()
	if err != nil {
		return Address{}, err
	}
	toa, err := r.byte()
	if err != nil {
		return Address{}, err
	}
	data, err := r.bytes((int(n) + 1) / 2)
	if err != nil {
		return Address{}, err
	}
	a := Address{
		TON:    toa >> 4 & 0x7,
		NPI:    toa & 0xf,
		Digits: DecodeSemiOctets(data, int(n)),
	}
	if a.TON == TONInternational {
		a.Digits = "+" + a.Digits
	}
	return a, nil
}

// encodeUserData renders TP-UDL and TP-UD, prepending the UDH and padding
// 7-bit data to the septet boundary.
func encodeUserData(msg string, dcs DCS, udh *UDH) (byte, []byte, error) {
	var udhBytes []byte
	if udh != nil {
		udhBytes = udh.encode()
	}
	switch dcs.Alphabet {
	case AlphabetDefault:
		septets, err := Encode7Bit(msg)
		if err != nil {
			return 0, nil, err
		}
		udl := OctetsToSeptets(len(udhBytes)) + len(septets)
		if udl > 160 {
			return 0, nil, ErrMessageTooLong
		}
		ud := append(udhBytes, Pack7Bit(septets, fillBits(len(udhBytes)))...)
		return byte(udl), ud, nil
	case AlphabetUCS2:
		enc := EncodeUCS2(msg)
		udl := len(udhBytes) + len(enc)
		if udl > 140 {
			return 0, nil, ErrMessageTooLong
		}
		return byte(udl), append(udhBytes, enc...), nil
	default:
		return 0, nil, ErrBadAlphabet
	}
}

func decodeUserData(r *reader, udhi bool, dcs DCS) (*UDH, string, error) {
	udl, err := r.byte()
	if err != nil {
		return nil, "", err
	}
	var udh *UDH
	udhOctets := 0
	if udhi {
		if udh, udhOctets, err = decodeUDH(r); err != nil {
			return nil, "", err
		}
	}
	switch dcs.Alphabet {
	case AlphabetDefault:
		count := int(udl) - OctetsToSeptets(udhOctets)
		if count < 0 {
			return nil, "", ErrShortPDU
		}
		fill := fillBits(udhOctets)
		data, err := r.bytes((fill + 7*count + 7) / 8)
		if err != nil {
			return nil, "", err
		}
		septets, err := Unpack7Bit(data, count, fill)
		if err != nil {
			return nil, "", err
		}
		return udh, Decode7Bit(septets), nil
	case AlphabetUCS2:
		n := int(udl) - udhOctets
		if n < 0 {
			return nil, "", ErrShortPDU
		}
		data, err := r.bytes(n)
		if err != nil {
			return nil, "", err
		}
		msg, err := DecodeUCS2(data)
		return udh, msg, err
	default:
		return nil, "", ErrBadAlphabet
	}
}

// decodeUDH parses a user data header, returning the concatenation info
// if present and the total header length including the length octet.
// Information elements other than concatenation are skipped.
func decodeUDH(r *reader) (*UDH, int, error) {
	udhl, err := r.byte()
	if err != nil {
		return nil, 0, err
	}
	ies, err := r.bytes(int(udhl))
	if err != nil {
		return nil, 0, err
	}
	var udh *UDH
	for i := 0; i+1 < len(ies); {
		iei := ies[i]
		iedl := int(ies[i+1])
		i += 2
		if i+iedl > len(ies) {
			return nil, 0, ErrShortPDU
		}
		switch {
		case iei == 0x00 && iedl == 3:
			udh = &UDH{Ref: uint16(ies[i]), Total: ies[i+1], Seq: ies[i+2]}
		case iei == 0x08 && iedl == 4:
			udh = &UDH{
				Ref:   uint16(ies[i])<<8 | uint16(ies[i+1]),
				Ref16: true,
				Total: ies[i+2],
				Seq:   ies[i+3],
			}
		}
		i += iedl
	}
	return udh, 1 + int(udhl), nil
}

// EncodeUCS2 converts text to UTF-16 big-endian octet pairs.
func EncodeUCS2(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, 2*len(units))
	for _, u := range units {
		out = append(out, byte(u>>8), byte(u))
	}
	return out
}

// DecodeUCS2 converts UTF-16 big-endian octet pairs back to text.
func DecodeUCS2(data []byte) (string, error) {
	if len(data)%2 != 0 {
		return "", ErrShortPDU
	}
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		units = append(units, uint16(data[i])<<8|uint16(data[i+1]))
	}
	return string(utf16.Decode(units)), nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrShortPDU
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, ErrShortPDU
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}
