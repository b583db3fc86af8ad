package pdu_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangoma/wat/pdu"
)

func TestPack7BitKnownVector(t *testing.T) {
	// the classic GSM packing example.
	septets, err := pdu.Encode7Bit("hellohello")
	require.Nil(t, err)
	packed := pdu.Pack7Bit(septets, 0)
	assert.Equal(t, "e8329bfd4697d9ec37", hex.EncodeToString(packed))

	back, err := pdu.Unpack7Bit(packed, len(septets), 0)
	require.Nil(t, err)
	assert.Equal(t, "hellohello", pdu.Decode7Bit(back))
}

func TestPack7BitLengthLaw(t *testing.T) {
	// octet length of n packed septets is (n*7+7)/8.
	for n := 1; n <= 160; n++ {
		septets := make([]byte, n)
		for i := range septets {
			septets[i] = byte(i % 128)
		}
		packed := pdu.Pack7Bit(septets, 0)
		require.Equal(t, (n*7+7)/8, len(packed), "n=%d", n)
		back, err := pdu.Unpack7Bit(packed, n, 0)
		require.Nil(t, err)
		require.Equal(t, septets, back, "n=%d", n)
	}
}

func TestPack7BitFill(t *testing.T) {
	// with fill bits the data starts on a septet boundary past a UDH.
	septets, err := pdu.Encode7Bit("hi")
	require.Nil(t, err)
	for fill := 0; fill < 7; fill++ {
		packed := pdu.Pack7Bit(septets, fill)
		back, err := pdu.Unpack7Bit(packed, len(septets), fill)
		require.Nil(t, err)
		require.Equal(t, septets, back, "fill=%d", fill)
	}
}

func TestEncode7BitExtension(t *testing.T) {
	septets, err := pdu.Encode7Bit("a{b")
	require.Nil(t, err)
	// '{' escapes into the extension table.
	assert.Equal(t, []byte{0x61, 0x1b, 0x28, 0x62}, septets)
	assert.Equal(t, "a{b", pdu.Decode7Bit(septets))

	_, err = pdu.Encode7Bit("héllo☎")
	assert.NotNil(t, err)
}

func TestFitsDefault(t *testing.T) {
	assert.True(t, pdu.FitsDefault("Hi there"))
	assert.True(t, pdu.FitsDefault("café @ £5 {ok}"))
	assert.False(t, pdu.FitsDefault("Привет"))
	assert.False(t, pdu.FitsDefault("☎"))
}

func TestSemiOctets(t *testing.T) {
	patterns := []struct {
		digits string
		hex    string
	}{
		{"12125551212", "2121551512f2"},
		{"14165551212", "4161551512f2"},
		{"5551212", "551512f2"},
		{"22", "22"},
		{"1", "f1"},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			data, err := pdu.EncodeSemiOctets(p.digits)
			require.Nil(t, err)
			assert.Equal(t, p.hex, hex.EncodeToString(data))
			assert.Equal(t, p.digits, pdu.DecodeSemiOctets(data, len(p.digits)))
		}
		t.Run(p.digits, f)
	}

	_, err := pdu.EncodeSemiOctets("555-1212")
	assert.NotNil(t, err)
}

func TestSubmitEncodeKnown(t *testing.T) {
	p := pdu.Submit{
		SMSC:    pdu.Address{Digits: "+12125551212"},
		To:      pdu.Address{Digits: "+14165551212"},
		Message: "Hi",
	}
	data, tpduLen, err := p.Encode()
	require.Nil(t, err)
	assert.Equal(t, 15, tpduLen)
	assert.Equal(t, "07912121551512f201000b914161551512f2000002c834",
		hex.EncodeToString(data))
}

func TestSubmitRoundTrip(t *testing.T) {
	patterns := []struct {
		name string
		in   pdu.Submit
	}{
		{
			"7bit",
			pdu.Submit{
				SMSC:    pdu.Address{Digits: "+12125551212"},
				To:      pdu.Address{Digits: "+14165551212"},
				Message: "Hi",
			},
		},
		{
			"national",
			pdu.Submit{
				SMSC:    pdu.Address{Digits: "12125551212", TON: pdu.TONUnknown, NPI: pdu.NPIISDN},
				To:      pdu.Address{Digits: "5551212", TON: pdu.TONUnknown, NPI: pdu.NPIISDN},
				Message: "hello world",
			},
		},
		{
			"ucs2 auto",
			pdu.Submit{
				SMSC:    pdu.Address{Digits: "+12125551212"},
				To:      pdu.Address{Digits: "+14165551212"},
				Message: "Привет",
			},
		},
		{
			"relative vp",
			pdu.Submit{
				SMSC:       pdu.Address{Digits: "+12125551212"},
				To:         pdu.Address{Digits: "+14165551212"},
				MessageRef: 42,
				VPF:        pdu.VPFRelative,
				VP:         0xaa,
				Message:    "expiring",
			},
		},
		{
			"concat",
			pdu.Submit{
				SMSC:    pdu.Address{Digits: "+12125551212"},
				To:      pdu.Address{Digits: "+14165551212"},
				UDH:     &pdu.UDH{Ref: 7, Total: 2, Seq: 1},
				Message: "part one of a longer message",
			},
		},
		{
			"concat 16bit ref",
			pdu.Submit{
				SMSC:    pdu.Address{Digits: "+12125551212"},
				To:      pdu.Address{Digits: "+14165551212"},
				UDH:     &pdu.UDH{Ref: 0x1234, Ref16: true, Total: 3, Seq: 2},
				Message: "part two",
			},
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			data, _, err := p.in.Encode()
			require.Nil(t, err)
			out, err := pdu.DecodeSubmit(data)
			require.Nil(t, err)
			assert.Equal(t, p.in.SMSC.Digits, out.SMSC.Digits)
			assert.Equal(t, p.in.To.Digits, out.To.Digits)
			assert.Equal(t, p.in.Message, out.Message)
			assert.Equal(t, p.in.MessageRef, out.MessageRef)
			assert.Equal(t, p.in.VPF, out.VPF)
			if p.in.VPF == pdu.VPFRelative {
				assert.Equal(t, p.in.VP, out.VP)
			}
			if p.in.UDH != nil {
				require.NotNil(t, out.UDH)
				assert.Equal(t, *p.in.UDH, *out.UDH)
			} else {
				assert.Nil(t, out.UDH)
			}
		}
		t.Run(p.name, f)
	}
}

func TestSubmitTPDULenExcludesSMSC(t *testing.T) {
	p := pdu.Submit{
		SMSC:    pdu.Address{Digits: "+12125551212"},
		To:      pdu.Address{Digits: "+14165551212"},
		Message: "Hi",
	}
	data, tpduLen, err := p.Encode()
	require.Nil(t, err)
	// SMSC field is length octet plus its value
	smscField := 1 + int(data[0])
	assert.Equal(t, len(data)-smscField, tpduLen)

	// and with no SMSC the field is a single zero octet
	p.SMSC = pdu.Address{}
	data, tpduLen, err = p.Encode()
	require.Nil(t, err)
	assert.Equal(t, byte(0), data[0])
	assert.Equal(t, len(data)-1, tpduLen)
}

func TestSubmitTooLong(t *testing.T) {
	msg := make([]byte, 161)
	for i := range msg {
		msg[i] = 'x'
	}
	p := pdu.Submit{To: pdu.Address{Digits: "5551212"}, Message: string(msg)}
	_, _, err := p.Encode()
	assert.Equal(t, pdu.ErrMessageTooLong, err)

	// 160 fits exactly
	p.Message = string(msg[:160])
	_, _, err = p.Encode()
	assert.Nil(t, err)
}

func TestDeliverRoundTrip(t *testing.T) {
	in := pdu.Deliver{
		SMSC:    pdu.Address{Digits: "+12125551212"},
		From:    pdu.Address{Digits: "+14165551212"},
		SCTS:    pdu.Timestamp{Year: 11, Month: 11, Day: 23, Hour: 14, Minute: 42, Second: 17, TZ: -8},
		Message: "Hello from the network",
	}
	data, err := in.Encode()
	require.Nil(t, err)
	out, err := pdu.DecodeDeliver(data)
	require.Nil(t, err)
	assert.Equal(t, in.SMSC.Digits, out.SMSC.Digits)
	assert.Equal(t, in.From.Digits, out.From.Digits)
	assert.Equal(t, in.SCTS, out.SCTS)
	assert.Equal(t, in.Message, out.Message)
	assert.Nil(t, out.UDH)
}

func TestDeliverConcatRoundTrip(t *testing.T) {
	in := pdu.Deliver{
		From:    pdu.Address{Digits: "+14165551212"},
		UDH:     &pdu.UDH{Ref: 200, Total: 2, Seq: 2},
		Message: "and the second part",
	}
	data, err := in.Encode()
	require.Nil(t, err)
	out, err := pdu.DecodeDeliver(data)
	require.Nil(t, err)
	require.NotNil(t, out.UDH)
	assert.Equal(t, *in.UDH, *out.UDH)
	assert.Equal(t, in.Message, out.Message)
}

func TestDeliverUCS2(t *testing.T) {
	in := pdu.Deliver{
		From:    pdu.Address{Digits: "+14165551212"},
		Message: "Привет мир",
	}
	data, err := in.Encode()
	require.Nil(t, err)
	out, err := pdu.DecodeDeliver(data)
	require.Nil(t, err)
	assert.Equal(t, pdu.AlphabetUCS2, out.DCS.Alphabet)
	assert.Equal(t, in.Message, out.Message)
}

func TestDecodeDeliverKnown(t *testing.T) {
	// the dreamfabric reference PDU: "hellohello" from 27838890001.
	data, err := hex.DecodeString(
		"07917238010010f5040bc87238880900f10000993092516195800ae8329bfd4697d9ec37")
	require.Nil(t, err)
	out, err := pdu.DecodeDeliver(data)
	require.Nil(t, err)
	assert.Equal(t, "+27831000015", out.SMSC.Digits)
	assert.Equal(t, "hellohello", out.Message)
	assert.Equal(t, pdu.AlphabetDefault, out.DCS.Alphabet)
	assert.Equal(t, 99, out.SCTS.Year)
}

func TestDecodeTruncated(t *testing.T) {
	p := pdu.Submit{
		SMSC:    pdu.Address{Digits: "+12125551212"},
		To:      pdu.Address{Digits: "+14165551212"},
		Message: "Hi",
	}
	data, _, err := p.Encode()
	require.Nil(t, err)
	for i := 0; i < len(data); i++ {
		_, err := pdu.DecodeSubmit(data[:i])
		require.NotNil(t, err, "len=%d", i)
	}
}

func TestDecodeBadMTI(t *testing.T) {
	_, err := pdu.DecodeDeliver([]byte{0x00, 0x01, 0x00})
	assert.Equal(t, pdu.ErrBadMTI, err)
	_, err = pdu.DecodeSubmit([]byte{0x00, 0x00, 0x00})
	assert.Equal(t, pdu.ErrBadMTI, err)
}

func TestUCS2(t *testing.T) {
	data := pdu.EncodeUCS2("Hi€")
	assert.Equal(t, []byte{0x00, 'H', 0x00, 'i', 0x20, 0xac}, data)
	s, err := pdu.DecodeUCS2(data)
	require.Nil(t, err)
	assert.Equal(t, "Hi€", s)

	_, err = pdu.DecodeUCS2([]byte{0x00})
	assert.NotNil(t, err)
}
