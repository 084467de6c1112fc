package sds

import (
	"bytes"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	DefaultPrintableRatio = 0.85
	// DefaultWordRatio is the share of letters, digits and spaces that
	// must be exceeded.
	DefaultWordRatio      = 0.5

	// share of GSM 7-bit output allowed outside ASCII
	gsmNonASCIIRatio = 0.1

	// Bodies without a recognised header need at least this many
	// characters, and 8-bit text may have at most unheadedNonASCIIRatio
	// of them outside ASCII.
	unheadedMinLength     = 4
	unheadedNonASCIIRatio = 0.2
)

type Kind int

const (
	KindBinary Kind = iota
	KindText
)

func (k Kind) String() string {
	if k == KindText {
		return "text"
	}
	return "binary"
}

// Message is the decoded form of a short data message. Data is the body
// after any recognised header.
type Message struct {
	Kind     Kind
	Text     string
	Encoding Encoding
	Format   string
	Data     []byte
	Location *Location
}

// Decoder classifies message bytes as text or binary.
type Decoder struct {
	headers        []Header
	printableRatio float64
	wordRatio      float64
}

type DecoderOption func(d *Decoder)

// WithHeaders registers headers ahead of the built-in ones.
func WithHeaders(headers ...Header) DecoderOption {
	return func(d *Decoder) {
		d.headers = append(append([]Header(nil), headers...), d.headers...)
	}
}

func WithPrintableRatio(r float64) DecoderOption {
	return func(d *Decoder) {
		if r > 0 && r <= 1 {
			d.printableRatio = r
		}
	}
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		headers:        DefaultHeaders(),
		printableRatio: DefaultPrintableRatio,
		wordRatio:      DefaultWordRatio,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode never fails; bytes that are not convincingly text come back as
// KindBinary with the bytes untouched.
func (d *Decoder) Decode(data []byte) Message {
	body := bytes.TrimRight(data, "\x00")
	msg := Message{}

	var hint Encoding
	for _, h := range d.headers {
		if !h.match(body) {
			continue
		}
		msg.Format = h.Name
		hint = h.encoding(body)
		body = body[h.Skip:]
		if h.Location {
			if loc, ok := ParseLIP(body); ok {
				msg.Data = append([]byte(nil), body...)
				msg.Location = loc
				return msg
			}
		}
		break
	}
	msg.Data = append([]byte{}, body...)

	headed := msg.Format != ""
	for _, enc := range encodingOrder(hint) {
		text, ok := decodeAs(enc, body)
		if !ok || !d.printableDominant(text, enc == EncodingUTF8) {
			continue
		}
		if enc == EncodingGSM7 && nonASCIIRatio(text) > gsmNonASCIIRatio {
			continue
		}
		if !headed && !plausibleUnheaded(text, enc) {
			continue
		}
		msg.Kind = KindText
		msg.Text = text
		msg.Encoding = enc
		return msg
	}
	return msg
}

// encodingOrder lists the encodings to try. Packed GSM 7-bit is only tried
// when a header selects it; unpacking arbitrary bytes into septets reads
// like text far too often.
func encodingOrder(hint Encoding) []Encoding {
	order := []Encoding{EncodingLatin1, EncodingUTF8}
	if hint == "" {
		return order
	}
	out := []Encoding{hint}
	for _, e := range order {
		if e != hint {
			out = append(out, e)
		}
	}
	return out
}

func plausibleUnheaded(text string, enc Encoding) bool {
	if utf8.RuneCountInString(text) < unheadedMinLength {
		return false
	}
	return enc == EncodingUTF8 || nonASCIIRatio(text) <= unheadedNonASCIIRatio
}

func decodeAs(enc Encoding, body []byte) (string, bool) {
	switch enc {
	case EncodingGSM7:
		return decodeGSM7(body)
	case EncodingLatin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
		if err != nil {
			return "", false
		}
		return string(out), true
	case EncodingUTF8:
		if !utf8.Valid(body) {
			return "", false
		}
		return string(body), true
	}
	return "", false
}

// printableDominant requires mostly printable characters, mostly letters,
// digits and spaces, and not a single repeated character. Only ASCII
// letters count unless unicodeLetters is set.
func (d *Decoder) printableDominant(text string, unicodeLetters bool) bool {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return false
	}
	printable, words, same := 0, 0, 0
	for _, r := range runes {
		if isPrintable(r) {
			printable++
		}
		if r == ' ' || ((r < utf8.RuneSelf || unicodeLetters) && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			words++
		}
		if r == runes[0] {
			same++
		}
	}
	if n > 4 && same == n {
		return false
	}
	return float64(printable)/float64(n) >= d.printableRatio && float64(words)/float64(n) > d.wordRatio
}

func isPrintable(r rune) bool {
	switch {
	case r >= 0x20 && r <= 0x7e:
		return true
	case r == '\n' || r == '\r' || r == '\t':
		return true
	case r >= 0xa0:
		return unicode.IsPrint(r)
	}
	return false
}

func nonASCIIRatio(text string) float64 {
	n, non := 0, 0
	for _, r := range text {
		n++
		if r >= utf8.RuneSelf {
			non++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(non) / float64(n)
}
