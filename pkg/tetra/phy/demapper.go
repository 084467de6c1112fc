package phy

import "fmt"

// Dibit is the 2-bit value carried by one pi/4-DQPSK symbol.
type Dibit byte

// InvalidDibit marks a symbol that could not be demapped.
const InvalidDibit Dibit = 0xff

// InvalidSymbolError records a symbol outside {1,3,5,7}. Index is the
// position of the symbol since the demapper was created.
type InvalidSymbolError struct {
	Index int
	Value byte
}

func (e *InvalidSymbolError) Error() string {
	return fmt.Sprintf("invalid symbol %d at index %d", e.Value, e.Index)
}

var symbolDibits = [8]Dibit{InvalidDibit, 0, InvalidDibit, 1, InvalidDibit, 3, InvalidDibit, 2}

// indexed by dibit value
var dibitSymbols = [4]byte{1, 3, 7, 5}

// DemapSymbol returns the dibit for one symbol, or InvalidDibit.
func DemapSymbol(s byte) Dibit {
	if int(s) >= len(symbolDibits) {
		return InvalidDibit
	}
	return symbolDibits[s]
}

// Demap converts symbols to dibits. Invalid symbols produce InvalidDibit
// and an error entry; the output always has one dibit per symbol.
func Demap(symbols []byte) ([]Dibit, []InvalidSymbolError) {
	out := make([]Dibit, len(symbols))
	var errs []InvalidSymbolError
	for i, s := range symbols {
		out[i] = DemapSymbol(s)
		if out[i] == InvalidDibit {
			errs = append(errs, InvalidSymbolError{Index: i, Value: s})
		}
	}
	return out, errs
}

// DibitsToBits expands dibits into bits, high bit first. Invalid dibits
// become 00.
func DibitsToBits(dibits []Dibit) []byte {
	out := make([]byte, 0, len(dibits)*2)
	for _, d := range dibits {
		if d == InvalidDibit {
			out = append(out, 0, 0)
			continue
		}
		out = append(out, byte(d>>1)&1, byte(d)&1)
	}
	return out
}

// Remap converts bits back into symbols. A trailing odd bit is ignored.
func Remap(bits []byte) []byte {
	out := make([]byte, len(bits)/2)
	for i := range out {
		out[i] = dibitSymbols[(bits[2*i]&1)<<1|bits[2*i+1]&1]
	}
	return out
}

// Demapper is a streaming symbol-to-bit block. Output holds one bit per
// byte, two bits per input symbol.
type Demapper struct {
	index  int
	errors []InvalidSymbolError
}

func NewDemapper() *Demapper {
	return &Demapper{}
}

// WorkBuffer demaps input into output and returns the number of bits
// written. output must hold PredictOutputSize(len(input)) bytes.
func (d *Demapper) WorkBuffer(input []byte, output []byte) int {
	if len(output) < d.PredictOutputSize(len(input)) {
		panic(fmt.Sprintf("demapper output buffer too small: %d < %d", len(output), d.PredictOutputSize(len(input))))
	}
	for i, s := range input {
		dibit := DemapSymbol(s)
		if dibit == InvalidDibit {
			d.errors = append(d.errors, InvalidSymbolError{Index: d.index + i, Value: s})
			output[2*i] = 0
			output[2*i+1] = 0
			continue
		}
		output[2*i] = byte(dibit>>1) & 1
		output[2*i+1] = byte(dibit) & 1
	}
	d.index += len(input)
	return 2 * len(input)
}

func (d *Demapper) Work(symbols []byte) []byte {
	ret := make([]byte, d.PredictOutputSize(len(symbols)))
	d.WorkBuffer(symbols, ret)
	return ret
}

func (d *Demapper) PredictOutputSize(inputSize int) int {
	return inputSize * 2
}

// TakeErrors returns the invalid symbols seen since the last call.
func (d *Demapper) TakeErrors() []InvalidSymbolError {
	errs := d.errors
	d.errors = nil
	return errs
}

// Symbols is the number of symbols consumed so far.
func (d *Demapper) Symbols() int {
	return d.index
}
