// internal/dtmf/symbols.go
// Package dtmf encodes hex payloads into DTMF tone sequences and recovers
// them from sampled audio.
package dtmf

// Symbol is one key of the 4x4 DTMF keypad.
type Symbol byte

const (
	// NoSymbol marks a silence segment
	NoSymbol Symbol = 0
	// StartMarker opens every tone sequence
	StartMarker Symbol = '*'
	// StopMarker closes every tone sequence
	StopMarker Symbol = '#'
)

// FrequencyPair is the (row, column) tone pair of a symbol in Hz.
// The zero value means silence.
type FrequencyPair struct {
	Row float64
	Col float64
}

// IsZero reports whether the pair carries no tone.
func (p FrequencyPair) IsZero() bool {
	return p == FrequencyPair{}
}

// Low-group (row) and high-group (column) frequencies, ascending.
var (
	RowFrequencies = [4]float64{697, 770, 852, 941}
	ColFrequencies = [4]float64{1209, 1336, 1477, 1633}
)

// keypad is the fixed DTMF matrix: keypad[row][col].
var keypad = [4][4]Symbol{
	{'1', '2', '3', 'A'},
	{'4', '5', '6', 'B'},
	{'7', '8', '9', 'C'},
	{'*', '0', '#', 'D'},
}

var (
	symbolPairs [256]FrequencyPair
	symbolValid [256]bool

	// hexSymbols maps an input byte to its symbol. 'e' and 'f' share the
	// D key: the keypad has 16 cells and two of them are the markers.
	hexSymbols [256]Symbol

	// symbolHex is the reverse of hexSymbols restricted to the keys that
	// decode unambiguously.
	symbolHex [256]rune
)

func init() {
	for r, row := range keypad {
		for c, s := range row {
			symbolPairs[s] = FrequencyPair{Row: RowFrequencies[r], Col: ColFrequencies[c]}
			symbolValid[s] = true
		}
	}

	for ch := '0'; ch <= '9'; ch++ {
		hexSymbols[ch] = Symbol(ch)
		symbolHex[ch] = ch
	}
	for i, s := range []Symbol{'A', 'B', 'C', 'D', 'D', 'D'} {
		lower := 'a' + rune(i)
		upper := 'A' + rune(i)
		hexSymbols[lower] = s
		hexSymbols[upper] = s
		if symbolHex[s] == 0 {
			symbolHex[s] = lower
		}
	}
}

// Symbols returns the 16 keypad symbols in row-major order.
func Symbols() []Symbol {
	out := make([]Symbol, 0, 16)
	for _, row := range keypad {
		out = append(out, row[:]...)
	}
	return out
}

// Valid reports whether s is one of the 16 keypad symbols.
func (s Symbol) Valid() bool {
	return symbolValid[s]
}

// IsMarker reports whether s is the start or stop marker.
func (s Symbol) IsMarker() bool {
	return s == StartMarker || s == StopMarker
}

func (s Symbol) String() string {
	if s == NoSymbol {
		return "silence"
	}
	return string(rune(s))
}

// FrequenciesOf returns the tone pair for s.
func FrequenciesOf(s Symbol) (FrequencyPair, bool) {
	if !symbolValid[s] {
		return FrequencyPair{}, false
	}
	return symbolPairs[s], true
}

// SymbolAt returns the symbol whose tone pair is exactly (row, col).
func SymbolAt(row, col float64) (Symbol, bool) {
	r := indexOf(RowFrequencies, row)
	c := indexOf(ColFrequencies, col)
	if r < 0 || c < 0 {
		return NoSymbol, false
	}
	return keypad[r][c], true
}

func indexOf(set [4]float64, f float64) int {
	for i, v := range set {
		if v == f {
			return i
		}
	}
	return -1
}

// SymbolForHex maps a hex character (either case) to its symbol.
func SymbolForHex(ch rune) (Symbol, bool) {
	if ch < 0 || ch > 255 {
		return NoSymbol, false
	}
	s := hexSymbols[ch]
	return s, s != NoSymbol
}

// HexOf returns the lowercase hex character a decoded symbol stands for.
// Markers have no hex equivalent. D always decodes as 'd'.
func HexOf(s Symbol) (rune, bool) {
	h := symbolHex[s]
	return h, h != 0
}
