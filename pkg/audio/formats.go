// ABOUTME: Named sample format table
// ABOUTME: Maps ALSA-style format names to Format descriptions
package audio

import (
	"fmt"
	"sort"
	"strings"
)

func format(name string, enc Encoding, width, phys int, order ByteOrder) Format {
	return Format{Name: name, Encoding: enc, Width: width, PhysicalWidth: phys, ByteOrder: order}
}

// Predefined formats
var (
	S8      = format("S8", Signed, 8, 8, LittleEndian)
	U8      = format("U8", Unsigned, 8, 8, LittleEndian)
	S16LE   = format("S16_LE", Signed, 16, 16, LittleEndian)
	S16BE   = format("S16_BE", Signed, 16, 16, BigEndian)
	U16LE   = format("U16_LE", Unsigned, 16, 16, LittleEndian)
	U16BE   = format("U16_BE", Unsigned, 16, 16, BigEndian)
	S24LE   = format("S24_LE", Signed, 24, 32, LittleEndian)
	S24BE   = format("S24_BE", Signed, 24, 32, BigEndian)
	U24LE   = format("U24_LE", Unsigned, 24, 32, LittleEndian)
	U24BE   = format("U24_BE", Unsigned, 24, 32, BigEndian)
	S32LE   = format("S32_LE", Signed, 32, 32, LittleEndian)
	S32BE   = format("S32_BE", Signed, 32, 32, BigEndian)
	U32LE   = format("U32_LE", Unsigned, 32, 32, LittleEndian)
	U32BE   = format("U32_BE", Unsigned, 32, 32, BigEndian)
	FloatLE = format("FLOAT_LE", Float, 32, 32, LittleEndian)
	FloatBE = format("FLOAT_BE", Float, 32, 32, BigEndian)
	S24_3LE = format("S24_3LE", Signed, 24, 24, LittleEndian)
	S24_3BE = format("S24_3BE", Signed, 24, 24, BigEndian)
	U24_3LE = format("U24_3LE", Unsigned, 24, 24, LittleEndian)
	U24_3BE = format("U24_3BE", Unsigned, 24, 24, BigEndian)
)

var formatTable = []Format{
	S8, U8,
	S16LE, S16BE, U16LE, U16BE,
	S24LE, S24BE, U24LE, U24BE,
	S32LE, S32BE, U32LE, U32BE,
	FloatLE, FloatBE,
	S24_3LE, S24_3BE, U24_3LE, U24_3BE,
}

// Native-endian aliases, as accepted by the command line tools
var formatAliases = map[string]Format{
	"S16":   S16LE,
	"U16":   U16LE,
	"S24":   S24LE,
	"U24":   U24LE,
	"S32":   S32LE,
	"U32":   U32LE,
	"FLOAT": FloatLE,
}

// Formats returns every supported format
func Formats() []Format {
	out := make([]Format, len(formatTable))
	copy(out, formatTable)
	return out
}

// ParseFormat looks up a format by name (case-insensitive)
func ParseFormat(name string) (Format, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	for _, f := range formatTable {
		if f.Name == key {
			return f, nil
		}
	}
	if f, ok := formatAliases[key]; ok {
		return f, nil
	}
	return Format{}, fmt.Errorf("unknown sample format: %q", name)
}

// FormatNames returns the sorted names of all supported formats
func FormatNames() []string {
	names := make([]string, 0, len(formatTable))
	for _, f := range formatTable {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// ParseAccess looks up an access mode by name (case-insensitive)
func ParseAccess(name string) (Access, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	for a, n := range accessNames {
		if n == key {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown access mode: %q", name)
}
