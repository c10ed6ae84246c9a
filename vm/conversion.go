package vm

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Number <-> string
// ---------------------------------------------------------------------------

// FormatNumber renders f the way Number.prototype.toString() does with no
// radix: the shortest round-tripping digits, switching to exponent form
// for exponents >= 21 or <= -7.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case f == 0:
		return "0"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f < 0:
		return "-" + FormatNumber(-f)
	}

	if f == math.Trunc(f) && f < 1<<53 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}

	// d.ddddde±XX
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, expPart, _ := strings.Cut(s, "e")
	digits := strings.Replace(mant, ".", "", 1)
	exp, _ := strconv.Atoi(expPart)
	k := len(digits)
	n := exp + 1

	switch {
	case k <= n && n <= 21:
		return digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		return digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		return "0." + strings.Repeat("0", -n) + digits
	}

	e := n - 1
	sign := "+"
	if e < 0 {
		sign = "-"
		e = -e
	}
	if k == 1 {
		return digits + "e" + sign + strconv.Itoa(e)
	}
	return digits[:1] + "." + digits[1:] + "e" + sign + strconv.Itoa(e)
}

// FormatNumberRadix renders f in the given radix (2..36).
func FormatNumberRadix(f float64, radix int) string {
	if radix == 10 || math.IsNaN(f) || math.IsInf(f, 0) {
		return FormatNumber(f)
	}
	neg := f < 0
	if neg {
		f = -f
	}
	ip := math.Floor(f)
	frac := f - ip
	var out string
	if ip < 1<<53 {
		out = strconv.FormatInt(int64(ip), radix)
	} else {
		var sb []byte
		for ip >= 1 {
			d := int(math.Mod(ip, float64(radix)))
			sb = append([]byte{strconv.FormatInt(int64(d), radix)[0]}, sb...)
			ip = math.Floor(ip / float64(radix))
		}
		out = string(sb)
	}
	if frac > 0 {
		out += "."
		for i := 0; i < 52 && frac > 0; i++ {
			frac *= float64(radix)
			d := int(frac)
			out += strconv.FormatInt(int64(d), radix)
			frac -= float64(d)
		}
	}
	if neg {
		out = "-" + out
	}
	return out
}

func isJSSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', 0xA0, 0xFEFF, 0x1680, 0x2028, 0x2029, 0x202F, 0x205F, 0x3000:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}

func trimJSSpace(s string) string {
	return strings.TrimFunc(s, isJSSpace)
}

// StringToNumber implements ToNumber applied to a string.
func StringToNumber(s string) float64 {
	s = trimJSSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			return parseDigits(s[2:], base, true)
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-') {
			return math.NaN()
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	}
	return 99
}

// parseDigits converts digits in base. With strict set every character
// must be a digit; otherwise parsing stops at the first non-digit. It
// returns NaN when no digit was consumed.
func parseDigits(s string, base int, strict bool) float64 {
	result := 0.0
	n := 0
	for i := 0; i < len(s); i++ {
		d := digitValue(s[i])
		if d >= base {
			if strict {
				return math.NaN()
			}
			break
		}
		result = result*float64(base) + float64(d)
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return result
}

// ParseInt implements the global parseInt.
func ParseInt(s string, radix int) float64 {
	s = trimJSSpace(s)
	sign := 1.0
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}
	stripPrefix := true
	if radix != 0 {
		if radix < 2 || radix > 36 {
			return math.NaN()
		}
		if radix != 16 {
			stripPrefix = false
		}
	} else {
		radix = 10
	}
	if stripPrefix && len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
		radix = 16
	}
	return sign * parseDigits(s, radix, false)
}

// ParseFloat implements the global parseFloat.
func ParseFloat(s string) float64 {
	s = strings.TrimLeftFunc(s, isJSSpace)
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		if s[0] == '-' {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}
	sawDigit := false
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		sawDigit = true
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			sawDigit = true
		}
	}
	if !sawDigit {
		return math.NaN()
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && s[k] >= '0' && s[k] <= '9' {
			k++
		}
		if k > j {
			i = k
		}
	}
	f, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

// ---------------------------------------------------------------------------
// Primitive coercions
// ---------------------------------------------------------------------------

// ToBoolean implements the truthiness rules.
func ToBoolean(v Value) bool {
	switch v.kind {
	case KindUndefined, KindNull, kindHole:
		return false
	case KindBoolean:
		return v.AsBool()
	case KindNumber:
		f := v.AsNumber()
		return f != 0 && !math.IsNaN(f)
	case KindString:
		return v.str != ""
	case KindBigInt:
		return v.AsBigInt().Sign() != 0
	}
	return true
}

// primitiveToNumber converts a non-object value to a number.
func primitiveToNumber(v Value) float64 {
	switch v.kind {
	case KindUndefined, kindHole:
		return math.NaN()
	case KindNull:
		return 0
	case KindBoolean:
		if v.AsBool() {
			return 1
		}
		return 0
	case KindNumber:
		return v.AsNumber()
	case KindString:
		return StringToNumber(v.str)
	case KindBigInt:
		f, _ := new(big.Float).SetInt(v.AsBigInt()).Float64()
		return f
	}
	return math.NaN()
}

// ToInt32 implements the ToInt32 conversion on a number.
func ToInt32(f float64) int32 {
	return int32(ToUint32(f))
}

// ToUint32 implements the ToUint32 conversion on a number.
func ToUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	t := math.Trunc(f)
	m := math.Mod(t, 4294967296)
	if m < 0 {
		m += 4294967296
	}
	return uint32(m)
}

// ToIntegerOrInfinity truncates f toward zero, mapping NaN to 0.
func ToIntegerOrInfinity(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Trunc(f)
}

// arrayIndex parses a canonical array index key.
func arrayIndex(key string) (int, bool) {
	if key == "" || len(key) > 10 {
		return 0, false
	}
	if key[0] == '0' && len(key) > 1 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if n >= 4294967295 {
		return 0, false
	}
	return n, true
}

// ---------------------------------------------------------------------------
// UTF-16 views of Go strings
// ---------------------------------------------------------------------------

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// toUTF16 returns the UTF-16 code units of s.
func toUTF16(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// fromUTF16 converts code units back into a Go string. Lone surrogates
// become U+FFFD.
func fromUTF16(u []uint16) string {
	return string(utf16.Decode(u))
}

// StringLength returns the length of s in UTF-16 code units.
func StringLength(s string) int {
	if isASCII(s) {
		return len(s)
	}
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// utf16Slice returns the code units [from, to) of s as a string.
func utf16Slice(s string, from, to int) string {
	if isASCII(s) {
		return s[from:to]
	}
	return fromUTF16(toUTF16(s)[from:to])
}

// utf16At returns the code unit at i.
func utf16At(s string, i int) uint16 {
	if isASCII(s) {
		return uint16(s[i])
	}
	return toUTF16(s)[i]
}

// utf16Index finds sub in s starting at code unit from and returns the
// code-unit index or -1.
func utf16Index(s, sub string, from int) int {
	if isASCII(s) && isASCII(sub) {
		if from > len(s) {
			return -1
		}
		i := strings.Index(s[from:], sub)
		if i < 0 {
			return -1
		}
		return i + from
	}
	hay, needle := toUTF16(s), toUTF16(sub)
	for i := from; i+len(needle) <= len(hay); i++ {
		if equalUnits(hay[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

// utf16LastIndex finds the last sub in s at or before code unit from.
func utf16LastIndex(s, sub string, from int) int {
	hay, needle := toUTF16(s), toUTF16(sub)
	if from > len(hay)-len(needle) {
		from = len(hay) - len(needle)
	}
	for i := from; i >= 0; i-- {
		if equalUnits(hay[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func equalUnits(a, b []uint16) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// compareStrings compares by UTF-16 code units.
func compareStrings(a, b string) int {
	if isASCII(a) && isASCII(b) {
		return strings.Compare(a, b)
	}
	ua, ub := toUTF16(a), toUTF16(b)
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	}
	return 0
}
