package vm

import (
	"math"
	"strings"
	"time"
)

// maxTimeValue is the largest magnitude of a valid time value in ms.
const maxTimeValue = 8.64e15

func timeClip(ms float64) float64 {
	if math.IsNaN(ms) || math.Abs(ms) > maxTimeValue {
		return math.NaN()
	}
	return math.Trunc(ms) + 0 // +0 normalizes -0
}

func msToTime(ms float64, loc *time.Location) time.Time {
	return time.UnixMilli(int64(ms)).In(loc)
}

// formatDate renders a time value the way Date.prototype.toString does.
func formatDate(ms float64) string {
	if math.IsNaN(ms) {
		return "Invalid Date"
	}
	t := msToTime(ms, time.Local)
	name, _ := t.Zone()
	return t.Format("Mon Jan 02 2006 15:04:05 GMT-0700") + " (" + name + ")"
}

// makeDate builds a time value from calendar fields in loc. Fields past
// their normal range carry over the way Go's time.Date normalizes them.
func makeDate(fields [7]float64, loc *time.Location) float64 {
	for _, f := range fields {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return math.NaN()
		}
	}
	for i := range fields {
		fields[i] = math.Trunc(fields[i])
	}
	if math.Abs(fields[0]) > 400000 {
		return math.NaN()
	}
	t := time.Date(int(fields[0]), time.Month(int(fields[1])+1), int(fields[2]),
		int(fields[3]), int(fields[4]), int(fields[5]), 0, loc)
	return timeClip(float64(t.UnixMilli()) + fields[6])
}

var dateLayouts = []struct {
	layout string
	utc    bool // fields without an offset are UTC rather than local
}{
	{"2006-01-02T15:04:05.000Z07:00", false},
	{"2006-01-02T15:04:05Z07:00", false},
	{"2006-01-02T15:04:05.000", false},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02", true},
	{"2006-01", true},
	{"2006", true},
	{"Mon Jan 02 2006 15:04:05 GMT-0700", false},
	{"Mon Jan 02 2006 15:04:05", false},
	{"Mon Jan 02 2006", false},
	{time.RFC1123, false},
	{time.RFC1123Z, false},
	{"Mon, 02 Jan 2006 15:04:05 GMT", true},
	{"Jan 2, 2006 15:04:05", false},
	{"Jan 2, 2006", false},
	{"January 2, 2006 15:04:05", false},
	{"January 2, 2006", false},
	{"2006/01/02 15:04:05", false},
	{"2006/01/02", false},
	{"01/02/2006", false},
}

// parseDate implements Date.parse for ISO 8601 and the common
// human-readable forms. Unrecognized input yields NaN.
func parseDate(s string) float64 {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, " ("); i > 0 {
		s = s[:i]
	}
	for _, l := range dateLayouts {
		loc := time.Local
		if l.utc {
			loc = time.UTC
		}
		if t, err := time.ParseInLocation(l.layout, s, loc); err == nil {
			return timeClip(float64(t.UnixMilli()))
		}
	}
	return math.NaN()
}

func (vm *VM) newDate(ms float64) (Value, error) {
	return vm.alloc(Object{Class: ClassDate, Proto: vm.realm.dateProto, Primitive: Number(timeClip(ms))})
}

func nowMillis() float64 {
	return float64(time.Now().UnixMilli())
}

// dateFields reads up to seven numeric constructor-style arguments.
func (vm *VM) dateFields(args []Value, defaults [7]float64) ([7]float64, error) {
	fields := defaults
	for i := 0; i < len(args) && i < 7; i++ {
		f, err := vm.ToNumber(args[i])
		if err != nil {
			return fields, err
		}
		fields[i] = f
	}
	if y := fields[0]; len(args) > 0 && !math.IsNaN(y) && y >= 0 && y <= 99 && y == math.Trunc(y) {
		fields[0] = 1900 + y
	}
	return fields, nil
}

func (vm *VM) installDate() {
	dp := vm.realm.dateProto
	construct := func(vm *VM, _ Value, args []Value) (Value, error) {
		switch len(args) {
		case 0:
			return vm.newDate(nowMillis())
		case 1:
			v := args[0]
			if o := v.Object(); o != nil && o.Class == ClassDate {
				return vm.newDate(o.Primitive.AsNumber())
			}
			p, err := vm.toPrimitive(v, hintDefault)
			if err != nil {
				return Undefined, err
			}
			if p.kind == KindString {
				return vm.newDate(parseDate(p.str))
			}
			f, err := vm.ToNumber(p)
			if err != nil {
				return Undefined, err
			}
			return vm.newDate(f)
		}
		fields, err := vm.dateFields(args, [7]float64{0, 0, 1, 0, 0, 0, 0})
		if err != nil {
			return Undefined, err
		}
		return vm.newDate(makeDate(fields, time.Local))
	}
	call := func(vm *VM, _ Value, _ []Value) (Value, error) {
		return String(formatDate(nowMillis())), nil
	}
	ctor := vm.constructor("Date", 7, dp, call, construct)
	vm.defineMethods(ctor, []builtinMethod{
		{"now", 0, func(vm *VM, _ Value, _ []Value) (Value, error) {
			return Number(nowMillis()), nil
		}},
		{"parse", 1, func(vm *VM, _ Value, args []Value) (Value, error) {
			s, err := vm.ToString(arg(args, 0))
			if err != nil {
				return Undefined, err
			}
			return Number(parseDate(s)), nil
		}},
		{"UTC", 7, func(vm *VM, _ Value, args []Value) (Value, error) {
			fields, err := vm.dateFields(args, [7]float64{math.NaN(), 0, 1, 0, 0, 0, 0})
			if err != nil {
				return Undefined, err
			}
			return Number(makeDate(fields, time.UTC)), nil
		}},
	})
	vm.defineMethods(dp, dateMethods())
	vm.builtins.Declare("Date", ctor, true)
}

func thisDate(vm *VM, this Value, method string) (*Object, error) {
	if o := this.Object(); o != nil && o.Class == ClassDate {
		return o, nil
	}
	return nil, vm.throwError(TypeError, "this is not a Date object. (Date.prototype.%s)", method)
}

// field indices into a [7]float64 of calendar fields
const (
	fYear = iota
	fMonth
	fDay
	fHour
	fMinute
	fSecond
	fMilli
)

func splitTime(ms float64, loc *time.Location) [7]float64 {
	t := msToTime(ms, loc)
	return [7]float64{
		float64(t.Year()), float64(t.Month() - 1), float64(t.Day()),
		float64(t.Hour()), float64(t.Minute()), float64(t.Second()),
		float64(t.Nanosecond() / 1e6),
	}
}

func dateMethods() []builtinMethod {
	getter := func(name string, loc *time.Location, f func(t time.Time) float64) builtinMethod {
		return builtinMethod{name, 0, func(vm *VM, this Value, _ []Value) (Value, error) {
			o, err := thisDate(vm, this, name)
			if err != nil {
				return Undefined, err
			}
			ms := o.Primitive.AsNumber()
			if math.IsNaN(ms) {
				return NaN, nil
			}
			return Number(f(msToTime(ms, loc))), nil
		}}
	}
	// setter updates the fields starting at first from the arguments.
	setter := func(name string, loc *time.Location, first, maxArgs int) builtinMethod {
		return builtinMethod{name, maxArgs, func(vm *VM, this Value, args []Value) (Value, error) {
			o, err := thisDate(vm, this, name)
			if err != nil {
				return Undefined, err
			}
			ms := o.Primitive.AsNumber()
			if math.IsNaN(ms) {
				if first != fYear {
					return NaN, nil
				}
				ms = 0
			}
			fields := splitTime(ms, loc)
			if len(args) == 0 {
				o.Primitive = NaN
				return NaN, nil
			}
			for i := 0; i < maxArgs && i < len(args); i++ {
				f, err := vm.ToNumber(args[i])
				if err != nil {
					return Undefined, err
				}
				fields[first+i] = f
			}
			o.Primitive = Number(makeDate(fields, loc))
			return o.Primitive, nil
		}}
	}
	formatter := func(name string, f func(ms float64) string) builtinMethod {
		return builtinMethod{name, 0, func(vm *VM, this Value, _ []Value) (Value, error) {
			o, err := thisDate(vm, this, name)
			if err != nil {
				return Undefined, err
			}
			ms := o.Primitive.AsNumber()
			if math.IsNaN(ms) {
				if name == "toISOString" {
					return Undefined, vm.throwError(RangeError, "Invalid time value")
				}
				return String("Invalid Date"), nil
			}
			return String(f(ms)), nil
		}}
	}
	local, utc := time.Local, time.UTC
	year := func(t time.Time) float64 { return float64(t.Year()) }
	month := func(t time.Time) float64 { return float64(t.Month() - 1) }
	day := func(t time.Time) float64 { return float64(t.Day()) }
	weekday := func(t time.Time) float64 { return float64(t.Weekday()) }
	hour := func(t time.Time) float64 { return float64(t.Hour()) }
	minute := func(t time.Time) float64 { return float64(t.Minute()) }
	second := func(t time.Time) float64 { return float64(t.Second()) }
	milli := func(t time.Time) float64 { return float64(t.Nanosecond() / 1e6) }
	timeValue := func(name string) builtinMethod {
		return builtinMethod{name, 0, func(vm *VM, this Value, _ []Value) (Value, error) {
			o, err := thisDate(vm, this, name)
			if err != nil {
				return Undefined, err
			}
			return o.Primitive, nil
		}}
	}
	return []builtinMethod{
		timeValue("getTime"),
		timeValue("valueOf"),
		getter("getFullYear", local, year),
		getter("getMonth", local, month),
		getter("getDate", local, day),
		getter("getDay", local, weekday),
		getter("getHours", local, hour),
		getter("getMinutes", local, minute),
		getter("getSeconds", local, second),
		getter("getMilliseconds", local, milli),
		getter("getUTCFullYear", utc, year),
		getter("getUTCMonth", utc, month),
		getter("getUTCDate", utc, day),
		getter("getUTCDay", utc, weekday),
		getter("getUTCHours", utc, hour),
		getter("getUTCMinutes", utc, minute),
		getter("getUTCSeconds", utc, second),
		getter("getUTCMilliseconds", utc, milli),
		getter("getTimezoneOffset", local, func(t time.Time) float64 {
			_, off := t.Zone()
			return float64(-off / 60)
		}),
		{"setTime", 1, func(vm *VM, this Value, args []Value) (Value, error) {
			o, err := thisDate(vm, this, "setTime")
			if err != nil {
				return Undefined, err
			}
			f, err := vm.ToNumber(arg(args, 0))
			if err != nil {
				return Undefined, err
			}
			o.Primitive = Number(timeClip(f))
			return o.Primitive, nil
		}},
		setter("setFullYear", local, fYear, 3),
		setter("setMonth", local, fMonth, 2),
		setter("setDate", local, fDay, 1),
		setter("setHours", local, fHour, 4),
		setter("setMinutes", local, fMinute, 3),
		setter("setSeconds", local, fSecond, 2),
		setter("setMilliseconds", local, fMilli, 1),
		setter("setUTCFullYear", utc, fYear, 3),
		setter("setUTCMonth", utc, fMonth, 2),
		setter("setUTCDate", utc, fDay, 1),
		setter("setUTCHours", utc, fHour, 4),
		setter("setUTCMinutes", utc, fMinute, 3),
		setter("setUTCSeconds", utc, fSecond, 2),
		setter("setUTCMilliseconds", utc, fMilli, 1),
		formatter("toString", formatDate),
		formatter("toDateString", func(ms float64) string {
			return msToTime(ms, time.Local).Format("Mon Jan 02 2006")
		}),
		formatter("toTimeString", func(ms float64) string {
			t := msToTime(ms, time.Local)
			name, _ := t.Zone()
			return t.Format("15:04:05 GMT-0700") + " (" + name + ")"
		}),
		formatter("toISOString", isoString),
		formatter("toJSON", isoString),
		formatter("toUTCString", func(ms float64) string {
			return msToTime(ms, time.UTC).Format("Mon, 02 Jan 2006 15:04:05 GMT")
		}),
		formatter("toLocaleDateString", func(ms float64) string {
			return msToTime(ms, time.Local).Format("1/2/2006")
		}),
		formatter("toLocaleTimeString", func(ms float64) string {
			return msToTime(ms, time.Local).Format("3:04:05 PM")
		}),
		formatter("toLocaleString", func(ms float64) string {
			return msToTime(ms, time.Local).Format("1/2/2006, 3:04:05 PM")
		}),
	}
}

func isoString(ms float64) string {
	t := msToTime(ms, time.UTC)
	if y := t.Year(); y < 0 || y > 9999 {
		return t.Format("+002006-01-02T15:04:05.000Z")
	}
	return t.Format("2006-01-02T15:04:05.000Z")
}
