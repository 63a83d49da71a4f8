package wave

import (
	"math"
	"sort"
	"strconv"

	"github.com/samvad-hq/wave-analyzer/pkg/httpclient"
)

// Format selects the response encoding requested from the service.
type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

// Valid reports whether f is a format the service understands.
func (f Format) Valid() bool {
	return f == FormatJSON || f == FormatXML
}

// ReportType controls how much detail the service returns.
type ReportType int

const (
	ReportStatistics ReportType = 1 // counts only
	ReportItems      ReportType = 2 // counts and item ids
	ReportXPaths     ReportType = 3 // items with XPath locations
)

// Valid reports whether r is one of the supported report types.
func (r ReportType) Valid() bool {
	return r >= ReportStatistics && r <= ReportXPaths
}

// Param names a request parameter as it appears on the wire.
type Param string

const (
	ParamKey           Param = "key"
	ParamFormat        Param = "format"
	ParamViewportWidth Param = "viewportwidth"
	ParamEvalDelay     Param = "evaldelay"
	ParamReportType    Param = "reporttype"
	ParamUsername      Param = "username"
	ParamPassword      Param = "password"
)

// queryOrder is the order parameters are appended to the outbound query after url.
var queryOrder = []Param{
	ParamKey,
	ParamFormat,
	ParamViewportWidth,
	ParamEvalDelay,
	ParamReportType,
	ParamUsername,
	ParamPassword,
}

// Params is a loosely typed parameter map, as read from config files, flags or
// decoded JSON. Keys must be one of the optional parameter names.
type Params map[string]any

// optional tracks whether a value was ever set, so an explicit zero can be
// told apart from an unset field.
type optional[T comparable] struct {
	value T
	set   bool
}

func some[T comparable](v T) optional[T] { return optional[T]{value: v, set: true} }

func (o optional[T]) get() (T, bool) { return o.value, o.set }

func (o optional[T]) isZero() bool {
	var zero T
	return o.value == zero
}

// settings is the mutable request configuration. It holds only values so a
// plain assignment copies it.
type settings struct {
	format        Format
	viewportWidth optional[int]
	evalDelay     optional[int]
	reportType    optional[ReportType]
	username      optional[string]
	password      optional[string]
}

func defaultSettings() settings {
	return settings{format: FormatJSON}
}

type applier func(s *settings, value any) error

// appliers is the closed set of parameters accepted in a Params map.
var appliers = map[Param]applier{
	ParamFormat:        applyFormat,
	ParamViewportWidth: applyInt(ParamViewportWidth, func(s *settings, v int) { s.viewportWidth = some(v) }),
	ParamEvalDelay:     applyInt(ParamEvalDelay, func(s *settings, v int) { s.evalDelay = some(v) }),
	ParamReportType:    applyReportType,
	ParamUsername:      applyString(ParamUsername, func(s *settings, v string) { s.username = some(v) }),
	ParamPassword:      applyString(ParamPassword, func(s *settings, v string) { s.password = some(v) }),
}

// with validates every entry of params against a copy of s and returns the
// copy. On error s is returned untouched; nothing from the batch is applied.
// Keys are processed in sorted order so the reported error is deterministic.
func (s settings) with(params Params) (settings, error) {
	if len(params) == 0 {
		return s, nil
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	next := s
	for _, name := range names {
		apply, ok := appliers[Param(name)]
		if !ok {
			return s, &InvalidParameterError{Name: name, Unknown: true}
		}
		if err := apply(&next, params[name]); err != nil {
			return s, err
		}
	}
	return next, nil
}

// query builds the outbound query: url first, then every parameter that is
// set and non-zero in declaration order. With sendZero an explicitly set zero
// value is sent as well.
func (s settings) query(target, key string, sendZero bool) httpclient.Query {
	q := httpclient.Query{{Name: "url", Value: target}}
	for _, p := range queryOrder {
		var (
			value string
			set   bool
			zero  bool
		)
		switch p {
		case ParamKey:
			value, set, zero = key, key != "", false
		case ParamFormat:
			value, set, zero = string(s.format), s.format != "", false
		case ParamViewportWidth:
			value, set, zero = strconv.Itoa(s.viewportWidth.value), s.viewportWidth.set, s.viewportWidth.isZero()
		case ParamEvalDelay:
			value, set, zero = strconv.Itoa(s.evalDelay.value), s.evalDelay.set, s.evalDelay.isZero()
		case ParamReportType:
			value, set, zero = strconv.Itoa(int(s.reportType.value)), s.reportType.set, s.reportType.isZero()
		case ParamUsername:
			value, set, zero = s.username.value, s.username.set, s.username.isZero()
		case ParamPassword:
			value, set, zero = s.password.value, s.password.set, s.password.isZero()
		}
		if !set || (zero && !sendZero) {
			continue
		}
		q.Add(string(p), value)
	}
	return q
}

func applyFormat(s *settings, value any) error {
	var f Format
	switch v := value.(type) {
	case Format:
		f = v
	case string:
		f = Format(v)
	default:
		return &InvalidTypeError{Name: string(ParamFormat), Expected: "string", Value: value}
	}
	if !f.Valid() {
		return &InvalidParameterError{Name: string(ParamFormat), Value: value}
	}
	s.format = f
	return nil
}

func applyReportType(s *settings, value any) error {
	var rt ReportType
	if v, ok := value.(ReportType); ok {
		rt = v
	} else {
		n, ok := toInt(value)
		if !ok {
			return &InvalidTypeError{Name: string(ParamReportType), Expected: "int", Value: value}
		}
		rt = ReportType(n)
	}
	if !rt.Valid() {
		return &InvalidParameterError{Name: string(ParamReportType), Value: value}
	}
	s.reportType = some(rt)
	return nil
}

func applyInt(p Param, set func(*settings, int)) applier {
	return func(s *settings, value any) error {
		n, ok := toInt(value)
		if !ok {
			return &InvalidTypeError{Name: string(p), Expected: "int", Value: value}
		}
		set(s, n)
		return nil
	}
}

func applyString(p Param, set func(*settings, string)) applier {
	return func(s *settings, value any) error {
		v, ok := value.(string)
		if !ok {
			return &InvalidTypeError{Name: string(p), Expected: "string", Value: value}
		}
		set(s, v)
		return nil
	}
}

// toInt accepts any integer kind plus integral floats, which is what JSON
// decoding produces for numbers.
func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		if v < math.MinInt || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case uint:
		if v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		if uint64(v) > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case uint64:
		if v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int(f), true
}
