package features

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Column names, kept identical to the published feature tables
const (
	ColTST            = "TST(s)"
	ColNST            = "NST(s)"
	ColTPT            = "TPT(s)"
	ColMeanPause      = "MeanPauseTime(s)"
	ColPauseRatio     = "PR(%)"
	ColPauseSlope     = "PauseSlope"
	ColPauseSlopeDesc = "PauseSlope Desc"
	ColMeanUtterance  = "MeanUtteranceTime(s)"
	ColUtteranceRatio = "Utterance Ratio"
	ColUttSlope       = "UtteranceSlope"
	ColUttSlopeDesc   = "UtteranceSlope Desc"
	ColIntDur         = "intDur(s)"
	ColNRep           = "NRep"
	ColRateNST        = "Syl Rep Rate (NST)"
	ColRateTST        = "Syl Rep Rate (TST)"
	ColTaskFailure    = "Task Failure"

	ColMaxPhonation = "MaxPhonationTime(s)"
)

// TimingColumns is the column order shared by SR and PR records
var TimingColumns = []string{
	ColTST, ColNST, ColTPT, ColMeanPause, ColPauseRatio, ColPauseSlope, ColPauseSlopeDesc,
	ColMeanUtterance, ColUtteranceRatio, ColUttSlope, ColUttSlopeDesc,
	ColIntDur, ColNRep, ColRateNST, ColRateTST, ColTaskFailure,
}

// VowelColumns is the column order of SV records
var VowelColumns = []string{ColMaxPhonation}

// Value is a numeric or categorical metric. A numeric NaN is undefined.
type Value struct {
	num    float64
	text   string
	isText bool
}

// Number wraps a numeric value
func Number(v float64) Value { return Value{num: v} }

// Text wraps a categorical value
func Text(s string) Value { return Value{text: s, isText: true} }

// Undefined is the value of a metric that cannot be computed
func Undefined() Value { return Value{num: math.NaN()} }

// IsText reports whether v is categorical
func (v Value) IsText() bool { return v.isText }

// Defined reports whether v carries a value
func (v Value) Defined() bool { return v.isText || !math.IsNaN(v.num) }

// Float returns the numeric value, NaN for text
func (v Value) Float() float64 {
	if v.isText {
		return math.NaN()
	}
	return v.num
}

// String renders v for tabular output; undefined values are empty
func (v Value) String() string {
	switch {
	case v.isText:
		return v.text
	case math.IsNaN(v.num):
		return ""
	case math.IsInf(v.num, 0):
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
}

func (v Value) native() any {
	switch {
	case v.isText:
		return v.text
	case math.IsNaN(v.num) || math.IsInf(v.num, 0):
		return nil
	default:
		return v.num
	}
}

// Field is one named metric of a Record
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered set of metrics for one recording
type Record struct {
	fields []Field
	index  map[string]int
}

func newRecord(capacity int) *Record {
	return &Record{
		fields: make([]Field, 0, capacity),
		index:  make(map[string]int, capacity),
	}
}

// set adds name or replaces its value in place
func (r *Record) set(name string, v Value) {
	if i, ok := r.index[name]; ok {
		r.fields[i].Value = v
		return
	}
	r.index[name] = len(r.fields)
	r.fields = append(r.fields, Field{Name: name, Value: v})
}

// Len returns the number of metrics
func (r *Record) Len() int { return len(r.fields) }

// Get looks up a metric by column name
func (r *Record) Get(name string) (Value, bool) {
	i, ok := r.index[name]
	if !ok {
		return Value{}, false
	}
	return r.fields[i].Value, true
}

// Float is Get for numeric metrics; missing names give NaN
func (r *Record) Float(name string) float64 {
	v, ok := r.Get(name)
	if !ok {
		return math.NaN()
	}
	return v.Float()
}

// Names returns the column names in order
func (r *Record) Names() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Name
	}
	return out
}

// Fields returns a copy of the metrics in order
func (r *Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Strings renders every value in column order
func (r *Record) Strings() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Value.String()
	}
	return out
}

// MarshalJSON writes the record as an object in column order, with
// undefined values as null.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value.native())
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes the record as an ordered mapping
func (r *Record) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range r.fields {
		var val yaml.Node
		if err := val.Encode(f.Value.native()); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Name},
			&val,
		)
	}
	return node, nil
}
