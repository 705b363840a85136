// Package batch applies the codec and identity resolution to lists of
// appointments. Elements are mapped independently; a bad element never
// aborts the rest of the list.
package batch

import (
	"bytes"
	"encoding/json"
	"sort"

	"apptsync/internal/codec"
	"apptsync/internal/identity"
	appLog "apptsync/internal/log"
	"apptsync/internal/model"
)

// ReasonMalformedRecord marks a list element that is not a JSON object of
// the wire shape.
const ReasonMalformedRecord = "malformed_record"

// Mapper is safe for concurrent use; it holds no mutable state.
type Mapper struct {
	Codec    codec.Codec
	Resolver identity.Resolver
}

func New(c codec.Codec, r identity.Resolver) Mapper {
	return Mapper{Codec: c, Resolver: r}
}

// CreateBatch is the batch-create payload.
type CreateBatch struct {
	Appointments []model.WireAppointment `json:"appointments"`
}

// EncodeOne builds the wire record for a single write.
func (m Mapper) EncodeOne(p model.PresentationAppointment) model.WireAppointment {
	w := m.Codec.Encode(p)
	m.Resolver.Resolve(p.ClientID, p.CustomerName(), p.ClientPhone).Apply(&w)
	return w
}

// EncodeAll applies EncodeOne to every element.
func (m Mapper) EncodeAll(ps []model.PresentationAppointment) CreateBatch {
	out := CreateBatch{Appointments: make([]model.WireAppointment, 0, len(ps))}
	for _, p := range ps {
		out.Appointments = append(out.Appointments, m.EncodeOne(p))
	}
	return out
}

// DecodeAll decodes every wire record. Records with unusable instants are
// kept; visibility reports them.
func (m Mapper) DecodeAll(ws []model.WireAppointment) []model.PresentationAppointment {
	out := make([]model.PresentationAppointment, 0, len(ws))
	for _, w := range ws {
		out = append(out, m.Codec.Decode(w))
	}
	return out
}

// Rejection records a list element that could not be decoded at all.
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// DecodeResult holds decoded appointments and the elements that were dropped.
type DecodeResult struct {
	Appointments []model.PresentationAppointment `json:"appointments"`
	Rejected     []Rejection                     `json:"rejected,omitempty"`
}

// DecodeRaw unmarshals and decodes each element on its own so one malformed
// element only costs itself. An object with a wrongly typed field keeps its
// other fields; only elements that are not JSON objects are dropped, and
// every dropped element gets a Rejection.
func (m Mapper) DecodeRaw(raws []json.RawMessage) DecodeResult {
	res := DecodeResult{Appointments: make([]model.PresentationAppointment, 0, len(raws))}
	for i, raw := range raws {
		w, err := UnmarshalWire(raw)
		if err != nil {
			w, err = unmarshalLenient(raw, i)
		}
		if err != nil {
			appLog.Debug("batch: dropping malformed record", "index", i, "err", err)
			res.Rejected = append(res.Rejected, Rejection{
				Index:  i,
				Reason: ReasonMalformedRecord,
				Detail: err.Error(),
			})
			continue
		}
		res.Appointments = append(res.Appointments, m.Codec.Decode(w))
	}
	return res
}

// UnmarshalWire decodes one wire record keeping numbers as json.Number.
func UnmarshalWire(raw []byte) (model.WireAppointment, error) {
	var w model.WireAppointment
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return model.WireAppointment{}, err
	}
	return w, nil
}

// unmarshalLenient decodes raw field by field, omitting fields whose value
// has the wrong type. It fails only when raw is not a JSON object.
func unmarshalLenient(raw []byte, index int) (model.WireAppointment, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.WireAppointment{}, err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var w model.WireAppointment
	for _, k := range keys {
		one, err := json.Marshal(map[string]json.RawMessage{k: fields[k]})
		if err != nil {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(one))
		dec.UseNumber()
		if err := dec.Decode(&w); err != nil {
			appLog.Debug("batch: omitting mistyped field", "index", index, "field", k, "err", err)
		}
	}
	return w, nil
}
