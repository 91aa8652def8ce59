// JSON (un)marshalling of envelopes and records.
//
// The wire format is newline-delimited JSON. Each line is one envelope:
//
//	{"record": {...}, "metadata": {...}}
//
// Event-style records carry a "proposedSnapshot" object; proposal-style
// records carry "entityUrn" and "aspect". Aspects are dispatched by name via
// a registry; aspects with unknown names are preserved verbatim as RawAspect,
// so that docmeta can pass through records it does not understand.
package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// RawAspect is an aspect docmeta has no typed representation for.
// Its JSON body is preserved unmodified.
type RawAspect struct {
	Name string
	Data json.RawMessage
}

func (r *RawAspect) AspectName() string { return r.Name }

var aspectFactories = map[string]func() Aspect{
	AspectDatasetProperties:    func() Aspect { return &DatasetProperties{} },
	AspectContainerProperties:  func() Aspect { return &ContainerProperties{} },
	AspectDataFlowProperties:   func() Aspect { return &DataFlowProperties{} },
	AspectDataJobProperties:    func() Aspect { return &DataJobProperties{} },
	AspectChartProperties:      func() Aspect { return &ChartProperties{} },
	AspectDashboardProperties:  func() Aspect { return &DashboardProperties{} },
	AspectGlobalTags:           func() Aspect { return &GlobalTags{} },
	AspectGlossaryTerms:        func() Aspect { return &GlossaryTerms{} },
	AspectOwnership:            func() Aspect { return &Ownership{} },
	AspectCorpUserInfo:         func() Aspect { return &CorpUserInfo{} },
	AspectCorpUserEditableInfo: func() Aspect { return &CorpUserEditableInfo{} },
}

// UnmarshalAspect decodes an aspect body given its name. Unknown aspect names
// yield a RawAspect holding the undecoded body.
func UnmarshalAspect(name string, data []byte) (Aspect, error) {
	factory, ok := aspectFactories[name]
	if !ok {
		return &RawAspect{Name: name, Data: append(json.RawMessage(nil), data...)}, nil
	}
	a := factory()
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("invalid %s aspect: %v", name, err)
	}
	return a, nil
}

func marshalAspect(a Aspect) (json.RawMessage, error) {
	if r, ok := a.(*RawAspect); ok {
		return r.Data, nil
	}
	return json.Marshal(a)
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	aspects := make([]map[string]json.RawMessage, 0, len(s.Aspects))
	for _, a := range s.Aspects {
		data, err := marshalAspect(a)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal aspect %s: %v", a.AspectName(), err)
		}
		aspects = append(aspects, map[string]json.RawMessage{a.AspectName(): data})
	}
	return json.Marshal(struct {
		URN     string                       `json:"urn"`
		Aspects []map[string]json.RawMessage `json:"aspects"`
	}{s.URN, aspects})
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		URN     string                       `json:"urn"`
		Aspects []map[string]json.RawMessage `json:"aspects"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.URN = raw.URN
	s.Aspects = nil
	for i, m := range raw.Aspects {
		if len(m) != 1 {
			return fmt.Errorf("snapshot aspect %d must be an object with exactly one key, got %d", i, len(m))
		}
		for name, body := range m {
			a, err := UnmarshalAspect(name, body)
			if err != nil {
				return err
			}
			s.Aspects = append(s.Aspects, a)
		}
	}
	return nil
}

func (p *ChangeProposal) MarshalJSON() ([]byte, error) {
	var aspect json.RawMessage
	if p.Aspect != nil {
		var err error
		aspect, err = marshalAspect(p.Aspect)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal aspect %s: %v", p.AspectName, err)
		}
	}
	return json.Marshal(struct {
		EntityURN  string          `json:"entityUrn"`
		EntityType EntityKind      `json:"entityType,omitempty"`
		ChangeType string          `json:"changeType,omitempty"`
		AspectName string          `json:"aspectName,omitempty"`
		Aspect     json.RawMessage `json:"aspect,omitempty"`
	}{p.EntityURN, p.EntityType, p.ChangeType, p.AspectName, aspect})
}

func (p *ChangeProposal) UnmarshalJSON(data []byte) error {
	var raw struct {
		EntityURN  string          `json:"entityUrn"`
		EntityType EntityKind      `json:"entityType"`
		ChangeType string          `json:"changeType"`
		AspectName string          `json:"aspectName"`
		Aspect     json.RawMessage `json:"aspect"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.EntityURN = raw.EntityURN
	p.EntityType = raw.EntityType
	p.ChangeType = raw.ChangeType
	p.AspectName = raw.AspectName
	p.Aspect = nil
	if len(raw.Aspect) > 0 {
		a, err := UnmarshalAspect(raw.AspectName, raw.Aspect)
		if err != nil {
			return err
		}
		p.Aspect = a
	}
	return nil
}

// unmarshalRecord dispatches on the shape of the record object:
// records with a "proposedSnapshot" key are change events, records with an
// "entityUrn" key are change proposals.
func unmarshalRecord(data []byte) (Record, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("record is not a JSON object: %v", err)
	}
	if body, ok := probe["proposedSnapshot"]; ok {
		var snap Snapshot
		if err := json.Unmarshal(body, &snap); err != nil {
			return nil, fmt.Errorf("invalid proposedSnapshot: %v", err)
		}
		return &ChangeEvent{ProposedSnapshot: &snap}, nil
	}
	if _, ok := probe["entityUrn"]; ok {
		var prop ChangeProposal
		if err := json.Unmarshal(data, &prop); err != nil {
			return nil, err
		}
		return &prop, nil
	}
	return nil, errors.New("record has neither proposedSnapshot nor entityUrn")
}

func (e *Envelope) MarshalJSON() ([]byte, error) {
	var record json.RawMessage
	if e.Record != nil {
		var err error
		switch r := e.Record.(type) {
		case *ChangeEvent:
			var snap json.RawMessage
			if r.ProposedSnapshot != nil {
				snap, err = json.Marshal(r.ProposedSnapshot)
				if err != nil {
					return nil, err
				}
			}
			record, err = json.Marshal(map[string]json.RawMessage{"proposedSnapshot": snap})
		default:
			record, err = json.Marshal(e.Record)
		}
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(struct {
		Record   json.RawMessage `json:"record,omitempty"`
		Metadata map[string]any  `json:"metadata,omitempty"`
	}{record, e.Metadata})
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw struct {
		Record   json.RawMessage `json:"record"`
		Metadata map[string]any  `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Metadata = raw.Metadata
	e.Record = nil
	if len(raw.Record) > 0 {
		rec, err := unmarshalRecord(raw.Record)
		if err != nil {
			return err
		}
		e.Record = rec
	}
	return nil
}

// DecodeEnvelopes reads a newline-delimited JSON stream of envelopes.
func DecodeEnvelopes(r io.Reader) ([]*Envelope, error) {
	var envelopes []*Envelope
	dec := json.NewDecoder(r)
	for i := 0; ; i++ {
		var env Envelope
		err := dec.Decode(&env)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %v", i, err)
		}
		envelopes = append(envelopes, &env)
	}
	return envelopes, nil
}

// EncodeEnvelopes writes envelopes as a newline-delimited JSON stream.
func EncodeEnvelopes(w io.Writer, envelopes []*Envelope) error {
	bw := bufio.NewWriter(w)
	for _, env := range envelopes {
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %v", env, err)
		}
		if _, err := bw.Write(data); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
