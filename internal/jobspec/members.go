package jobspec

import (
	"encoding/json"
	"reflect"
	"strings"
)

// knownMembers lists the lowercased JSON member names a struct type decodes.
// encoding/json matches member names case-insensitively, so the set does too.
func knownMembers(t reflect.Type) map[string]bool {
	out := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out[strings.ToLower(name)] = true
	}
	return out
}

// decodeMembers decodes data into dst, a pointer to a struct without its own
// UnmarshalJSON, and returns the object members dst has no field for.
func decodeMembers(data []byte, dst any) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	known := knownMembers(reflect.TypeOf(dst).Elem())
	for name := range all {
		if known[strings.ToLower(name)] {
			delete(all, name)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// encodeMembers encodes v and adds the extra members v has no field for.
// Output with extras is an object with sorted keys.
func encodeMembers(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	known := knownMembers(reflect.TypeOf(v))
	for name, raw := range extra {
		if !known[strings.ToLower(name)] {
			all[name] = raw
		}
	}
	return json.Marshal(all)
}

func (s *Spec) UnmarshalJSON(data []byte) error {
	type plain Spec
	var p plain
	extra, err := decodeMembers(data, &p)
	if err != nil {
		return err
	}
	*s = Spec(p)
	s.Extra = extra
	return nil
}

func (s Spec) MarshalJSON() ([]byte, error) {
	type plain Spec
	return encodeMembers(plain(s), s.Extra)
}

func (a *AlgorithmSpecification) UnmarshalJSON(data []byte) error {
	type plain AlgorithmSpecification
	var p plain
	extra, err := decodeMembers(data, &p)
	if err != nil {
		return err
	}
	*a = AlgorithmSpecification(p)
	a.Extra = extra
	return nil
}

func (a AlgorithmSpecification) MarshalJSON() ([]byte, error) {
	type plain AlgorithmSpecification
	return encodeMembers(plain(a), a.Extra)
}

func (c *Channel) UnmarshalJSON(data []byte) error {
	type plain Channel
	var p plain
	extra, err := decodeMembers(data, &p)
	if err != nil {
		return err
	}
	*c = Channel(p)
	c.Extra = extra
	return nil
}

func (c Channel) MarshalJSON() ([]byte, error) {
	type plain Channel
	return encodeMembers(plain(c), c.Extra)
}

func (d *DataSource) UnmarshalJSON(data []byte) error {
	type plain DataSource
	var p plain
	extra, err := decodeMembers(data, &p)
	if err != nil {
		return err
	}
	*d = DataSource(p)
	d.Extra = extra
	return nil
}

func (d DataSource) MarshalJSON() ([]byte, error) {
	type plain DataSource
	return encodeMembers(plain(d), d.Extra)
}

func (s *S3DataSource) UnmarshalJSON(data []byte) error {
	type plain S3DataSource
	var p plain
	extra, err := decodeMembers(data, &p)
	if err != nil {
		return err
	}
	*s = S3DataSource(p)
	s.Extra = extra
	return nil
}

func (s S3DataSource) MarshalJSON() ([]byte, error) {
	type plain S3DataSource
	return encodeMembers(plain(s), s.Extra)
}

func (o *OutputDataConfig) UnmarshalJSON(data []byte) error {
	type plain OutputDataConfig
	var p plain
	extra, err := decodeMembers(data, &p)
	if err != nil {
		return err
	}
	*o = OutputDataConfig(p)
	o.Extra = extra
	return nil
}

func (o OutputDataConfig) MarshalJSON() ([]byte, error) {
	type plain OutputDataConfig
	return encodeMembers(plain(o), o.Extra)
}

func (r *ResourceConfig) UnmarshalJSON(data []byte) error {
	type plain ResourceConfig
	var p plain
	extra, err := decodeMembers(data, &p)
	if err != nil {
		return err
	}
	*r = ResourceConfig(p)
	r.Extra = extra
	return nil
}

func (r ResourceConfig) MarshalJSON() ([]byte, error) {
	type plain ResourceConfig
	return encodeMembers(plain(r), r.Extra)
}

func (sc *StoppingCondition) UnmarshalJSON(data []byte) error {
	type plain StoppingCondition
	var p plain
	extra, err := decodeMembers(data, &p)
	if err != nil {
		return err
	}
	*sc = StoppingCondition(p)
	sc.Extra = extra
	return nil
}

func (sc StoppingCondition) MarshalJSON() ([]byte, error) {
	type plain StoppingCondition
	return encodeMembers(plain(sc), sc.Extra)
}

func (c *CheckpointConfig) UnmarshalJSON(data []byte) error {
	type plain CheckpointConfig
	var p plain
	extra, err := decodeMembers(data, &p)
	if err != nil {
		return err
	}
	*c = CheckpointConfig(p)
	c.Extra = extra
	return nil
}

func (c CheckpointConfig) MarshalJSON() ([]byte, error) {
	type plain CheckpointConfig
	return encodeMembers(plain(c), c.Extra)
}

func (v *VpcConfig) UnmarshalJSON(data []byte) error {
	type plain VpcConfig
	var p plain
	extra, err := decodeMembers(data, &p)
	if err != nil {
		return err
	}
	*v = VpcConfig(p)
	v.Extra = extra
	return nil
}

func (v VpcConfig) MarshalJSON() ([]byte, error) {
	type plain VpcConfig
	return encodeMembers(plain(v), v.Extra)
}
