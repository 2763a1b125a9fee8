// Package jobspec holds the training job specification: its wire shape, the
// extractor that pulls a template out of a packaged source artifact, and the
// composer that resolves a template into a submission for one pipeline execution.
package jobspec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Spec mirrors the training service's job-creation request. Field names follow
// the service schema so a template written for the service decodes unchanged.
// Members without a field here are kept verbatim in Extra and encoded back in
// place, so every schema member reaches the training service.
type Spec struct {
	TrainingJobName                       string                     `json:"TrainingJobName,omitempty"`
	AlgorithmSpecification                *AlgorithmSpecification    `json:"AlgorithmSpecification,omitempty"`
	RoleArn                               string                     `json:"RoleArn,omitempty"`
	HyperParameters                       map[string]string          `json:"HyperParameters,omitempty"`
	InputDataConfig                       []Channel                  `json:"InputDataConfig,omitempty"`
	OutputDataConfig                      *OutputDataConfig          `json:"OutputDataConfig,omitempty"`
	ResourceConfig                        *ResourceConfig            `json:"ResourceConfig,omitempty"`
	StoppingCondition                     *StoppingCondition         `json:"StoppingCondition,omitempty"`
	CheckpointConfig                      *CheckpointConfig          `json:"CheckpointConfig,omitempty"`
	VpcConfig                             *VpcConfig                 `json:"VpcConfig,omitempty"`
	Environment                           map[string]string          `json:"Environment,omitempty"`
	EnableNetworkIsolation                *bool                      `json:"EnableNetworkIsolation,omitempty"`
	EnableInterContainerTrafficEncryption *bool                      `json:"EnableInterContainerTrafficEncryption,omitempty"`
	EnableManagedSpotTraining             *bool                      `json:"EnableManagedSpotTraining,omitempty"`
	Tags                                  []Tag                      `json:"Tags"`
	Extra                                 map[string]json.RawMessage `json:"-"`
}

type AlgorithmSpecification struct {
	TrainingImage     string                     `json:"TrainingImage,omitempty"`
	TrainingInputMode string                     `json:"TrainingInputMode,omitempty"`
	MetricDefinitions []MetricDefinition         `json:"MetricDefinitions,omitempty"`
	Extra             map[string]json.RawMessage `json:"-"`
}

type MetricDefinition struct {
	Name  string `json:"Name"`
	Regex string `json:"Regex"`
}

type Channel struct {
	ChannelName       string                     `json:"ChannelName"`
	DataSource        *DataSource                `json:"DataSource,omitempty"`
	ContentType       string                     `json:"ContentType,omitempty"`
	CompressionType   string                     `json:"CompressionType,omitempty"`
	RecordWrapperType string                     `json:"RecordWrapperType,omitempty"`
	InputMode         string                     `json:"InputMode,omitempty"`
	Extra             map[string]json.RawMessage `json:"-"`
}

type DataSource struct {
	S3DataSource *S3DataSource              `json:"S3DataSource,omitempty"`
	Extra        map[string]json.RawMessage `json:"-"`
}

type S3DataSource struct {
	S3DataType             string                     `json:"S3DataType,omitempty"`
	S3Uri                  string                     `json:"S3Uri"`
	S3DataDistributionType string                     `json:"S3DataDistributionType,omitempty"`
	Extra                  map[string]json.RawMessage `json:"-"`
}

type OutputDataConfig struct {
	S3OutputPath string                     `json:"S3OutputPath"`
	KmsKeyId     string                     `json:"KmsKeyId,omitempty"`
	Extra        map[string]json.RawMessage `json:"-"`
}

type ResourceConfig struct {
	InstanceType   string                     `json:"InstanceType,omitempty"`
	InstanceCount  int32                      `json:"InstanceCount,omitempty"`
	VolumeSizeInGB int32                      `json:"VolumeSizeInGB,omitempty"`
	VolumeKmsKeyId string                     `json:"VolumeKmsKeyId,omitempty"`
	Extra          map[string]json.RawMessage `json:"-"`
}

type StoppingCondition struct {
	MaxRuntimeInSeconds  int32                      `json:"MaxRuntimeInSeconds,omitempty"`
	MaxWaitTimeInSeconds int32                      `json:"MaxWaitTimeInSeconds,omitempty"`
	Extra                map[string]json.RawMessage `json:"-"`
}

type CheckpointConfig struct {
	S3Uri     string                     `json:"S3Uri"`
	LocalPath string                     `json:"LocalPath,omitempty"`
	Extra     map[string]json.RawMessage `json:"-"`
}

type VpcConfig struct {
	SecurityGroupIds []string                   `json:"SecurityGroupIds"`
	Subnets          []string                   `json:"Subnets"`
	Extra            map[string]json.RawMessage `json:"-"`
}

type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// Decode parses a template.
func Decode(data []byte) (Spec, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var spec Spec
	if err := dec.Decode(&spec); err != nil {
		return Spec{}, fmt.Errorf("decode job spec: %w", err)
	}
	if dec.More() {
		return Spec{}, fmt.Errorf("decode job spec: trailing data after document")
	}
	return spec, nil
}

// Canonical returns the stable JSON encoding used for logging, hashing and comparison.
func Canonical(spec Spec) ([]byte, error) {
	return json.Marshal(spec)
}

// Clone returns a deep copy so composition never mutates its input.
func (s Spec) Clone() Spec {
	out := s
	out.Extra = maps.Clone(s.Extra)
	if s.AlgorithmSpecification != nil {
		a := *s.AlgorithmSpecification
		a.MetricDefinitions = slices.Clone(a.MetricDefinitions)
		a.Extra = maps.Clone(a.Extra)
		out.AlgorithmSpecification = &a
	}
	out.HyperParameters = maps.Clone(s.HyperParameters)
	out.Environment = maps.Clone(s.Environment)
	if s.InputDataConfig != nil {
		out.InputDataConfig = make([]Channel, len(s.InputDataConfig))
		for i, ch := range s.InputDataConfig {
			ch.Extra = maps.Clone(ch.Extra)
			if ch.DataSource != nil {
				ds := *ch.DataSource
				ds.Extra = maps.Clone(ds.Extra)
				if ds.S3DataSource != nil {
					s3 := *ds.S3DataSource
					s3.Extra = maps.Clone(s3.Extra)
					ds.S3DataSource = &s3
				}
				ch.DataSource = &ds
			}
			out.InputDataConfig[i] = ch
		}
	}
	if s.OutputDataConfig != nil {
		o := *s.OutputDataConfig
		o.Extra = maps.Clone(o.Extra)
		out.OutputDataConfig = &o
	}
	if s.ResourceConfig != nil {
		r := *s.ResourceConfig
		r.Extra = maps.Clone(r.Extra)
		out.ResourceConfig = &r
	}
	if s.StoppingCondition != nil {
		sc := *s.StoppingCondition
		sc.Extra = maps.Clone(sc.Extra)
		out.StoppingCondition = &sc
	}
	if s.CheckpointConfig != nil {
		c := *s.CheckpointConfig
		c.Extra = maps.Clone(c.Extra)
		out.CheckpointConfig = &c
	}
	if s.VpcConfig != nil {
		v := VpcConfig{
			SecurityGroupIds: slices.Clone(s.VpcConfig.SecurityGroupIds),
			Subnets:          slices.Clone(s.VpcConfig.Subnets),
			Extra:            maps.Clone(s.VpcConfig.Extra),
		}
		out.VpcConfig = &v
	}
	out.EnableNetworkIsolation = cloneBool(s.EnableNetworkIsolation)
	out.EnableInterContainerTrafficEncryption = cloneBool(s.EnableInterContainerTrafficEncryption)
	out.EnableManagedSpotTraining = cloneBool(s.EnableManagedSpotTraining)
	out.Tags = slices.Clone(s.Tags)
	return out
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// PrimaryInputURI returns the data URI of the first input channel, or "".
func (s Spec) PrimaryInputURI() string {
	if len(s.InputDataConfig) == 0 {
		return ""
	}
	ds := s.InputDataConfig[0].DataSource
	if ds == nil || ds.S3DataSource == nil {
		return ""
	}
	return ds.S3DataSource.S3Uri
}

// TagValue returns the value of the last tag with the given key.
func (s Spec) TagValue(key string) (string, bool) {
	for i := len(s.Tags) - 1; i >= 0; i-- {
		if s.Tags[i].Key == key {
			return s.Tags[i].Value, true
		}
	}
	return "", false
}
