// Package evaluation scores a live inference endpoint against a held-out labeled
// dataset and persists the resulting regression report.
package evaluation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/animus-labs/animus-mlops/internal/faults"
)

// Event is the evaluator trigger. All four fields are required.
type Event struct {
	Bucket       string `json:"Bucket"`
	Key          string `json:"Key"`
	OutputKey    string `json:"Output_Key"`
	EndpointName string `json:"Endpoint_Name"`
}

var requiredFields = []string{"Bucket", "Key", "Output_Key", "Endpoint_Name"}

// DecodeEvent parses a raw trigger and reports every missing or non-string
// required field in one InputValidationError.
func DecodeEvent(data []byte) (Event, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, faults.New(faults.KindInputValidation, "decode evaluation event", err)
	}
	values := make(map[string]string, len(requiredFields))
	var issues []string
	for _, name := range requiredFields {
		v, ok := raw[name]
		if !ok {
			issues = append(issues, fmt.Sprintf("'%s' not found in event", name))
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			issues = append(issues, fmt.Sprintf("'%s' must be a string", name))
			continue
		}
		values[name] = s
	}
	if len(issues) > 0 {
		return Event{}, faults.Errorf(faults.KindInputValidation, "%s", strings.Join(issues, "; "))
	}
	ev := Event{
		Bucket:       values["Bucket"],
		Key:          values["Key"],
		OutputKey:    values["Output_Key"],
		EndpointName: values["Endpoint_Name"],
	}
	return ev, ev.Validate()
}

func (ev Event) Validate() error {
	var missing []string
	if strings.TrimSpace(ev.Bucket) == "" {
		missing = append(missing, "Bucket")
	}
	if strings.TrimSpace(ev.Key) == "" {
		missing = append(missing, "Key")
	}
	if strings.TrimSpace(ev.OutputKey) == "" {
		missing = append(missing, "Output_Key")
	}
	if strings.TrimSpace(ev.EndpointName) == "" {
		missing = append(missing, "Endpoint_Name")
	}
	if len(missing) > 0 {
		return faults.Errorf(faults.KindInputValidation, "event is missing %s", strings.Join(missing, ", "))
	}
	return nil
}
