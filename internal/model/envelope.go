package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope carries the records of one collector invocation to a sink.
type Envelope struct {
	ID            string        `json:"id"`
	RobotID       string        `json:"robot_id"`
	ComponentName string        `json:"component_name"`
	ComponentType string        `json:"component_type"`
	Method        string        `json:"method"`
	Timestamp     time.Time     `json:"timestamp"`
	Data          []*SensorData `json:"data"`
}

func NewEnvelope(robotID, componentName, componentType, method string, data []*SensorData) *Envelope {
	return &Envelope{
		ID:            uuid.New().String(),
		RobotID:       robotID,
		ComponentName: componentName,
		ComponentType: componentType,
		Method:        method,
		Timestamp:     time.Now().UTC(),
		Data:          data,
	}
}

func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
