package model

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type MimeType int32

const (
	MimeTypeUnspecified MimeType = iota
	MimeTypeImageJPEG
	MimeTypeImagePNG
)

type SensorMetadata struct {
	TimeRequested *timestamppb.Timestamp
	TimeReceived  *timestamppb.Timestamp
	MimeType      MimeType
}

// SensorData is one telemetry record. Exactly one of Struct and Binary is set.
type SensorData struct {
	Metadata SensorMetadata
	Struct   *structpb.Struct
	Binary   []byte
}

// ElapsedTimestamp expresses an offset from the robot start instant as a
// Timestamp, which is how capture times are reported.
func ElapsedTimestamp(d time.Duration) *timestamppb.Timestamp {
	return &timestamppb.Timestamp{
		Seconds: int64(d / time.Second),
		Nanos:   int32(d % time.Second),
	}
}

// NewStructData builds a struct-payload record.
func NewStructData(requested, received time.Duration, payload *structpb.Struct) *SensorData {
	return &SensorData{
		Metadata: SensorMetadata{
			TimeRequested: ElapsedTimestamp(requested),
			TimeReceived:  ElapsedTimestamp(received),
			MimeType:      MimeTypeUnspecified,
		},
		Struct: payload,
	}
}

type timestampJSON struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

type metadataJSON struct {
	TimeRequested timestampJSON `json:"time_requested"`
	TimeReceived  timestampJSON `json:"time_received"`
	MimeType      MimeType      `json:"mime_type"`
}

type sensorDataJSON struct {
	Metadata metadataJSON    `json:"metadata"`
	Struct   json.RawMessage `json:"struct,omitempty"`
	Binary   []byte          `json:"binary,omitempty"`
}

func toTimestampJSON(ts *timestamppb.Timestamp) timestampJSON {
	return timestampJSON{Seconds: ts.GetSeconds(), Nanos: ts.GetNanos()}
}

func (d *SensorData) MarshalJSON() ([]byte, error) {
	out := sensorDataJSON{
		Metadata: metadataJSON{
			TimeRequested: toTimestampJSON(d.Metadata.TimeRequested),
			TimeReceived:  toTimestampJSON(d.Metadata.TimeReceived),
			MimeType:      d.Metadata.MimeType,
		},
		Binary: d.Binary,
	}
	if d.Struct != nil {
		raw, err := protojson.Marshal(d.Struct)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal struct payload")
		}
		out.Struct = raw
	}
	return json.Marshal(out)
}

func (d *SensorData) UnmarshalJSON(data []byte) error {
	var in sensorDataJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	d.Metadata = SensorMetadata{
		TimeRequested: &timestamppb.Timestamp{Seconds: in.Metadata.TimeRequested.Seconds, Nanos: in.Metadata.TimeRequested.Nanos},
		TimeReceived:  &timestamppb.Timestamp{Seconds: in.Metadata.TimeReceived.Seconds, Nanos: in.Metadata.TimeReceived.Nanos},
		MimeType:      in.Metadata.MimeType,
	}
	d.Binary = in.Binary
	d.Struct = nil
	if len(in.Struct) > 0 {
		s := &structpb.Struct{}
		if err := protojson.Unmarshal(in.Struct, s); err != nil {
			return errors.Wrap(err, "failed to unmarshal struct payload")
		}
		d.Struct = s
	}
	return nil
}
