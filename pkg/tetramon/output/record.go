package output

import (
	"encoding/base64"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/norasector/tetramon/pkg/tetra"
)

// recordFields flattens a message record for the wire formats.
func recordFields(rec *tetra.MessageRecord) map[string]interface{} {
	fields := map[string]interface{}{
		"id":          rec.ID,
		"session_id":  rec.SessionID,
		"timestamp":   rec.Timestamp.UnixMicro(),
		"frequency":   rec.Frequency,
		"source":      rec.Source,
		"destination": rec.Destination,
		"message_id":  rec.MessageID,
		"fragments":   rec.Fragments,
		"encrypted":   rec.Encrypted,
		"decrypted":   rec.Decrypted,
		"kind":        rec.Kind,
		"timeslot":    rec.Context.Timeslot,
		"frame":       rec.Context.Frame,
		"multiframe":  rec.Context.Multiframe,
		"hyperframe":  rec.Context.Hyperframe,
	}
	if rec.Algorithm != "" {
		fields["algorithm"] = rec.Algorithm
		fields["key_label"] = rec.KeyLabel
		fields["score"] = rec.Score
	}
	if rec.Format != "" {
		fields["format"] = rec.Format
	}
	if rec.Text != "" {
		fields["text"] = rec.Text
		fields["encoding"] = rec.Encoding
	}
	if len(rec.Data) > 0 {
		fields["data"] = base64.StdEncoding.EncodeToString(rec.Data)
	}
	if rec.Location != nil {
		fields["latitude"] = rec.Location.Latitude
		fields["longitude"] = rec.Location.Longitude
	}
	return fields
}

// ToProtobuf encodes a record as a Struct message.
func ToProtobuf(rec *tetra.MessageRecord) (*structpb.Struct, error) {
	return structpb.NewStruct(recordFields(rec))
}
