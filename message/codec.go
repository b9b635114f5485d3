package message

import (
	"encoding/json"

	"github.com/muntasirraihan/orleans/errors"
)

// Encode serializes a message for the proxied channel.
func Encode(m *Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.WrapInvalid(err, "message", "Encode", "message serialization")
	}
	return data, nil
}

// Decode deserializes a message received from the proxied channel.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapInvalid(err, "message", "Decode", "message deserialization")
	}
	return &m, nil
}
