package api

import "encoding/json"

// JSONCodec lets connect carry the plain Go message types in this package.
// It registers under the "json" name, replacing connect's protobuf JSON codec.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
