package serialization

const (

	// JSONType represents the serialization type for JSON format.
	JSONType = "json"

	// GobType represents the serialization type for Gob format.
	GobType = "gob"
)

// Decoder is the interface for deserialization.
type Decoder interface {
	Decode(v any) error
}

// Encoder is the interface for serialization.
type Encoder interface {
	Encode(v any) error
}
