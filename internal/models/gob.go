package models

import "encoding/gob"

// Entry.Value is interface-typed, so the concrete types that commonly end
// up in a record must be registered for the gob codec.
func init() {
	gob.Register("")
	gob.Register(0)
	gob.Register(int64(0))
	gob.Register(0.0)
	gob.Register(false)
	gob.Register(map[string]any{})
	gob.Register([]any{})
}
