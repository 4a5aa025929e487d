package models

import "time"

// Entry is the unit stored both in memory and on disk.
type Entry struct {
	Value       any       `json:"value"`
	LastTouched time.Time `json:"lastTouched"`
	AccessCount int64     `json:"accessCount"`
}

// NewEntry creates an Entry for a freshly written value.
func NewEntry(value any) *Entry {
	return &Entry{
		Value:       value,
		LastTouched: time.Now(),
		AccessCount: 1,
	}
}

// Touch refreshes the entry with a new value and bumps the access count.
// AccessCount never decreases while the entry lives in memory.
func (e *Entry) Touch(value any) {
	e.Value = value
	e.LastTouched = time.Now()
	e.AccessCount++
}

// Record is the on-disk envelope, one file per key.
type Record struct {
	Key         string    `json:"key"`
	Entry       *Entry    `json:"entry"`
	PersistedAt time.Time `json:"persistedAt"`
}
