package logging

import "time"

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Error creates an error field
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Latency creates a duration field in milliseconds
func Latency(d time.Duration) Field {
	return Field{Key: "latency_ms", Value: d.Milliseconds()}
}

// Domain field constructors

// NodeKey identifies an identity node
func NodeKey(key string) Field {
	return Field{Key: "node_key", Value: key}
}

// GroupKey identifies a membership group
func GroupKey(key string) Field {
	return Field{Key: "group_key", Value: key}
}

// Border carries a calibrated rejection border
func Border(value float64) Field {
	return Field{Key: "border", Value: value}
}

// RunID identifies a single pipeline run
func RunID(id string) Field {
	return Field{Key: "run_id", Value: id}
}

// Stage identifies a pipeline stage
func Stage(name string) Field {
	return Field{Key: "stage", Value: name}
}
