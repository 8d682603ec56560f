package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// Field is one typed key/value pair on a log event.
type Field struct {
	Key   string
	value interface{}
	add   func(*zerolog.Event)
}

func String(key, v string) Field {
	return Field{Key: key, value: v, add: func(e *zerolog.Event) { e.Str(key, v) }}
}

func Strings(key string, v []string) Field {
	return Field{Key: key, value: v, add: func(e *zerolog.Event) { e.Strs(key, v) }}
}

func Int(key string, v int) Field {
	return Field{Key: key, value: v, add: func(e *zerolog.Event) { e.Int(key, v) }}
}

func Int64(key string, v int64) Field {
	return Field{Key: key, value: v, add: func(e *zerolog.Event) { e.Int64(key, v) }}
}

func Float64(key string, v float64) Field {
	return Field{Key: key, value: v, add: func(e *zerolog.Event) { e.Float64(key, v) }}
}

func Bool(key string, v bool) Field {
	return Field{Key: key, value: v, add: func(e *zerolog.Event) { e.Bool(key, v) }}
}

// Duration is logged in whole milliseconds.
func Duration(key string, v time.Duration) Field {
	return Int(key, int(v/time.Millisecond))
}

// Error logs err under "error"; a nil err logs null.
func Error(err error) Field {
	var v interface{}
	if err != nil {
		v = err.Error()
	}
	return Field{Key: zerolog.ErrorFieldName, value: v, add: func(e *zerolog.Event) { e.Err(err) }}
}

func Any(key string, v interface{}) Field {
	return Field{Key: key, value: v, add: func(e *zerolog.Event) { e.Interface(key, v) }}
}
