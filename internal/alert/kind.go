package alert

import "fmt"

// Kind is an alert category. Larger values have higher priority.
type Kind int

const (
	None Kind = iota
	AttentionLost
	SuspiciousObject
	Absence
	Intruder
)

var kindNames = map[Kind]string{
	None:             "ok",
	AttentionLost:    "attention_lost",
	SuspiciousObject: "suspicious_object",
	Absence:          "absence",
	Intruder:         "intruder",
}

var kindMessages = map[Kind]string{
	None:             "",
	AttentionLost:    "⚠️ Attention Lost (Looking Away)",
	SuspiciousObject: "⚠️ Suspicious Object Detected",
	Absence:          "⚠️ No Person Detected",
	Intruder:         "🚨 Intruder Detected",
}

// String returns the status key used in JSON payloads.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown_%d", int(k))
}

// Message returns the human readable alert text shown to the client.
func (k Kind) Message() string {
	return kindMessages[k]
}

// Outranks reports whether k has strictly higher priority than other.
func (k Kind) Outranks(other Kind) bool {
	return k > other
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind converts a status key back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown alert kind %q", s)
}
