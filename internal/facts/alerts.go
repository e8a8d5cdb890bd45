package facts

import (
	"fmt"
	"time"
)

// Level is the severity of an alert.
type Level string

const (
	ErrorLevel   Level = "error"
	WarningLevel Level = "warning"
	InfoLevel    Level = "info"
)

// ParseLevel validates a level name.
func ParseLevel(s string) (Level, error) {
	switch l := Level(s); l {
	case ErrorLevel, WarningLevel, InfoLevel:
		return l, nil
	default:
		return "", fmt.Errorf("unknown alert level %q", s)
	}
}

// Alert predicates.
const (
	PredDevice     = "gnos:device"
	PredID         = "gnos:id"
	PredLevel      = "gnos:level"
	PredMesg       = "gnos:mesg"
	PredResolution = "gnos:resolution"
	PredBegin      = "gnos:begin"
	PredEnd        = "gnos:end"
)

// Alert describes a condition raised against a device.
type Alert struct {
	Device     string // IRI of the device, e.g. "devices:core-1"
	ID         string // unique per device while open
	Level      Level
	Mesg       string
	Resolution string
}

// OpenAlert adds a new open alert unless one with the same device and id is
// already open. Returns whether the store changed.
//
// A closed alert does not block re-opening: the new alert gets its own
// subject and both rows coexist.
func OpenAlert(s *Store, a Alert, now time.Time) bool {
	if openAlert(s, a.Device, a.ID) != "" {
		return false
	}

	subject := s.BlankName("alert")
	s.Add(subject,
		Entry{PredDevice, IRI(a.Device)},
		Entry{PredID, String(a.ID)},
		Entry{PredLevel, String(string(a.Level))},
		Entry{PredMesg, String(a.Mesg)},
		Entry{PredResolution, String(a.Resolution)},
		Entry{PredBegin, DateTime(now)},
	)
	return true
}

// CloseAlert marks the open alert for device/id as ended. Unknown or already
// closed alerts are left alone. Returns whether the store changed.
func CloseAlert(s *Store, device, id string, now time.Time) bool {
	subject := openAlert(s, device, id)
	if subject == "" {
		return false
	}
	s.Add(subject, Entry{PredEnd, DateTime(now)})
	return true
}

// openAlert returns the subject of the open alert for device/id, or "".
func openAlert(s *Store, device, id string) string {
	for _, subject := range s.Subjects(PredID, String(id)) {
		if d, ok := s.Find(subject, PredDevice); !ok || d != IRI(device) {
			continue
		}
		if _, closed := s.Find(subject, PredEnd); closed {
			continue
		}
		return subject
	}
	return ""
}
