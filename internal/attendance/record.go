// Package attendance defines the data model shared by all analysis stages:
// attendance records, class-level snapshots, classification labels, and the
// error taxonomy. Stages never share raw record slices by reference; the
// sorting helpers here always return copies.
package attendance

import (
	"sort"
	"time"
)

// Status is the recorded outcome of a single session.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// Attentiveness is the face-recognition engagement level for a present session.
type Attentiveness string

const (
	AttentivenessHigh   Attentiveness = "High"
	AttentivenessMedium Attentiveness = "Medium"
	AttentivenessLow    Attentiveness = "Low"
)

// Emotion is the dominant emotion reported by the face-recognition service.
type Emotion string

const (
	EmotionHappy    Emotion = "happy"
	EmotionSurprise Emotion = "surprise"
	EmotionNeutral  Emotion = "neutral"
	EmotionSad      Emotion = "sad"
	EmotionAngry    Emotion = "angry"
	EmotionFear     Emotion = "fear"
	EmotionDisgust  Emotion = "disgust"
)

// IsPositive reports whether the emotion counts toward the positive ratio.
func (e Emotion) IsPositive() bool {
	return e == EmotionHappy || e == EmotionSurprise
}

// IsNegative reports whether the emotion counts toward the negative ratio.
func (e Emotion) IsNegative() bool {
	switch e {
	case EmotionSad, EmotionAngry, EmotionFear, EmotionDisgust:
		return true
	}
	return false
}

// DateLayout is the wire format for session dates.
const DateLayout = "2006-01-02"

// Record is a single attendance observation for one student and one session.
// Attentiveness and Emotion are set only when the student was present and
// face recognition succeeded for that session.
type Record struct {
	Status        Status        `json:"status"`
	SessionDate   string        `json:"session_date"`
	ReasonType    string        `json:"reason_type,omitempty"`
	Attentiveness Attentiveness `json:"attentiveness,omitempty"`
	Emotion       Emotion       `json:"emotion,omitempty"`
}

// IsPresent reports whether the student attended the session.
func (r Record) IsPresent() bool { return r.Status == StatusPresent }

// IsExcused reports whether an absence carries a valid reason.
// A non-empty reason type is the only excusal signal.
func (r Record) IsExcused() bool { return r.Status == StatusAbsent && r.ReasonType != "" }

// Attended reports whether the session counts toward attendance for trend
// purposes: present, or absent with a valid reason.
func (r Record) Attended() bool { return r.IsPresent() || r.IsExcused() }

// Date parses the session date. Dates use the DateLayout wire format.
func (r Record) Date() (time.Time, error) {
	return time.Parse(DateLayout, r.SessionDate)
}

// HasFaceData reports whether the record carries usable face-recognition
// output (attentiveness and emotion both set on a present session).
func (r Record) HasFaceData() bool {
	return r.IsPresent() && r.Attentiveness != "" && r.Emotion != ""
}

// AttentivenessScore maps the attentiveness level to the 3/2/1 scale used by
// engagement features. Records without face data default to Medium.
func (r Record) AttentivenessScore() float64 {
	switch r.Attentiveness {
	case AttentivenessHigh:
		return 3
	case AttentivenessLow:
		return 1
	default:
		return 2
	}
}

// SortChronological returns a copy of records ordered oldest first.
// ISO dates sort correctly as strings, which also keeps records with
// unparsable dates in a stable position instead of failing.
func SortChronological(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SessionDate < out[j].SessionDate
	})
	return out
}

// SortRecentFirst returns a copy of records ordered newest first.
func SortRecentFirst(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SessionDate > out[j].SessionDate
	})
	return out
}

// SessionStat summarizes one class session.
type SessionStat struct {
	TotalStudents int `json:"total_students"`
	PresentCount  int `json:"present_count"`
	AbsentCount   int `json:"absent_count"`
}

// StudentHistory pairs a student identity with their full record list.
type StudentHistory struct {
	ID      string   `json:"id"`
	Records []Record `json:"records"`
}

// ClassSnapshot is the read-only class-level view used for peer-context
// features. It is built once per batch evaluation and shared by every
// per-student pipeline; nothing may mutate it after construction.
type ClassSnapshot struct {
	Sessions map[string]SessionStat `json:"sessions"`
	Students []StudentHistory       `json:"students"`
}

// AttendancePercent computes the present-only attendance percentage for a
// record list. Returns 0 for an empty list.
func AttendancePercent(records []Record) float64 {
	if len(records) == 0 {
		return 0
	}
	present := 0
	for _, r := range records {
		if r.IsPresent() {
			present++
		}
	}
	return float64(present) / float64(len(records)) * 100
}
