package appointment

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by repositories when no appointment matches.
var ErrNotFound = errors.New("appointment not found")

// Status is the abstract appointment status. The wire format uses the
// Portuguese codes returned by Wire.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusDone      Status = "done"
	StatusCanceled  Status = "canceled"
	StatusMissed    Status = "missed"
)

var statusToWire = map[Status]string{
	StatusScheduled: "agendado",
	StatusConfirmed: "confirmado",
	StatusDone:      "realizado",
	StatusCanceled:  "cancelado",
	StatusMissed:    "falta",
}

var wireToStatus = map[string]Status{
	"agendado":   StatusScheduled,
	"confirmado": StatusConfirmed,
	"realizado":  StatusDone,
	"cancelado":  StatusCanceled,
	"falta":      StatusMissed,
}

var statusLabels = map[Status]string{
	StatusScheduled: "Scheduled",
	StatusConfirmed: "Confirmed",
	StatusDone:      "Done",
	StatusCanceled:  "Canceled",
	StatusMissed:    "Missed",
}

// ParseStatus maps a wire code (or an abstract name) to a Status. Unknown
// values are returned verbatim so callers can still display them.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	if st, ok := wireToStatus[s]; ok {
		return st
	}
	return Status(s)
}

// Wire returns the code exchanged with the API.
func (s Status) Wire() string {
	if w, ok := statusToWire[s]; ok {
		return w
	}
	return string(s)
}

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	_, ok := statusToWire[s]
	return ok
}

// Terminal reports whether no further lateness tracking applies.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusMissed || s == StatusCanceled
}

func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// MarshalText encodes the wire code.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.Wire()), nil
}

// UnmarshalText never fails; unknown codes survive as-is.
func (s *Status) UnmarshalText(b []byte) error {
	*s = ParseStatus(string(b))
	return nil
}

// Consultation types used by the booking form.
const (
	TypePrenatal   = "consulta_pre_natal"
	TypeFollowUp   = "retorno"
	TypeAssessment = "avaliacao"
	TypeExam       = "exame"
	TypeOther      = "outro"
)

var typeLabels = map[string]string{
	TypePrenatal:   "Prenatal consultation",
	TypeFollowUp:   "Follow-up",
	TypeAssessment: "Assessment",
	TypeExam:       "Exam",
	TypeOther:      "Other",
}

// TypeLabel returns a display label, falling back to the raw value.
func TypeLabel(t string) string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return t
}

// ReasonMarker is the reserved literal written into notes when an
// appointment is resolved as not performed. Rows written before the
// motivo_nao_realizacao column existed carry only this marker.
const ReasonMarker = "Motivo de não realização"

// AppendReason appends a marker-prefixed reason to existing notes.
func AppendReason(notes, reason string) string {
	entry := "❌ " + ReasonMarker + ": " + reason
	if strings.TrimSpace(notes) == "" {
		return entry
	}
	return notes + "\n\n" + entry
}

// Appointment mirrors the agendamento resource of the API.
type Appointment struct {
	ID                 string    `json:"id"`
	PatientID          string    `json:"paciente_id"`
	PatientName        string    `json:"nome_gestante,omitempty"`
	HealthUnit         string    `json:"unidade_saude,omitempty"`
	Date               string    `json:"data_consulta"`
	Time               string    `json:"hora_consulta,omitempty"`
	Status             Status    `json:"status"`
	Notes              string    `json:"observacoes,omitempty"`
	Type               string    `json:"tipo_consulta,omitempty"`
	NotPerformedReason string    `json:"motivo_nao_realizacao,omitempty"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

// Update is the body of PUT /api/agendamentos/{id}. Nil fields are left
// untouched by the server.
type Update struct {
	Date               *string `json:"data_consulta,omitempty"`
	Time               *string `json:"hora_consulta,omitempty"`
	Type               *string `json:"tipo_consulta,omitempty"`
	Status             *Status `json:"status,omitempty"`
	Notes              *string `json:"observacoes,omitempty"`
	NotPerformedReason *string `json:"motivo_nao_realizacao,omitempty"`
}

// Filter narrows GET /api/agendamentos.
type Filter struct {
	PatientID string
	From      string
	To        string
	Status    Status
}

const (
	dateLayout = "2006-01-02"
	dayEnd     = "23:59:59"
)

// FormatDate renders YYYY-MM-DD as DD/MM/YYYY.
func FormatDate(s string) string {
	if s == "" {
		return "Not informed"
	}
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return s
	}
	return fmt.Sprintf("%s/%s/%s", parts[2], parts[1], parts[0])
}

// FormatTime trims seconds from HH:MM:SS.
func FormatTime(s string) string {
	if s == "" {
		return "Not informed"
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return s
	}
	return parts[0] + ":" + parts[1]
}
