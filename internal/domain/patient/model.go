package patient

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("patient not found")

const dateLayout = "2006-01-02"

// Patient is the subset of the pregnant patient record the agenda needs.
type Patient struct {
	ID             string         `json:"id"`
	Identification Identification `json:"identificacao"`
	Assessment     Assessment     `json:"avaliacao"`
	CreatedAt      time.Time      `json:"created_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at,omitempty"`
}

type Identification struct {
	Name       string `json:"nome_gestante"`
	HealthUnit string `json:"unidade_saude,omitempty"`
}

// Assessment holds the obstetric dates: DUM (last menstrual period) and
// DPP (expected delivery date).
type Assessment struct {
	LastMenstrualPeriod string `json:"dum,omitempty"`
	DueDate             string `json:"dpp,omitempty"`
}

// DueDateFromLMP applies Naegele's rule: LMP + 7 days - 3 months + 1 year.
// A day past the end of the target month is clamped to its last day.
func DueDateFromLMP(lmp time.Time) time.Time {
	d := lmp.AddDate(0, 0, 7)
	first := time.Date(d.Year()+1, d.Month()-3, 1, 0, 0, 0, 0, d.Location())
	last := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
}

// Filter narrows GET /api/pacientes.
type Filter struct {
	Name       string
	HealthUnit string
}

// NearTerm is a patient whose DPP falls within the alert window.
type NearTerm struct {
	Patient
	DaysUntilDue int `json:"dias_ate_dpp"`
}

type ListResponse struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message,omitempty"`
	Total    int       `json:"total"`
	Patients []Patient `json:"pacientes"`
}

type GetResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Patient *Patient `json:"paciente,omitempty"`
}

type NearTermResponse struct {
	Success  bool       `json:"success"`
	Total    int        `json:"total"`
	Patients []NearTerm `json:"pacientes"`
}
