package appointment

// ListResponse is the body of GET /api/agendamentos.
type ListResponse struct {
	Success      bool          `json:"success"`
	Message      string        `json:"message,omitempty"`
	Appointments []Appointment `json:"agendamentos"`
}

// GetResponse is the body of GET /api/agendamentos/{id}.
type GetResponse struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message,omitempty"`
	Appointment *Appointment `json:"agendamento,omitempty"`
}

// MutationResponse is returned by POST, PUT and DELETE.
type MutationResponse struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	ID          string       `json:"id,omitempty"`
	Appointment *Appointment `json:"agendamento,omitempty"`
}
