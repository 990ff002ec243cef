package assignment

import "time"

// Assignment links a doctor to a patient they may review.
type Assignment struct {
	DoctorID  string    `json:"doctorId"`
	PatientID string    `json:"patientId"`
	CreatedAt time.Time `json:"createdAt"`
}
