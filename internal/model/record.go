package model

import "github.com/google/uuid"

type RecordKind string

const (
	RecordKindUpload    RecordKind = "upload"
	RecordKindLabReport RecordKind = "lab_report"
)

// MedicalRecord points at a blob held by the file-storage collaborator.
type MedicalRecord struct {
	Base
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	Kind       RecordKind `db:"kind" json:"kind"`
	FileName   string     `db:"file_name" json:"file_name"`
	FileURL    string     `db:"file_url" json:"file_url"`
	FileID     string     `db:"file_id" json:"file_id"`
	UploadedBy uuid.UUID  `db:"uploaded_by" json:"uploaded_by"`
}
