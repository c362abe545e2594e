package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medisuite/portal-api/internal/model"
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		List(ctx context.Context, specialty string) ([]*model.Doctor, error)
		// SetLeaveProjection writes the denormalized leave state; a nil leave
		// clears it.
		SetLeaveProjection(ctx context.Context, doctorID uuid.UUID, leave *model.Leave) error
	}

	AppointmentRepository interface {
		// CreateIfSlotFree inserts the appointment only when no non-cancelled
		// booking already holds (doctor_id, date, time_slot). Returns false
		// when a concurrent booking claimed the slot first.
		CreateIfSlotFree(ctx context.Context, appointment *model.Appointment) (bool, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		GetForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*model.Appointment, error)
		GetInDateRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*model.Appointment, error)
	}

	LeaveRepository interface {
		// CreateAndProject inserts the leave and updates the doctor's leave
		// projection in one transaction, keeping the two consistent.
		CreateAndProject(ctx context.Context, leave *model.Leave) error
		// CloseAndClearProjection moves the leave to the given terminal status
		// and clears the doctor projection, again in one transaction.
		CloseAndClearProjection(ctx context.Context, leave *model.Leave, status model.LeaveStatus) error
		Get(ctx context.Context, id uuid.UUID) (*model.Leave, error)
		ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Leave, error)
		// ListExpired returns approved leaves whose end date is before the
		// given moment, for the expiry sweep.
		ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Leave, error)
	}

	LabTestRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.LabTest, error)
		List(ctx context.Context) ([]*model.LabTest, error)
		CreateBookingIfSlotFree(ctx context.Context, booking *model.LabBooking) (bool, error)
		GetBooking(ctx context.Context, id uuid.UUID) (*model.LabBooking, error)
		UpdateBooking(ctx context.Context, booking *model.LabBooking) error
		ListBookingsForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.LabBooking, error)
		GetBookingsForTestDate(ctx context.Context, testID uuid.UUID, date time.Time) ([]*model.LabBooking, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		Update(ctx context.Context, notification *model.Notification) error
		ListPending(ctx context.Context, limit int) ([]*model.Notification, error)
	}

	TicketRepository interface {
		Create(ctx context.Context, ticket *model.Ticket) error
		Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
		Update(ctx context.Context, ticket *model.Ticket) error
		ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Ticket, error)
		ListOpen(ctx context.Context) ([]*model.Ticket, error)
	}

	PrescriptionRepository interface {
		Create(ctx context.Context, prescription *model.Prescription) error
		Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Prescription, error)
		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error)
	}

	MedicalRecordRepository interface {
		Create(ctx context.Context, record *model.MedicalRecord) error
		ListForPatient(ctx context.Context, patientID uuid.UUID, kind model.RecordKind) ([]*model.MedicalRecord, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}
)
