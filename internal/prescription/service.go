package prescription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apotekgemini/backend-apotek/internal/common"
	"github.com/apotekgemini/backend-apotek/internal/obs"
)

// StatusNew is the initial status of a freshly stored prescription.
const StatusNew = "Baru"

// Patient is a registered pharmacy customer.
type Patient struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address"`
	Allergies   string     `json:"allergies"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PatientInput carries patient create/update payloads.
type PatientInput struct {
	Name        string     `json:"name" validate:"required"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address"`
	Allergies   string     `json:"allergies"`
}

// Doctor is a prescribing physician.
type Doctor struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	Phone          string    `json:"phone"`
	CreatedAt      time.Time `json:"created_at"`
}

// DoctorInput carries doctor create/update payloads.
type DoctorInput struct {
	Name           string `json:"name" validate:"required"`
	Specialization string `json:"specialization"`
	Phone          string `json:"phone"`
}

// IntakeItem is one prescribed product line.
type IntakeItem struct {
	ProductID           int64  `json:"product_id" validate:"required,gt=0"`
	Quantity            int    `json:"quantity" validate:"required,gt=0"`
	DosageInstructions  string `json:"dosage_instructions"`
}

// IntakeRequest registers a prescription. Patient and doctor are referenced by
// name and created on the fly when unknown.
type IntakeRequest struct {
	PatientName      string       `json:"patient_name" validate:"required"`
	DoctorName       string       `json:"doctor_name" validate:"required"`
	PrescriptionDate *time.Time   `json:"prescription_date"`
	Notes            string       `json:"notes"`
	Items            []IntakeItem `json:"items" validate:"required,min=1,dive"`
}

// Prescription is a stored prescription header.
type Prescription struct {
	ID               int64     `json:"id"`
	PatientID        int64     `json:"patient_id"`
	PatientName      string    `json:"patient_name"`
	DoctorID         int64     `json:"doctor_id"`
	DoctorName       string    `json:"doctor_name"`
	PrescriptionDate time.Time `json:"prescription_date"`
	Status           string    `json:"status"`
	Notes            string    `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
}

// Item is a stored prescription line.
type Item struct {
	ID                 int64  `json:"id"`
	ProductID          int64  `json:"product_id"`
	ProductName        string `json:"product_name"`
	Quantity           int    `json:"quantity"`
	DosageInstructions string `json:"dosage_instructions"`
}

// Detail is a prescription with its lines.
type Detail struct {
	Prescription
	Items []Item `json:"items"`
}

// Service manages patients, doctors, and prescription intake.
type Service struct {
	pool     *pgxpool.Pool
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs a Service instance.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{
		pool:     pool,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// ListPatients returns patients, optionally filtered by a name search term.
func (s *Service) ListPatients(ctx context.Context, query string) ([]Patient, error) {
	sql := `SELECT id, name, date_of_birth, phone, address, allergies, created_at FROM patients ORDER BY name`
	args := []any{}
	if q := strings.TrimSpace(query); q != "" {
		sql = `SELECT id, name, date_of_birth, phone, address, allergies, created_at FROM patients
WHERE name ILIKE '%' || $1 || '%' ORDER BY name`
		args = append(args, q)
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	patients := make([]Patient, 0)
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.DateOfBirth, &p.Phone, &p.Address, &p.Allergies, &p.CreatedAt); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// CreatePatient registers a patient.
func (s *Service) CreatePatient(ctx context.Context, input PatientInput) (Patient, error) {
	if err := s.validate.Struct(input); err != nil {
		return Patient{}, common.NewAppError("VALIDATION_ERROR", "invalid patient payload", http.StatusBadRequest, err)
	}
	var p Patient
	err := s.pool.QueryRow(ctx, `INSERT INTO patients (name, date_of_birth, phone, address, allergies)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE SET
    date_of_birth = COALESCE(EXCLUDED.date_of_birth, patients.date_of_birth),
    phone = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE patients.phone END,
    address = CASE WHEN EXCLUDED.address <> '' THEN EXCLUDED.address ELSE patients.address END,
    allergies = CASE WHEN EXCLUDED.allergies <> '' THEN EXCLUDED.allergies ELSE patients.allergies END
RETURNING id, name, date_of_birth, phone, address, allergies, created_at`,
		strings.TrimSpace(input.Name), input.DateOfBirth, input.Phone, input.Address, input.Allergies).
		Scan(&p.ID, &p.Name, &p.DateOfBirth, &p.Phone, &p.Address, &p.Allergies, &p.CreatedAt)
	if err != nil {
		return Patient{}, fmt.Errorf("create patient: %w", err)
	}
	return p, nil
}

// ListDoctors returns doctors, optionally filtered by a name search term.
func (s *Service) ListDoctors(ctx context.Context, query string) ([]Doctor, error) {
	sql := `SELECT id, name, specialization, phone, created_at FROM doctors ORDER BY name`
	args := []any{}
	if q := strings.TrimSpace(query); q != "" {
		sql = `SELECT id, name, specialization, phone, created_at FROM doctors
WHERE name ILIKE '%' || $1 || '%' ORDER BY name`
		args = append(args, q)
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	doctors := make([]Doctor, 0)
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialization, &d.Phone, &d.CreatedAt); err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

// CreateDoctor registers a doctor.
func (s *Service) CreateDoctor(ctx context.Context, input DoctorInput) (Doctor, error) {
	if err := s.validate.Struct(input); err != nil {
		return Doctor{}, common.NewAppError("VALIDATION_ERROR", "invalid doctor payload", http.StatusBadRequest, err)
	}
	var d Doctor
	err := s.pool.QueryRow(ctx, `INSERT INTO doctors (name, specialization, phone)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET
    specialization = CASE WHEN EXCLUDED.specialization <> '' THEN EXCLUDED.specialization ELSE doctors.specialization END,
    phone = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE doctors.phone END
RETURNING id, name, specialization, phone, created_at`,
		strings.TrimSpace(input.Name), input.Specialization, input.Phone).
		Scan(&d.ID, &d.Name, &d.Specialization, &d.Phone, &d.CreatedAt)
	if err != nil {
		return Doctor{}, fmt.Errorf("create doctor: %w", err)
	}
	return d, nil
}

// Intake stores a prescription, creating the patient and doctor by name when
// they do not exist yet. Header and items commit atomically.
func (s *Service) Intake(ctx context.Context, req IntakeRequest) (Detail, error) {
	if err := s.validate.Struct(req); err != nil {
		return Detail{}, common.NewAppError("VALIDATION_ERROR", "invalid prescription payload", http.StatusBadRequest, err)
	}

	date := s.now()
	if req.PrescriptionDate != nil {
		date = *req.PrescriptionDate
	}

	var detail Detail
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		patientID, err := upsertName(ctx, tx, "patients", strings.TrimSpace(req.PatientName))
		if err != nil {
			return fmt.Errorf("resolve patient: %w", err)
		}
		doctorID, err := upsertName(ctx, tx, "doctors", strings.TrimSpace(req.DoctorName))
		if err != nil {
			return fmt.Errorf("resolve doctor: %w", err)
		}

		var p Prescription
		err = tx.QueryRow(ctx, `INSERT INTO prescriptions (patient_id, doctor_id, prescription_date, status, notes)
VALUES ($1, $2, $3::date, $4, $5)
RETURNING id, patient_id, doctor_id, prescription_date, status, notes, created_at`,
			patientID, doctorID, date, StatusNew, req.Notes).
			Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.PrescriptionDate, &p.Status, &p.Notes, &p.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert prescription: %w", err)
		}
		p.PatientName = strings.TrimSpace(req.PatientName)
		p.DoctorName = strings.TrimSpace(req.DoctorName)

		items := make([]Item, 0, len(req.Items))
		for _, item := range req.Items {
			var it Item
			err := tx.QueryRow(ctx, `INSERT INTO prescription_items (prescription_id, product_id, quantity, dosage_instructions)
VALUES ($1, $2, $3, $4)
RETURNING id, product_id, quantity, dosage_instructions`,
				p.ID, item.ProductID, item.Quantity, item.DosageInstructions).
				Scan(&it.ID, &it.ProductID, &it.Quantity, &it.DosageInstructions)
			if err != nil {
				return fmt.Errorf("insert prescription item: %w", err)
			}
			items = append(items, it)
		}
		detail = Detail{Prescription: p, Items: items}
		return nil
	})
	if err != nil {
		return Detail{}, err
	}
	if obs.PrescriptionsCreatedTotal != nil {
		obs.PrescriptionsCreatedTotal.Inc()
	}
	return detail, nil
}

// List returns prescription headers with patient and doctor names, newest first.
func (s *Service) List(ctx context.Context) ([]Prescription, error) {
	rows, err := s.pool.Query(ctx, `SELECT pr.id, pr.patient_id, pa.name, pr.doctor_id, d.name, pr.prescription_date, pr.status, pr.notes, pr.created_at
FROM prescriptions pr
JOIN patients pa ON pa.id = pr.patient_id
JOIN doctors d ON d.id = pr.doctor_id
ORDER BY pr.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()

	prescriptions := make([]Prescription, 0)
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.PatientID, &p.PatientName, &p.DoctorID, &p.DoctorName,
			&p.PrescriptionDate, &p.Status, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		prescriptions = append(prescriptions, p)
	}
	return prescriptions, rows.Err()
}

// Get fetches a prescription with its items.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	var d Detail
	err := s.pool.QueryRow(ctx, `SELECT pr.id, pr.patient_id, pa.name, pr.doctor_id, doc.name, pr.prescription_date, pr.status, pr.notes, pr.created_at
FROM prescriptions pr
JOIN patients pa ON pa.id = pr.patient_id
JOIN doctors doc ON doc.id = pr.doctor_id
WHERE pr.id = $1`, id).
		Scan(&d.ID, &d.PatientID, &d.PatientName, &d.DoctorID, &d.DoctorName,
			&d.PrescriptionDate, &d.Status, &d.Notes, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, common.NewAppError("NOT_FOUND", "prescription not found", http.StatusNotFound, err)
		}
		return Detail{}, fmt.Errorf("get prescription: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT pi.id, pi.product_id, p.name, pi.quantity, pi.dosage_instructions
FROM prescription_items pi
JOIN products p ON p.id = pi.product_id
WHERE pi.prescription_id = $1
ORDER BY pi.id`, id)
	if err != nil {
		return Detail{}, fmt.Errorf("get prescription items: %w", err)
	}
	defer rows.Close()

	d.Items = make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Quantity, &it.DosageInstructions); err != nil {
			return Detail{}, err
		}
		d.Items = append(d.Items, it)
	}
	return d, rows.Err()
}

// UpdateStatus transitions a prescription's workflow status.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (Prescription, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return Prescription{}, common.NewAppError("VALIDATION_ERROR", "status is required", http.StatusBadRequest, nil)
	}
	var p Prescription
	err := s.pool.QueryRow(ctx, `UPDATE prescriptions SET status = $2 WHERE id = $1
RETURNING id, patient_id, doctor_id, prescription_date, status, notes, created_at`, id, status).
		Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.PrescriptionDate, &p.Status, &p.Notes, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Prescription{}, common.NewAppError("NOT_FOUND", "prescription not found", http.StatusNotFound, err)
		}
		return Prescription{}, fmt.Errorf("update prescription status: %w", err)
	}
	return p, nil
}

// upsertName resolves a row ID by unique name, inserting it when absent. The
// no-op update makes RETURNING yield the existing row's id on conflict.
func upsertName(ctx context.Context, tx pgx.Tx, table, name string) (int64, error) {
	var id int64
	q := `INSERT INTO ` + table + ` (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`
	if err := tx.QueryRow(ctx, q, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
