package prescription

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apotekgemini/backend-apotek/internal/common"
)

func TestIntakeValidation(t *testing.T) {
	svc := NewService(nil)

	cases := []struct {
		name string
		req  IntakeRequest
	}{
		{
			name: "missing patient",
			req: IntakeRequest{
				DoctorName: "dr. Sari",
				Items:      []IntakeItem{{ProductID: 1, Quantity: 1}},
			},
		},
		{
			name: "missing doctor",
			req: IntakeRequest{
				PatientName: "Budi",
				Items:       []IntakeItem{{ProductID: 1, Quantity: 1}},
			},
		},
		{
			name: "no items",
			req:  IntakeRequest{PatientName: "Budi", DoctorName: "dr. Sari"},
		},
		{
			name: "zero quantity item",
			req: IntakeRequest{
				PatientName: "Budi", DoctorName: "dr. Sari",
				Items: []IntakeItem{{ProductID: 1, Quantity: 0}},
			},
		},
		{
			name: "missing product",
			req: IntakeRequest{
				PatientName: "Budi", DoctorName: "dr. Sari",
				Items: []IntakeItem{{Quantity: 2}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Intake(context.Background(), tc.req)
			require.Error(t, err)
			var appErr *common.AppError
			require.True(t, errors.As(err, &appErr))
			require.Equal(t, "VALIDATION_ERROR", appErr.Code)
		})
	}
}

func TestPatientAndDoctorValidation(t *testing.T) {
	svc := NewService(nil)

	_, err := svc.CreatePatient(context.Background(), PatientInput{})
	require.Error(t, err)

	_, err = svc.CreateDoctor(context.Background(), DoctorInput{})
	require.Error(t, err)

	_, err = svc.UpdateStatus(context.Background(), 1, "  ")
	require.Error(t, err)
}
