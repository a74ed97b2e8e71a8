package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/gotransfer/internal/usecase"
	"github.com/iho/gotransfer/internal/usecase/mocks"
)

func TestReconciliationUseCase_Report(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	queue := mocks.NewMockCompensationQueue(ctrl)

	repo.EXPECT().TotalBalance(gomock.Any()).Return(int64(950), nil)
	queue.EXPECT().PendingTotal(gomock.Any()).Return(2, int64(50), nil)

	uc := usecase.NewReconciliationUseCase(repo, queue)
	report, err := uc.Report(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(950), report.TotalBalance)
	assert.Equal(t, 2, report.PendingCount)
	assert.Equal(t, int64(50), report.PendingAmount)
	assert.Equal(t, int64(1000), report.Supply)
	assert.False(t, report.CheckedAt.IsZero())
}

func TestReconciliationUseCase_ReportWithoutQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	repo.EXPECT().TotalBalance(gomock.Any()).Return(int64(10), nil)

	report, err := usecase.NewReconciliationUseCase(repo, nil).Report(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(10), report.Supply)
}

func TestReconciliationUseCase_ReportErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	queue := mocks.NewMockCompensationQueue(ctrl)
	boom := errors.New("boom")

	repo.EXPECT().TotalBalance(gomock.Any()).Return(int64(0), boom)

	_, err := usecase.NewReconciliationUseCase(repo, queue).Report(context.Background())
	assert.ErrorIs(t, err, boom)

	repo.EXPECT().TotalBalance(gomock.Any()).Return(int64(5), nil)
	queue.EXPECT().PendingTotal(gomock.Any()).Return(0, int64(0), boom)

	_, err = usecase.NewReconciliationUseCase(repo, queue).Report(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestReconciliationUseCase_CheckConservation(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		pending  int64
		expected int64
		wantErr  bool
	}{
		{name: "balanced", total: 800, expected: 800},
		{name: "balanced with pending compensation", total: 750, pending: 50, expected: 800},
		{name: "money missing", total: 700, pending: 50, expected: 800, wantErr: true},
		{name: "money created", total: 900, expected: 800, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mocks.NewMockAccountRepository(ctrl)
			queue := mocks.NewMockCompensationQueue(ctrl)

			repo.EXPECT().TotalBalance(gomock.Any()).Return(tt.total, nil)
			queue.EXPECT().PendingTotal(gomock.Any()).Return(0, tt.pending, nil)

			report, err := usecase.NewReconciliationUseCase(repo, queue).CheckConservation(context.Background(), tt.expected)

			require.NotNil(t, report)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "supply mismatch")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
