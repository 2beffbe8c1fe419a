package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"strings"
	"testing"

	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/internal/usecase"
	"go-dishlens-backend/pkg/apperror"
	"go-dishlens-backend/pkg/logger"
	"go-dishlens-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// --- mocks ---

type mockPaymentRepo struct{ mock.Mock }

func (m *mockPaymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *mockPaymentRepo) GetByDocID(ctx context.Context, docID string) (*domain.Payment, error) {
	args := m.Called(ctx, docID)
	if p, ok := args.Get(0).(*domain.Payment); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPaymentRepo) List(ctx context.Context, limit, offset int) ([]*domain.Payment, error) {
	args := m.Called(ctx, limit, offset)
	if payments, ok := args.Get(0).([]*domain.Payment); ok {
		return payments, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPaymentRepo) UpdateStatus(ctx context.Context, docID string, status domain.PaymentStatus) error {
	args := m.Called(ctx, docID, status)
	return args.Error(0)
}

type mockClientRepo struct{ mock.Mock }

func (m *mockClientRepo) Create(ctx context.Context, client *domain.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *mockClientRepo) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	args := m.Called(ctx, id)
	if c, ok := args.Get(0).(*domain.Client); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClientRepo) GetByUserID(ctx context.Context, userID string) (*domain.Client, error) {
	args := m.Called(ctx, userID)
	if c, ok := args.Get(0).(*domain.Client); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClientRepo) List(ctx context.Context, limit, offset int) ([]*domain.Client, error) {
	args := m.Called(ctx, limit, offset)
	if clients, ok := args.Get(0).([]*domain.Client); ok {
		return clients, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClientRepo) Update(ctx context.Context, client *domain.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *mockClientRepo) DecrementDishQuota(ctx context.Context, clientID string) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

type mockDishRepo struct{ mock.Mock }

func (m *mockDishRepo) Create(ctx context.Context, dish *domain.Dish) error {
	args := m.Called(ctx, dish)
	return args.Error(0)
}

func (m *mockDishRepo) GetByID(ctx context.Context, id string) (*domain.Dish, error) {
	args := m.Called(ctx, id)
	if d, ok := args.Get(0).(*domain.Dish); ok {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDishRepo) ListByClient(ctx context.Context, clientID string) ([]*domain.Dish, error) {
	args := m.Called(ctx, clientID)
	if dishes, ok := args.Get(0).([]*domain.Dish); ok {
		return dishes, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDishRepo) ListByStatus(ctx context.Context, status domain.DishStatus, limit, offset int) ([]*domain.Dish, error) {
	args := m.Called(ctx, status, limit, offset)
	if dishes, ok := args.Get(0).([]*domain.Dish); ok {
		return dishes, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDishRepo) Update(ctx context.Context, dish *domain.Dish) error {
	args := m.Called(ctx, dish)
	return args.Error(0)
}

type mockLeadRepo struct{ mock.Mock }

func (m *mockLeadRepo) Create(ctx context.Context, lead *domain.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

func (m *mockLeadRepo) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	args := m.Called(ctx, id)
	if l, ok := args.Get(0).(*domain.Lead); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLeadRepo) List(ctx context.Context, status domain.LeadStatus, limit, offset int) ([]*domain.Lead, error) {
	args := m.Called(ctx, status, limit, offset)
	if leads, ok := args.Get(0).([]*domain.Lead); ok {
		return leads, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLeadRepo) Update(ctx context.Context, lead *domain.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

// fakePhotoStore records uploads in memory.
type fakePhotoStore struct {
	puts    []string
	deletes []string
	failKey string
}

func (f *fakePhotoStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if f.failKey != "" && strings.Contains(key, f.failKey) {
		return "", errors.New("bucket unavailable")
	}
	f.puts = append(f.puts, key)
	return "https://cdn.example.com/" + key, nil
}

func (f *fakePhotoStore) Delete(ctx context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	return nil
}

// --- helpers ---

func newValidator() *validator.Validate {
	v := validator.New()
	validation.RegisterValidators(v)
	return v
}

func userContext(userID string, role domain.Role) context.Context {
	ctx := context.WithValue(context.Background(), domain.KeyUserID, userID)
	return context.WithValue(ctx, domain.KeyUserRole, string(role))
}

func appErrorCode(t *testing.T, err error) int {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Code
}

// testPNG renders a solid-color PNG of the given dimensions.
func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// --- payments ---

func TestRecordWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("new invoice is stored pending with detected tier", func(t *testing.T) {
		repo := new(mockPaymentRepo)
		uc := usecase.NewPaymentUsecase(repo)

		repo.On("Create", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
			return p.DocID == "INV-1001" &&
				p.Status == domain.PaymentPending &&
				p.Source == domain.PaymentSourceWebhook &&
				p.DetectedPackageType == domain.TierDeluxe
		})).Return(nil)

		payment, err := uc.RecordWebhook(ctx, "INV-1001", 1650, "Falafel Gan Eden", "owner@falafel.co.il")
		require.NoError(t, err)
		assert.Equal(t, domain.TierDeluxe, payment.DetectedPackageType)
		repo.AssertExpectations(t)
	})

	t.Run("redelivered webhook returns the existing row", func(t *testing.T) {
		repo := new(mockPaymentRepo)
		uc := usecase.NewPaymentUsecase(repo)

		existing := &domain.Payment{ID: "p1", DocID: "INV-1001", Status: domain.PaymentConfirmed}
		repo.On("Create", ctx, mock.Anything).Return(apperror.ErrDuplicatePayment)
		repo.On("GetByDocID", ctx, "INV-1001").Return(existing, nil)

		payment, err := uc.RecordWebhook(ctx, "INV-1001", 1650, "", "")
		require.NoError(t, err, "redelivery must not surface an error or the sender retries forever")
		assert.Equal(t, "p1", payment.ID)
		assert.Equal(t, domain.PaymentConfirmed, payment.Status, "existing row is returned unchanged")
	})

	t.Run("missing doc id", func(t *testing.T) {
		uc := usecase.NewPaymentUsecase(new(mockPaymentRepo))
		_, err := uc.RecordWebhook(ctx, "", 100, "", "")
		assert.Equal(t, http.StatusBadRequest, appErrorCode(t, err))
	})

	t.Run("non-positive amount", func(t *testing.T) {
		uc := usecase.NewPaymentUsecase(new(mockPaymentRepo))
		_, err := uc.RecordWebhook(ctx, "INV-1", 0, "", "")
		assert.Equal(t, http.StatusBadRequest, appErrorCode(t, err))
	})
}

func TestRecordSynced(t *testing.T) {
	ctx := context.Background()

	t.Run("new invoice counts as created", func(t *testing.T) {
		repo := new(mockPaymentRepo)
		uc := usecase.NewPaymentUsecase(repo)

		repo.On("Create", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
			return p.Status == domain.PaymentConfirmed && p.Source == domain.PaymentSourceSync
		})).Return(nil)

		created, err := uc.RecordSynced(ctx, "INV-2001", 950, "Hummus Bar", "hi@hummus.example")
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("known pending invoice is promoted to confirmed", func(t *testing.T) {
		repo := new(mockPaymentRepo)
		uc := usecase.NewPaymentUsecase(repo)

		repo.On("Create", ctx, mock.Anything).Return(apperror.ErrDuplicatePayment)
		repo.On("GetByDocID", ctx, "INV-2001").Return(&domain.Payment{
			DocID: "INV-2001", Status: domain.PaymentPending,
		}, nil)
		repo.On("UpdateStatus", ctx, "INV-2001", domain.PaymentConfirmed).Return(nil)

		created, err := uc.RecordSynced(ctx, "INV-2001", 950, "", "")
		require.NoError(t, err)
		assert.False(t, created)
		repo.AssertExpectations(t)
	})

	t.Run("already confirmed invoice is left alone", func(t *testing.T) {
		repo := new(mockPaymentRepo)
		uc := usecase.NewPaymentUsecase(repo)

		repo.On("Create", ctx, mock.Anything).Return(apperror.ErrDuplicatePayment)
		repo.On("GetByDocID", ctx, "INV-2002").Return(&domain.Payment{
			DocID: "INV-2002", Status: domain.PaymentConfirmed,
		}, nil)

		created, err := uc.RecordSynced(ctx, "INV-2002", 950, "", "")
		require.NoError(t, err)
		assert.False(t, created)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPaymentList(t *testing.T) {
	t.Run("admin only", func(t *testing.T) {
		uc := usecase.NewPaymentUsecase(new(mockPaymentRepo))
		_, err := uc.List(userContext("u1", domain.RoleEditor), 10, 0)
		assert.Equal(t, http.StatusForbidden, appErrorCode(t, err))
	})

	t.Run("limit is clamped", func(t *testing.T) {
		repo := new(mockPaymentRepo)
		uc := usecase.NewPaymentUsecase(repo)
		ctx := userContext("u1", domain.RoleAdmin)

		repo.On("List", ctx, 50, 0).Return([]*domain.Payment{}, nil)
		_, err := uc.List(ctx, 500, 0)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

// --- clients ---

func TestClientProfileIsolation(t *testing.T) {
	t.Run("unauthenticated context is rejected", func(t *testing.T) {
		uc := usecase.NewClientUsecase(new(mockClientRepo), newValidator())
		_, err := uc.GetOwnProfile(context.Background())
		assert.Equal(t, http.StatusUnauthorized, appErrorCode(t, err))
	})

	t.Run("missing profile is not found, not an error", func(t *testing.T) {
		repo := new(mockClientRepo)
		uc := usecase.NewClientUsecase(repo, newValidator())
		ctx := userContext("u1", domain.RoleCustomer)

		repo.On("GetByUserID", ctx, "u1").Return(nil, nil)
		_, err := uc.GetOwnProfile(ctx)
		assert.Equal(t, http.StatusNotFound, appErrorCode(t, err))
	})

	t.Run("update cannot target another user", func(t *testing.T) {
		repo := new(mockClientRepo)
		uc := usecase.NewClientUsecase(repo, newValidator())
		ctx := userContext("u1", domain.RoleCustomer)

		repo.On("GetByUserID", ctx, "u1").Return(&domain.Client{
			ID: "c1", UserID: "u1", BusinessName: "Old Name",
			ContactName: "Dana", Email: "dana@example.com",
		}, nil)
		repo.On("Update", ctx, mock.MatchedBy(func(c *domain.Client) bool {
			return c.UserID == "u1"
		})).Return(nil)

		// The payload claims to belong to someone else.
		updated, err := uc.UpdateOwnProfile(ctx, &domain.Client{
			UserID:       "attacker-target",
			BusinessName: "New Name",
			ContactName:  "Dana",
			Email:        "dana@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, "u1", updated.UserID, "user id always comes from the verified token")
		repo.AssertExpectations(t)
	})

	t.Run("staff listing requires elevated role", func(t *testing.T) {
		uc := usecase.NewClientUsecase(new(mockClientRepo), newValidator())
		_, err := uc.ListClients(userContext("u1", domain.RoleCustomer), 10, 0)
		assert.Equal(t, http.StatusForbidden, appErrorCode(t, err))
	})
}

// --- dishes ---

func TestDishSubmit(t *testing.T) {
	validDish := func() *domain.Dish {
		return &domain.Dish{Name: "Shakshuka", Category: "breakfast"}
	}

	t.Run("storage not configured", func(t *testing.T) {
		uc := usecase.NewDishUsecase(new(mockDishRepo), new(mockClientRepo), nil, newValidator())
		_, err := uc.Submit(userContext("u1", domain.RoleCustomer), validDish(), nil, "a.png")
		assert.Equal(t, http.StatusServiceUnavailable, appErrorCode(t, err))
	})

	t.Run("no client profile", func(t *testing.T) {
		clients := new(mockClientRepo)
		uc := usecase.NewDishUsecase(new(mockDishRepo), clients, &fakePhotoStore{}, newValidator())
		ctx := userContext("u1", domain.RoleCustomer)

		clients.On("GetByUserID", ctx, "u1").Return(nil, nil)
		_, err := uc.Submit(ctx, validDish(), testPNG(t, 500, 500), "a.png")
		assert.Equal(t, http.StatusForbidden, appErrorCode(t, err))
	})

	t.Run("undersized photo", func(t *testing.T) {
		clients := new(mockClientRepo)
		uc := usecase.NewDishUsecase(new(mockDishRepo), clients, &fakePhotoStore{}, newValidator())
		ctx := userContext("u1", domain.RoleCustomer)

		clients.On("GetByUserID", ctx, "u1").Return(&domain.Client{ID: "c1", UserID: "u1"}, nil)
		_, err := uc.Submit(ctx, validDish(), testPNG(t, 100, 100), "a.png")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, appErrorCode(t, err))
		assert.Contains(t, err.Error(), "480x480")
	})

	t.Run("quota exhausted", func(t *testing.T) {
		clients := new(mockClientRepo)
		store := &fakePhotoStore{}
		uc := usecase.NewDishUsecase(new(mockDishRepo), clients, store, newValidator())
		ctx := userContext("u1", domain.RoleCustomer)

		clients.On("GetByUserID", ctx, "u1").Return(&domain.Client{ID: "c1", UserID: "u1"}, nil)
		clients.On("DecrementDishQuota", ctx, "c1").Return(apperror.ErrQuotaExhausted)

		_, err := uc.Submit(ctx, validDish(), testPNG(t, 500, 500), "a.png")
		assert.Equal(t, http.StatusPaymentRequired, appErrorCode(t, err))
		assert.Empty(t, store.puts, "nothing is uploaded when quota is exhausted")
	})

	t.Run("accepted submission stores photo and thumbnail", func(t *testing.T) {
		clients := new(mockClientRepo)
		dishes := new(mockDishRepo)
		store := &fakePhotoStore{}
		uc := usecase.NewDishUsecase(dishes, clients, store, newValidator())
		ctx := userContext("u1", domain.RoleCustomer)

		clients.On("GetByUserID", ctx, "u1").Return(&domain.Client{ID: "c1", UserID: "u1"}, nil)
		clients.On("DecrementDishQuota", ctx, "c1").Return(nil)
		dishes.On("Create", ctx, mock.Anything).Return(nil)

		dish, err := uc.Submit(ctx, validDish(), testPNG(t, 500, 500), "plate.png")
		require.NoError(t, err)

		assert.Equal(t, "c1", dish.ClientID)
		assert.Equal(t, domain.DishSubmitted, dish.Status)
		assert.NotEmpty(t, dish.PhotoURL)
		assert.NotEmpty(t, dish.ThumbnailURL)
		require.Len(t, store.puts, 2)
		assert.Equal(t, fmt.Sprintf("dishes/c1/%s.png", dish.ID), store.puts[0])
		assert.Equal(t, fmt.Sprintf("dishes/c1/%s_thumb.jpg", dish.ID), store.puts[1])
	})

	t.Run("failed thumbnail upload rolls back the original", func(t *testing.T) {
		clients := new(mockClientRepo)
		store := &fakePhotoStore{failKey: "_thumb"}
		uc := usecase.NewDishUsecase(new(mockDishRepo), clients, store, newValidator())
		ctx := userContext("u1", domain.RoleCustomer)

		clients.On("GetByUserID", ctx, "u1").Return(&domain.Client{ID: "c1", UserID: "u1"}, nil)
		clients.On("DecrementDishQuota", ctx, "c1").Return(nil)

		_, err := uc.Submit(ctx, validDish(), testPNG(t, 500, 500), "plate.png")
		require.Error(t, err)
		require.Len(t, store.puts, 1)
		assert.Equal(t, store.puts, store.deletes, "orphaned original is deleted")
	})
}

func TestDishOwnership(t *testing.T) {
	t.Run("foreign dish reads as not found", func(t *testing.T) {
		clients := new(mockClientRepo)
		dishes := new(mockDishRepo)
		uc := usecase.NewDishUsecase(dishes, clients, &fakePhotoStore{}, newValidator())
		ctx := userContext("u1", domain.RoleCustomer)

		clients.On("GetByUserID", ctx, "u1").Return(&domain.Client{ID: "c1", UserID: "u1"}, nil)
		dishes.On("GetByID", ctx, "d9").Return(&domain.Dish{ID: "d9", ClientID: "someone-else"}, nil)

		_, err := uc.GetOwn(ctx, "d9")
		assert.Equal(t, http.StatusNotFound, appErrorCode(t, err), "existence of other clients' dishes is not revealed")
	})

	t.Run("list without profile is empty, not an error", func(t *testing.T) {
		clients := new(mockClientRepo)
		uc := usecase.NewDishUsecase(new(mockDishRepo), clients, &fakePhotoStore{}, newValidator())
		ctx := userContext("u1", domain.RoleCustomer)

		clients.On("GetByUserID", ctx, "u1").Return(nil, nil)
		list, err := uc.ListOwn(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestDishTransition(t *testing.T) {
	ctx := userContext("e1", domain.RoleEditor)

	t.Run("legal transition", func(t *testing.T) {
		dishes := new(mockDishRepo)
		uc := usecase.NewDishUsecase(dishes, new(mockClientRepo), &fakePhotoStore{}, newValidator())

		dishes.On("GetByID", ctx, "d1").Return(&domain.Dish{ID: "d1", Status: domain.DishSubmitted}, nil)
		dishes.On("Update", ctx, mock.MatchedBy(func(d *domain.Dish) bool {
			return d.Status == domain.DishProcessing
		})).Return(nil)

		dish, err := uc.Transition(ctx, "d1", domain.DishProcessing, "")
		require.NoError(t, err)
		assert.Equal(t, domain.DishProcessing, dish.Status)
	})

	t.Run("ready dishes are final", func(t *testing.T) {
		dishes := new(mockDishRepo)
		uc := usecase.NewDishUsecase(dishes, new(mockClientRepo), &fakePhotoStore{}, newValidator())

		dishes.On("GetByID", ctx, "d1").Return(&domain.Dish{ID: "d1", Status: domain.DishReady}, nil)
		_, err := uc.Transition(ctx, "d1", domain.DishProcessing, "")
		assert.Equal(t, http.StatusBadRequest, appErrorCode(t, err))
		assert.Contains(t, err.Error(), "Cannot move dish")
	})

	t.Run("customers cannot touch the queue", func(t *testing.T) {
		uc := usecase.NewDishUsecase(new(mockDishRepo), new(mockClientRepo), &fakePhotoStore{}, newValidator())
		_, err := uc.Transition(userContext("u1", domain.RoleCustomer), "d1", domain.DishReady, "")
		assert.Equal(t, http.StatusForbidden, appErrorCode(t, err))
	})
}

// --- leads ---

func TestLeadSubmitPublic(t *testing.T) {
	t.Run("defaults are applied", func(t *testing.T) {
		repo := new(mockLeadRepo)
		uc := usecase.NewLeadUsecase(repo, nil, newValidator())

		repo.On("Create", mock.Anything, mock.MatchedBy(func(l *domain.Lead) bool {
			return l.Status == domain.LeadNew && l.Source == "website" && l.ID != ""
		})).Return(nil)

		err := uc.SubmitPublic(context.Background(), &domain.Lead{
			BusinessName: "Pasta Mia",
			ContactName:  "Noa Levi",
			Email:        "noa@pastamia.example",
			Phone:        "+972541234567",
		})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("validation failures read as field messages", func(t *testing.T) {
		uc := usecase.NewLeadUsecase(new(mockLeadRepo), nil, newValidator())

		err := uc.SubmitPublic(context.Background(), &domain.Lead{
			BusinessName: "Pasta Mia",
			ContactName:  "Noa Levi",
			Email:        "not-an-email",
		})
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, appErrorCode(t, err))
		assert.Contains(t, err.Error(), "Email")
	})
}

func TestLeadStaffAccess(t *testing.T) {
	t.Run("customers cannot read leads", func(t *testing.T) {
		uc := usecase.NewLeadUsecase(new(mockLeadRepo), nil, newValidator())
		_, err := uc.Get(userContext("u1", domain.RoleCustomer), "l1")
		assert.Equal(t, http.StatusForbidden, appErrorCode(t, err))
	})

	t.Run("update merges into the stored lead", func(t *testing.T) {
		repo := new(mockLeadRepo)
		uc := usecase.NewLeadUsecase(repo, nil, newValidator())
		ctx := userContext("e1", domain.RoleEditor)

		repo.On("GetByID", ctx, "l1").Return(&domain.Lead{
			ID: "l1", BusinessName: "Pasta Mia", ContactName: "Noa Levi",
			Email: "noa@pastamia.example", Status: domain.LeadNew,
		}, nil)
		repo.On("Update", ctx, mock.MatchedBy(func(l *domain.Lead) bool {
			return l.Status == domain.LeadContacted && l.ContactName == "Noa Levi"
		})).Return(nil)

		update := &domain.Lead{ID: "l1", Status: domain.LeadContacted, Notes: "called twice"}
		require.NoError(t, uc.Update(ctx, update))
		assert.Equal(t, "Pasta Mia", update.BusinessName, "caller sees the merged record")
		repo.AssertExpectations(t)
	})
}
