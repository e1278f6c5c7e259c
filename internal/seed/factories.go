// Package seed provides helpers to create demo data for the portal database.
// These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"sigede/internal/catalog"
	"sigede/internal/models"
	"sigede/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password given to every seeded account.
const DefaultPassword = "password123"

// SeedOptions tunes how the factory builds rows.
type SeedOptions struct {
	// SkipBcrypt stores the plain password; only useful in throwaway dev databases.
	SkipBcrypt bool
	// DryRun logs rows instead of persisting them.
	DryRun bool
	// MaxDays spreads request ages over the last N days. Zero means 7.
	MaxDays int
	// Now pins the reference clock. Zero means time.Now.
	Now time.Time
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db       *gorm.DB
	requests repository.RequestRepository
	catalog  *catalog.Catalog
	opts     SeedOptions
	rng      *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	if opts.MaxDays <= 0 {
		opts.MaxDays = 7
	}
	return &Factory{
		db:       db,
		requests: repository.NewRequestRepository(db),
		catalog:  catalog.Default(),
		opts:     opts,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- demo data
		nextID:   1000,
	}
}

func (f *Factory) now() time.Time {
	if f.opts.Now.IsZero() {
		return time.Now().UTC()
	}
	return f.opts.Now.UTC()
}

// CreateUser persists a resident with fake contact details. Overrides run
// before the row is written.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	user := &models.User{
		Username:    generateUsername(first, last),
		DisplayName: first + " " + last,
		Phone:       "08" + gofakeit.DigitN(10),
		Address:     fmt.Sprintf("RT %02d RW %02d Dusun %s", gofakeit.Number(1, 9), gofakeit.Number(1, 5), dusunNames[f.rng.Intn(len(dusunNames))]),
		Role:        models.RoleWarga,
	}
	user.Email = user.Username + "@sukamaju.desa.id"

	if f.opts.SkipBcrypt {
		user.Password = DefaultPassword
	} else {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s (%s)", user.Username, user.Role)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// WithRole is a CreateUser override.
func WithRole(role models.UserRole) func(*models.User) {
	return func(u *models.User) { u.Role = role }
}

// BuildRequest constructs a pending request from a random catalog category
// but does not persist it. Every required field of the category is filled.
func (f *Factory) BuildRequest(submitter *models.User, kind models.RequestKind, age time.Duration) *models.ServiceRequest {
	cats := f.catalog.List(kind)
	cat := cats[f.rng.Intn(len(cats))]

	payload := make(map[string]string, len(cat.RequiredFields))
	for _, field := range cat.RequiredFields {
		payload[field] = fakeField(field)
	}

	at := f.now().Add(-age)
	return &models.ServiceRequest{
		ID:                 uuid.NewString(),
		SubmitterID:        submitter.ID,
		Kind:               kind,
		Category:           cat.Code,
		Subject:            cat.Label + " a.n. " + submitter.DisplayName,
		Payload:            payload,
		Status:             models.StatusPendingLocal,
		LastStatusChangeAt: at,
		CreatedAt:          at,
	}
}

// CreateRequest persists a pending request submitted age ago.
func (f *Factory) CreateRequest(ctx context.Context, submitter *models.User, kind models.RequestKind, age time.Duration) (*models.ServiceRequest, error) {
	req := f.BuildRequest(submitter, kind, age)
	if f.opts.DryRun {
		log.Printf("[dry-run] CreateRequest: %s %s/%s", req.ID, req.Kind, req.Category)
		return req, nil
	}
	if err := f.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Advance moves req along the given statuses through the request store,
// stamping each hop an hour after the previous one. A nil reviewer records
// a system transition.
func (f *Factory) Advance(ctx context.Context, req *models.ServiceRequest, reviewer *models.User, steps ...models.RequestStatus) (*models.ServiceRequest, error) {
	current := req
	at := req.LastStatusChangeAt
	for _, next := range steps {
		at = at.Add(time.Hour)
		meta := repository.TransitionMeta{
			Event: eventFor(next),
			At:    at,
		}
		if reviewer != nil {
			id := reviewer.ID
			meta.ActorUserID = &id
		}
		if next == models.StatusRejected {
			meta.Note = rejectionReasons[f.rng.Intn(len(rejectionReasons))]
		}
		if f.opts.DryRun {
			log.Printf("[dry-run] Advance: %s %s -> %s", current.ID, current.Status, next)
			current.Status = next
			continue
		}
		updated, err := f.requests.TransitionStatus(ctx, current.ID, current.Status, next, meta)
		if err != nil {
			return nil, fmt.Errorf("advance %s to %s: %w", current.ID, next, err)
		}
		current = updated
	}
	return current, nil
}

func eventFor(next models.RequestStatus) models.RequestEvent {
	switch next {
	case models.StatusPendingAdmin:
		return models.EventLocalApprove
	case models.StatusCompleted:
		return models.EventAdminApprove
	case models.StatusRejected:
		return models.EventReject
	case models.StatusAutoApproved:
		return models.EventSweepTimeout
	default:
		return models.EventSubmit
	}
}

func fakeField(field string) string {
	switch field {
	case "nik", "nik_almarhum":
		return "3301" + gofakeit.DigitN(12)
	case "tanggal_lahir", "tanggal_meninggal":
		return gofakeit.DateRange(time.Now().AddDate(0, -6, 0), time.Now()).Format("2006-01-02")
	case "nama_bayi", "nama_ibu":
		return gofakeit.FirstName() + " " + gofakeit.LastName()
	case "nama_usaha":
		return "Warung " + gofakeit.LastName()
	case "lokasi", "alamat_domisili", "alamat_usaha":
		return fmt.Sprintf("RT %02d RW %02d Dusun %s", gofakeit.Number(1, 9), gofakeit.Number(1, 5), dusunNames[gofakeit.Number(0, len(dusunNames)-1)])
	case "keperluan":
		return purposes[gofakeit.Number(0, len(purposes)-1)]
	default:
		return gofakeit.Sentence(8)
	}
}
