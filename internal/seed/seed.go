package seed

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"sigede/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumWarga    int
	NumKadus    int
	NumRequests int
	ShouldClean bool
	SkipBcrypt  bool
}

// Summary reports what a Seed run created.
type Summary struct {
	Users    int
	Requests map[models.RequestStatus]int
}

var (
	dusunNames = []string{"Krajan", "Sukamaju", "Karanganyar", "Sidorejo", "Tegalsari", "Ngemplak"}

	purposes = []string{
		"pendaftaran sekolah", "melamar pekerjaan", "pengajuan kredit usaha",
		"persyaratan beasiswa", "pengurusan BPJS", "pembuatan KTP",
	}

	rejectionReasons = []string{
		"Data NIK tidak sesuai dengan kartu keluarga",
		"Lampiran belum lengkap, mohon unggah ulang",
		"Pemohon bukan warga dusun terkait",
		"Pengaduan sudah ditangani pada laporan sebelumnya",
	}
)

// scenario describes how one seeded request ends up.
type scenario struct {
	age   time.Duration
	steps []models.RequestStatus
	// byAdmin picks the admin as the final reviewer.
	byAdmin bool
	system  bool
}

// scenarioFor spreads requests across every status. Stale pending rows are
// older than the auto-approval window so a sweep has work to do.
func (f *Factory) scenarioFor(i int) scenario {
	maxAge := time.Duration(f.opts.MaxDays) * 24 * time.Hour
	spread := func(min time.Duration) time.Duration {
		if maxAge <= min {
			return min
		}
		return min + time.Duration(f.rng.Int63n(int64(maxAge-min)))
	}

	switch i % 10 {
	case 0, 1, 2:
		return scenario{age: time.Duration(f.rng.Int63n(int64(20 * time.Hour)))}
	case 3, 4:
		return scenario{age: spread(25 * time.Hour)}
	case 5:
		return scenario{age: spread(4 * time.Hour), steps: []models.RequestStatus{models.StatusPendingAdmin}}
	case 6, 7:
		return scenario{age: spread(6 * time.Hour), steps: []models.RequestStatus{models.StatusPendingAdmin, models.StatusCompleted}, byAdmin: true}
	case 8:
		return scenario{age: spread(3 * time.Hour), steps: []models.RequestStatus{models.StatusRejected}}
	default:
		return scenario{age: spread(48 * time.Hour), steps: []models.RequestStatus{models.StatusAutoApproved}, system: true}
	}
}

// Seed populates the database with residents, officials and requests in
// every status.
func Seed(db *gorm.DB, opts Options) (*Summary, error) {
	log.Printf("🌱 Starting database seeding with %d residents, %d hamlet heads and %d requests...",
		opts.NumWarga, opts.NumKadus, opts.NumRequests)
	ctx := context.Background()

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Printf("⚠️  Warning: Could not clear existing data (%v), continuing anyway...", err)
		}
	}

	f := NewFactory(db, SeedOptions{SkipBcrypt: opts.SkipBcrypt})
	summary := &Summary{Requests: map[models.RequestStatus]int{}}

	admin, err := f.CreateUser(WithRole(models.RoleAdmin), func(u *models.User) {
		u.Username = uniqueUsername("admin_desa")
		u.Email = u.Username + "@sukamaju.desa.id"
		u.DisplayName = "Sekretaris Desa"
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	kadus := make([]*models.User, 0, opts.NumKadus)
	for i := 0; i < max(opts.NumKadus, 1); i++ {
		u, err := f.CreateUser(WithRole(models.RoleKadus), func(u *models.User) {
			u.DisplayName = "Kadus " + dusunNames[i%len(dusunNames)]
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create hamlet head: %w", err)
		}
		kadus = append(kadus, u)
	}

	warga := make([]*models.User, 0, opts.NumWarga)
	for i := 0; i < max(opts.NumWarga, 1); i++ {
		u, err := f.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("failed to create resident: %w", err)
		}
		warga = append(warga, u)
	}
	summary.Users = 1 + len(kadus) + len(warga)
	log.Printf("✓ %d users created", summary.Users)

	for i := 0; i < opts.NumRequests; i++ {
		kind := models.KindLayanan
		if i%3 == 2 {
			kind = models.KindPengaduan
		}
		sc := f.scenarioFor(i)
		req, err := f.CreateRequest(ctx, warga[i%len(warga)], kind, sc.age)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		if len(sc.steps) > 0 {
			// Local approval is always the hamlet head's; a final decision is the admin's.
			local := kadus[i%len(kadus)]
			req, err = f.Advance(ctx, req, reviewerFor(sc, local, nil), sc.steps[0])
			if err != nil {
				return nil, err
			}
			if len(sc.steps) > 1 {
				if _, err := f.Advance(ctx, req, reviewerFor(sc, local, admin), sc.steps[1:]...); err != nil {
					return nil, err
				}
			}
		}
		summary.Requests[finalStatus(sc)]++
	}
	log.Printf("✓ %d requests created", opts.NumRequests)

	log.Println("🎉 Database seeding completed successfully!")
	return summary, nil
}

func reviewerFor(sc scenario, local, final *models.User) *models.User {
	if sc.system {
		return nil
	}
	if final != nil && sc.byAdmin {
		return final
	}
	return local
}

func finalStatus(sc scenario) models.RequestStatus {
	if len(sc.steps) == 0 {
		return models.StatusPendingLocal
	}
	return sc.steps[len(sc.steps)-1]
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE request_status_history, service_requests, users RESTART IDENTITY CASCADE;`).Error
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"request_status_history", "service_requests", "users"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func generateUsername(first, last string) string {
	base := strings.ToLower(first + "." + last)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' {
			return r
		}
		return -1
	}, base)
	if len(base) > 24 {
		base = base[:24]
	}
	return uniqueUsername(base)
}

func uniqueUsername(base string) string {
	return fmt.Sprintf("%s%s", base, gofakeit.DigitN(4))
}
