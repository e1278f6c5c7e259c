// Command main runs the demo data seeder for the village portal.
package main

import (
	"flag"
	"log"

	"sigede/internal/config"
	"sigede/internal/database"
	"sigede/internal/seed"
)

func main() {
	// Parse command line flags
	numWarga := flag.Int("warga", 30, "Number of residents to create")
	numKadus := flag.Int("kadus", 4, "Number of hamlet heads to create")
	numRequests := flag.Int("requests", 120, "Number of requests to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Store plain passwords (dev databases only)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d residents, %d hamlet heads, %d requests, clean=%v\n", *numWarga, *numKadus, *numRequests, *shouldClean)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production database")
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	summary, err := seed.Seed(db, seed.Options{
		NumWarga:    *numWarga,
		NumKadus:    *numKadus,
		NumRequests: *numRequests,
		ShouldClean: *shouldClean,
		SkipBcrypt:  *fast,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	for status, n := range summary.Requests {
		log.Printf("  %-24s %d", status, n)
	}
	log.Println("✨ All done! Your database is now populated with demo data.")
	log.Printf("📧 All seeded accounts have the password: %s", seed.DefaultPassword)
}
