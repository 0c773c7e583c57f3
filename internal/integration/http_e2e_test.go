//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"stayfinder/internal/adapters/events"
	httpserver "stayfinder/internal/adapters/http_server"
	redisad "stayfinder/internal/adapters/redis"
	"stayfinder/internal/app"
	"stayfinder/internal/shared"
	"stayfinder/internal/storage/breaker"
	mysqlrepo "stayfinder/internal/storage/mysql"
)

// ---------- helpers ----------

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Skipf("%s not set; export it (e.g. MIGRATIONS_DIR=$PWD/migrations)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	mustEnv(t, "MIGRATIONS_DIR")

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=stayfinder",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/stayfinder?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func postJSON(t *testing.T, url, user string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return res
}

// ---------- the test ----------

// TestHTTP_EndToEnd_BookingRace runs the real server over MySQL with the
// Redis cache and lock, seeds the fixture inventory and races bookings for
// the last suites.
func TestHTTP_EndToEnd_BookingRace(t *testing.T) {
	db := startMySQL(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rc := redisad.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rc.Close() })
	cache := redisad.New(rc)

	store := breaker.New(mysqlrepo.New(db), breaker.Config{Name: "e2e", FailureThreshold: 5, OpenTimeout: time.Second})

	seeder := app.NewSeedingService(nil, store, cache)
	ratings := shared.FixtureRatings()
	for _, h := range shared.FixtureHotels() {
		if err := seeder.SeedHotel(ctx, h, ratings[h.ID]); err != nil {
			t.Fatalf("seed %s: %v", h.ID, err)
		}
	}

	avail := app.NewAvailabilityEngine(store, 2*time.Second)
	srv := httpserver.New(httpserver.Options{Timeout: 10 * time.Second})
	srv.MountHandlers(&httpserver.Handlers{
		Q:      app.NewQueryService(store, cache, time.Minute, 2*time.Second),
		Avail:  avail,
		Scores: app.NewScoringEngine(store, cache, time.Minute, 2*time.Second),
		Bookings: app.NewBookingService(store, avail, redisad.NewLocker(rc, 5*time.Second), events.Noop{}, app.BookingOptions{
			StoreTimeout: 2 * time.Second,
			LockWait:     10 * time.Second,
			MaxRetries:   3,
		}),
		Ratings: app.NewRatingService(store, 2*time.Second),
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// Recommendations for Miami favour pool and spa.
	res := postJSON(t, ts.URL+"/v1/recommendations", "", map[string]any{"location": "Miami", "amenities": []string{"pool", "spa"}})
	var reco struct {
		Recommendations []struct {
			Hotel struct {
				ID string `json:"id"`
			} `json:"hotel"`
		} `json:"recommendations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&reco); err != nil {
		t.Fatalf("decode: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK || len(reco.Recommendations) != 3 || reco.Recommendations[0].Hotel.ID != "luxury-beach-resort-spa" {
		t.Fatalf("recommendations status=%d body=%+v", res.StatusCode, reco)
	}

	// Suites have two rooms: of eight racing requests exactly two win.
	checkIn := time.Now().UTC().AddDate(0, 1, 0).Format("2006-01-02")
	checkOut := time.Now().UTC().AddDate(0, 1, 3).Format("2006-01-02")
	booking := map[string]any{
		"hotel_id": "the-grand-plaza", "room_type_id": "suite",
		"check_in": checkIn, "check_out": checkOut, "guests": 2,
	}
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := postJSON(t, ts.URL+"/v1/bookings", fmt.Sprintf("guest-%d", i), booking)
			res.Body.Close()
			mu.Lock()
			codes[res.StatusCode]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	if codes[http.StatusCreated] != 2 || codes[http.StatusConflict] != 6 {
		t.Fatalf("status counts: %v", codes)
	}

	res, err := http.Get(fmt.Sprintf("%s/v1/hotels/the-grand-plaza/availability?room_type=suite&check_in=%s&check_out=%s", ts.URL, checkIn, checkOut))
	if err != nil {
		t.Fatalf("GET availability: %v", err)
	}
	defer res.Body.Close()
	var av struct {
		RoomTypes []struct {
			MinAvailable int `json:"min_available"`
			Days         []struct {
				Booked int `json:"booked"`
			} `json:"days"`
		} `json:"room_types"`
	}
	if err := json.NewDecoder(res.Body).Decode(&av); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(av.RoomTypes) != 1 || av.RoomTypes[0].MinAvailable != 0 || len(av.RoomTypes[0].Days) != 3 {
		t.Fatalf("availability: %+v", av)
	}
	for _, d := range av.RoomTypes[0].Days {
		if d.Booked != 2 {
			t.Fatalf("booked = %d, want 2", d.Booked)
		}
	}
	if store.State() != "closed" {
		t.Fatalf("breaker state = %s", store.State())
	}
}
