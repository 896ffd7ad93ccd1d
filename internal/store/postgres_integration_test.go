// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

//go:build integration

package store_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zombify/zombify/internal/store"
	"github.com/zombify/zombify/pkg/errutil"
)

var (
	pool      *pgxpool.Pool
	connStr   string
	container *postgres.PostgresContainer
)

var _ = BeforeSuite(func() {
	ctx := context.Background()

	var err error
	container, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("zombify_test"),
		postgres.WithUsername("zombify"),
		postgres.WithPassword("zombify"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err = container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	pool, err = store.Open(ctx, connStr)
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if pool != nil {
		pool.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
})

var _ = Describe("Migrator", func() {
	It("rolls back and re-applies every migration", func() {
		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = migrator.Close() }()

		latest, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(dirty).To(BeFalse())
		Expect(latest).To(BeNumerically(">", 0))

		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(latest - 1))

		Expect(migrator.Up()).To(Succeed())
		pending, err := migrator.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())
	})
})

var _ = Describe("PostgresUserRepository", func() {
	var users *store.PostgresUserRepository

	BeforeEach(func() {
		users = store.NewPostgresUserRepository(pool)
		_, err := pool.Exec(context.Background(), `TRUNCATE users CASCADE`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("writes a user once", func() {
		ctx := context.Background()
		email := "alice@example.com"

		written, err := users.Upsert(ctx, "alice", &email)
		Expect(err).NotTo(HaveOccurred())
		Expect(written).To(BeTrue())

		written, err = users.Upsert(ctx, "alice", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(written).To(BeFalse())

		var count int
		var stored *string
		Expect(pool.QueryRow(ctx, `SELECT count(*), max(email) FROM users WHERE subject = 'alice'`).
			Scan(&count, &stored)).To(Succeed())
		Expect(count).To(Equal(1))
		Expect(*stored).To(Equal(email))
	})
})

var _ = Describe("PostgresStoryStateRepository", func() {
	var (
		users   *store.PostgresUserRepository
		stories *store.PostgresStoryStateRepository
	)

	BeforeEach(func() {
		ctx := context.Background()
		_, err := pool.Exec(ctx, `TRUNCATE users CASCADE`)
		Expect(err).NotTo(HaveOccurred())
		users = store.NewPostgresUserRepository(pool)
		stories = store.NewPostgresStoryStateRepository(pool)
		_, err = users.Upsert(ctx, "alice", nil)
		Expect(err).NotTo(HaveOccurred())
	})

	It("reports a missing record", func() {
		_, err := stories.Get(context.Background(), "alice")
		Expect(store.IsStoryStateNotFound(err)).To(BeTrue())
	})

	It("creates a record once", func() {
		ctx := context.Background()

		first, created, err := stories.Create(ctx, "alice", store.StoryPatch{
			Memory: store.Present(json.RawMessage(`{"day":1}`)),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())

		second, created, err := stories.Create(ctx, "alice", store.StoryPatch{
			Memory: store.Present(json.RawMessage(`{"day":99}`)),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeFalse())
		Expect(second.ID).To(Equal(first.ID))
		Expect(string(second.Memory)).To(MatchJSON(`{"day":1}`))
	})

	It("refuses a record for an unregistered user", func() {
		_, _, err := stories.Create(context.Background(), "nobody", store.StoryPatch{})
		Expect(errutil.HasCode(err, store.CodeUserNotRegistered)).To(BeTrue())
	})

	It("updates only the fields present in the patch", func() {
		ctx := context.Background()
		_, _, err := stories.Create(ctx, "alice", store.StoryPatch{
			Memory:       store.Present(json.RawMessage(`{"day":1}`)),
			Inventory:    store.Present(json.RawMessage(`["rope"]`)),
			CurrentQuest: store.Present(json.RawMessage(`{"id":"water"}`)),
		})
		Expect(err).NotTo(HaveOccurred())

		version := "1.1.0"
		updated, err := stories.Update(ctx, "alice", store.StoryPatch{
			Memory:        store.Present(json.RawMessage(`{"day":2}`)),
			CurrentQuest:  store.Present(json.RawMessage(`null`)),
			SchemaVersion: &version,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(updated.Memory)).To(MatchJSON(`{"day":2}`))
		Expect(string(updated.Inventory)).To(MatchJSON(`["rope"]`))
		Expect(updated.CurrentQuest).To(BeNil())
		Expect(*updated.SchemaVersion).To(Equal(version))
		Expect(updated.Revision).To(Equal(int64(2)))
		Expect(updated.UpdatedAt).To(BeTemporally(">=", updated.CreatedAt))

		fetched, err := stories.Get(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(fetched.Memory)).To(MatchJSON(`{"day":2}`))
		Expect(fetched.Revision).To(Equal(int64(2)))
	})

	It("reports an update without a record", func() {
		_, err := stories.Update(context.Background(), "alice", store.StoryPatch{})
		Expect(store.IsStoryStateNotFound(err)).To(BeTrue())
	})
})
