package schema

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onyx-go/dispatch/internal/database"
)

func openSQLite(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{
		Driver:   database.SQLite,
		Database: filepath.Join(t.TempDir(), "schema.sqlite"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func usersBlueprint(t *Blueprint) {
	t.ID()
	t.String("name")
	t.String("email").Unique()
	t.Boolean("active").DefaultValue(true)
	t.RememberToken()
	t.Timestamps()
}

func TestGrammarCreate(t *testing.T) {
	tests := []struct {
		driver   string
		contains []string
	}{
		{database.MySQL, []string{
			"CREATE TABLE `users` (`id` BIGINT UNSIGNED NOT NULL AUTO_INCREMENT",
			"`email` VARCHAR(255) NOT NULL",
			"`active` TINYINT(1) NOT NULL DEFAULT 1",
			"PRIMARY KEY (`id`)",
			"utf8mb4",
		}},
		{database.Postgres, []string{
			`CREATE TABLE "users" ("id" BIGSERIAL NOT NULL`,
			`"active" BOOLEAN NOT NULL DEFAULT true`,
			`"remember_token" VARCHAR(100) NULL`,
			`PRIMARY KEY ("id")`,
		}},
		{database.SQLite, []string{
			`"id" INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL`,
			`"created_at" DATETIME NULL`,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			g, err := GrammarFor(tt.driver)
			require.NoError(t, err)

			b := NewBlueprint("users", true)
			usersBlueprint(b)
			statements, err := g.CompileCreate(b)
			require.NoError(t, err)
			require.Len(t, statements, 2)

			for _, fragment := range tt.contains {
				assert.Contains(t, statements[0], fragment)
			}
			assert.Contains(t, statements[1], "CREATE UNIQUE INDEX")
			assert.Contains(t, statements[1], "users_email_unique")
		})
	}

	_, err := GrammarFor("oracle")
	assert.Error(t, err)
}

func TestSQLiteCreateHasPrimaryOnce(t *testing.T) {
	g, _ := GrammarFor(database.SQLite)
	b := NewBlueprint("users", true)
	usersBlueprint(b)
	statements, err := g.CompileCreate(b)
	require.NoError(t, err)
	assert.NotContains(t, statements[0], "PRIMARY KEY (")
}

func TestGrammarAlter(t *testing.T) {
	b := NewBlueprint("posts", false)
	b.Text("summary").Nullable()
	b.RenameColumn("body", "content")
	b.DropColumn("legacy")
	b.DropIndex("posts_slug_index")
	b.ForeignID("user_id")
	b.Foreign("user_id", "id", "users").CascadeOnDelete()

	mysql, _ := GrammarFor(database.MySQL)
	statements, err := mysql.CompileAlter(b)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"ALTER TABLE `posts` ADD COLUMN `summary` TEXT NULL",
		"ALTER TABLE `posts` ADD COLUMN `user_id` BIGINT UNSIGNED NOT NULL",
		"ALTER TABLE `posts` RENAME COLUMN `body` TO `content`",
		"ALTER TABLE `posts` DROP COLUMN `legacy`",
		"DROP INDEX `posts_slug_index` ON `posts`",
		"ALTER TABLE `posts` ADD CONSTRAINT `posts_user_id_foreign` FOREIGN KEY (`user_id`) REFERENCES `users` (`id`) ON DELETE CASCADE",
	}, statements)

	sqlite, _ := GrammarFor(database.SQLite)
	_, err = sqlite.CompileAlter(b)
	assert.Error(t, err)
}

func TestGrammarMisc(t *testing.T) {
	mysql, _ := GrammarFor(database.MySQL)
	pg, _ := GrammarFor(database.Postgres)

	assert.Equal(t, "DROP TABLE IF EXISTS `a`", mysql.CompileDrop("a", true))
	assert.Equal(t, `DROP TABLE "a"`, pg.CompileDrop("a", false))
	assert.Equal(t, "RENAME TABLE `a` TO `b`", mysql.CompileRename("a", "b"))
	assert.Equal(t, `ALTER TABLE "a" RENAME TO "b"`, pg.CompileRename("a", "b"))

	b := NewBlueprint("prices", true)
	b.Decimal("amount", 0, 0)
	b.String("label").DefaultValue("it's")
	statements, err := mysql.CompileCreate(b)
	require.NoError(t, err)
	assert.Contains(t, statements[0], "DECIMAL(8,2)")
	assert.Contains(t, statements[0], "DEFAULT 'it''s'")

	_, err = mysql.CompileCreate(NewBlueprint("empty", true))
	assert.Error(t, err)
}

func TestBuilderSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	s, err := NewBuilder(db)
	require.NoError(t, err)

	require.NoError(t, s.Create(ctx, "users", usersBlueprint))
	require.NoError(t, s.Create(ctx, "posts", func(t *Blueprint) {
		t.ID()
		t.ForeignID("user_id")
		t.String("title")
		t.Text("body").Nullable()
		t.Foreign("user_id", "id", "users").CascadeOnDelete()
		t.IndexOn("user_id", "title")
	}))

	exists, err := s.HasTable(ctx, "users")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.HasTable(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	columns, err := s.ColumnListing(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "email", "active", "remember_token", "created_at", "updated_at"}, columns)

	_, err = db.ExecContext(ctx, "INSERT INTO users (name, email) VALUES (?, ?)", "Ada", "ada@example.com")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO users (name, email) VALUES (?, ?)", "Other", "ada@example.com")
	assert.Error(t, err, "unique index is enforced")

	var active bool
	require.NoError(t, db.QueryRowContext(ctx, "SELECT active FROM users WHERE email = ?", "ada@example.com").Scan(&active))
	assert.True(t, active)

	require.NoError(t, s.Table(ctx, "posts", func(t *Blueprint) {
		t.Integer("views").DefaultValue(0)
		t.RenameColumn("body", "content")
	}))
	has, err := s.HasColumn(ctx, "posts", "content")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = s.HasColumn(ctx, "posts", "body")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.Rename(ctx, "posts", "articles"))
	exists, _ = s.HasTable(ctx, "articles")
	assert.True(t, exists)

	require.NoError(t, s.Drop(ctx, "articles"))
	require.NoError(t, s.DropIfExists(ctx, "articles"))
	assert.Error(t, s.Drop(ctx, "articles"))
}

func createTable(prefix, table string) Migration {
	return Func{
		ID: prefix + "_" + table,
		UpFn: func(ctx context.Context, s *Builder) error {
			return s.Create(ctx, table, func(t *Blueprint) {
				t.ID()
				t.String("name")
			})
		},
		DownFn: func(ctx context.Context, s *Builder) error {
			return s.DropIfExists(ctx, table)
		},
	}
}

func TestMigrator(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	m, err := NewMigrator(db, "")
	require.NoError(t, err)

	require.NoError(t, m.Register(createTable("2024_01_01_000002", "teams"), createTable("2024_01_01_000001", "users")))
	assert.Error(t, m.Register(createTable("2024_01_01_000001", "users")))

	ran, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024_01_01_000001_users", "2024_01_01_000002_teams"}, ran)

	ran, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, ran)

	require.NoError(t, m.Register(createTable("2024_01_01_000003", "roles")))
	ran, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024_01_01_000003_roles"}, ran)

	status, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 3)
	assert.Equal(t, Status{Name: "2024_01_01_000001_users", Ran: true, Batch: 1}, status[0])
	assert.Equal(t, Status{Name: "2024_01_01_000003_roles", Ran: true, Batch: 2}, status[2])

	reverted, err := m.Rollback(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024_01_01_000003_roles"}, reverted)
	exists, _ := m.Schema().HasTable(ctx, "roles")
	assert.False(t, exists)

	reverted, err = m.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024_01_01_000002_teams", "2024_01_01_000001_users"}, reverted)

	status, err = m.Status(ctx)
	require.NoError(t, err)
	for _, s := range status {
		assert.False(t, s.Ran, s.Name)
	}
}

func TestMigratorFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	m, err := NewMigrator(db, "schema_migrations")
	require.NoError(t, err)

	boom := errors.New("boom")
	require.NoError(t, m.Register(Func{
		ID: "2024_02_01_000000_broken",
		UpFn: func(ctx context.Context, s *Builder) error {
			if err := s.Create(ctx, "half", func(t *Blueprint) { t.ID() }); err != nil {
				return err
			}
			return boom
		},
	}))

	_, err = m.Run(ctx)
	require.ErrorIs(t, err, boom)

	exists, err := m.Schema().HasTable(ctx, "half")
	require.NoError(t, err)
	assert.False(t, exists)

	status, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.False(t, status[0].Ran)
}
