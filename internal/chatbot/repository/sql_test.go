package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestSQLRepo(t *testing.T) {
	r, err := NewSQLRepo(openSQLite(t))
	require.NoError(t, err)
	exerciseRepository(t, r.WithClock(steppedClock()))
}

func TestSQLRepo_MigrationIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	_, err := NewSQLRepo(db)
	require.NoError(t, err)
	_, err = NewSQLRepo(db)
	require.NoError(t, err)
	require.True(t, db.Migrator().HasTable("chatbots"))
}

func TestSQLRepo_SameInstantKeepsInsertOrder(t *testing.T) {
	r, err := NewSQLRepo(openSQLite(t))
	require.NoError(t, err)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.WithClock(func() time.Time { return fixed })
	ctx := context.Background()
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, r.Insert(ctx, newBot("o", n)))
	}
	list, err := r.ListByOwner(ctx, "o")
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{"e", "d", "c", "b", "a"}, names)
}
