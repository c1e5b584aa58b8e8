package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
)

// dryDB renders SQL for the postgres dialect without a server.
func dryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=127.0.0.1 user=planmarket dbname=planmarket sslmode=disable"}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db
}

func TestCreateWritesActiveFlagAsGiven(t *testing.T) {
	db := dryDB(t)

	tests := []struct {
		name   string
		active bool
		want   string
		absent string
	}{
		{name: "inactive", active: false, want: "false", absent: "true"},
		{name: "active", active: true, want: "true", absent: "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
				return tx.Create(&models.Plan{Name: "Movil", Price: 10, Active: tt.active})
			})
			assert.Contains(t, sql, `"active"`)
			assert.Contains(t, sql, tt.want)
			assert.NotContains(t, sql, tt.absent)
		})
	}
}

func TestCreateWritesUserActiveFlagAsGiven(t *testing.T) {
	db := dryDB(t)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Create(&models.User{Email: "off@example.com", Password: "x", IsActive: false})
	})
	assert.Contains(t, sql, `"is_active"`)
	assert.Contains(t, sql, "false")
	assert.NotContains(t, sql, "true")
}
