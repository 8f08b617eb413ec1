package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLiteDSNEnablesForeignKeys(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"bloglite.db", "bloglite.db?_foreign_keys=1"},
		{"file:x?mode=memory&cache=shared", "file:x?mode=memory&cache=shared&_foreign_keys=1"},
		{"file:x?_fk=0", "file:x?_fk=0"},
	}
	for _, tt := range tests {
		c := DatabaseConfig{Driver: "sqlite", Path: tt.path}
		assert.Equal(t, tt.want, c.DSN())
	}
}

func TestPostgresDSN(t *testing.T) {
	c := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "blog", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=blog sslmode=disable", c.DSN())
}
