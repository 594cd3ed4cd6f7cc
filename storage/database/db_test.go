package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_createUserQuery(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		want     string
	}{
		{
			name:     "plain",
			user:     "portal",
			password: "secret",
			want:     `CREATE USER "portal" CREATEDB ENCRYPTED PASSWORD 'secret'`,
		},
		{
			name:     "quote in password",
			user:     "portal",
			password: "x'; DROP ROLE admin; --",
			want:     `CREATE USER "portal" CREATEDB ENCRYPTED PASSWORD 'x''; DROP ROLE admin; --'`,
		},
		{
			name:     "statement in user name",
			user:     `portal"; DROP DATABASE postgres; --`,
			password: "secret",
			want:     `CREATE USER "portal""; DROP DATABASE postgres; --" CREATEDB ENCRYPTED PASSWORD 'secret'`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, createUserQuery(tt.user, tt.password))
		})
	}
}

func Test_createDBQuery(t *testing.T) {
	assert.Equal(t, `CREATE DATABASE "portal"`, createDBQuery("portal"))
	assert.Equal(t, `CREATE DATABASE "portal; DROP DATABASE postgres"`, createDBQuery("portal; DROP DATABASE postgres"))
	assert.Equal(t, `CREATE DATABASE "a""b"`, createDBQuery(`a"b`))
}
