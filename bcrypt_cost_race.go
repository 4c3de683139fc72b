//go:build race

package authmanager

import "golang.org/x/crypto/bcrypt"

// Race builds are slow enough that the production cost makes suites time out.
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
