//go:build !race

package authmanager

// DefaultPasswordCost is the bcrypt cost used when none is configured.
const DefaultPasswordCost = 12

func passwordHashCost() int {
	return DefaultPasswordCost
}
