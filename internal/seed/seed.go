// Package seed describes the default accounts loaded into an empty store.
package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticketflow/internal/domain"
	"github.com/spec-kit/ticketflow/internal/service"
)

// Account is one entry of a seed file.
type Account struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	FullName string `yaml:"fullName"`
	Role     string `yaml:"role"`
}

// File is the on-disk seed document.
type File struct {
	Users []Account `yaml:"users"`
}

// Defaults returns the built-in development accounts.
func Defaults() []service.AccountInput {
	return []service.AccountInput{
		{Username: "admin", Email: "admin@ticketflow.local", Password: "admin123", FullName: "System Administrator", Role: domain.RoleAdmin},
		{Username: "agent", Email: "agent@ticketflow.local", Password: "agent123", FullName: "Support Agent", Role: domain.RoleSupportAgent},
		{Username: "user", Email: "user@ticketflow.local", Password: "user123", FullName: "Regular User", Role: domain.RoleUser},
	}
}

// Load reads accounts from a YAML file. An empty path yields Defaults.
func Load(path string) ([]service.AccountInput, error) {
	if path == "" {
		return Defaults(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML seed document.
func Parse(raw []byte) ([]service.AccountInput, error) {
	var doc File
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	inputs := make([]service.AccountInput, 0, len(doc.Users))
	for i, acc := range doc.Users {
		role := domain.RoleUser
		if acc.Role != "" {
			parsed, ok := domain.ParseRole(acc.Role)
			if !ok {
				return nil, fmt.Errorf("users[%d]: unknown role %q", i, acc.Role)
			}
			role = parsed
		}
		inputs = append(inputs, service.AccountInput{
			Username: acc.Username,
			Email:    acc.Email,
			Password: acc.Password,
			FullName: acc.FullName,
			Role:     role,
		})
	}
	return inputs, nil
}
