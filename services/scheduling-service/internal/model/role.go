package model

import (
	"fmt"
	"strings"
)

// Role of the actor performing an operation. There are exactly two.
type Role uint8

const (
	RoleClient Role = iota + 1
	RoleOperator
)

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client":
		return RoleClient, nil
	case "operator":
		return RoleOperator, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleOperator:
		return "operator"
	}
	return "unknown"
}

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleOperator
}
