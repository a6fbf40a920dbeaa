package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

const (
	RoleAdmin    = "ADMIN_ROLE"
	RoleMinter   = "MINTER_ROLE"
	RolePauser   = "PAUSER_ROLE"
	RoleUpgrader = "UPGRADER_ROLE"
)

// Settings is the singleton registry state: pause flag, access-control roles
// and the running counters.
type Settings struct {
	Paused            bool
	Roles             map[string][]common.Address
	NextSafeId        uint64
	TotalClaimedSafes uint64
	TotalBurntSafes   uint64
}

// NewSettings bootstraps the registry with the given admin holding all roles.
func NewSettings(admin common.Address) *Settings {
	return &Settings{
		Roles: map[string][]common.Address{
			RoleAdmin:    {admin},
			RoleMinter:   {admin},
			RolePauser:   {admin},
			RoleUpgrader: {admin},
		},
		NextSafeId: 1,
	}
}

func (s *Settings) HasRole(role string, addr common.Address) bool {
	for _, a := range s.Roles[role] {
		if a == addr {
			return true
		}
	}
	return false
}

func (s *Settings) GrantRole(role string, addr common.Address) {
	if s.HasRole(role, addr) {
		return
	}
	if s.Roles == nil {
		s.Roles = make(map[string][]common.Address)
	}
	s.Roles[role] = append(s.Roles[role], addr)
}

func (s *Settings) RevokeRole(role string, addr common.Address) {
	members := s.Roles[role]
	for i, a := range members {
		if a == addr {
			s.Roles[role] = append(members[:i], members[i+1:]...)
			return
		}
	}
}
