package service

import "github.com/hhwjsw711/agentic-jumpstart-sub001/internal/domain"

// EvaluateTargeting decides whether a flag is on for user under mode. A nil
// user is anonymous and is only enabled under ALL. Admin status is not
// consulted. Unknown modes are disabled.
func EvaluateTargeting(mode domain.TargetMode, members map[uint]struct{}, user *domain.UserAttributes) bool {
	switch mode {
	case domain.TargetModeAll:
		return true
	case domain.TargetModePremium:
		return user != nil && user.IsPremium
	case domain.TargetModeNonPremium:
		return user != nil && !user.IsPremium
	case domain.TargetModeCustom:
		if user == nil {
			return false
		}
		_, ok := members[user.UserID]
		return ok
	default:
		return false
	}
}

// enabledMemberSet keeps only memberships whose enabled column is set.
func enabledMemberSet(members []domain.FeatureFlagUser) map[uint]struct{} {
	set := make(map[uint]struct{}, len(members))
	for _, m := range members {
		if m.Enabled {
			set[m.UserID] = struct{}{}
		}
	}
	return set
}
