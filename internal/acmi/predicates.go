package acmi

import "strings"

// parentedTypes are the Type substrings that mark an object as needing a
// parent resolved at creation time.
var parentedTypes = []string{"Weapon", "Projectile", "Decoy", "Container", "Flare"}

// notParentTypes are the Type substrings that disqualify an object from ever
// being selected as someone else's parent.
var notParentTypes = []string{
	"Decoy", "Misc", "Weapon", "Projectile", "Ground+Light+Human+Air+Parachutist",
}

func shouldHaveParent(recType string) bool {
	for _, t := range parentedTypes {
		if strings.Contains(recType, t) {
			return true
		}
	}
	return false
}

func canBeParent(recType string) bool {
	for _, t := range notParentTypes {
		if strings.Contains(recType, t) {
			return false
		}
	}
	return true
}

func isWeaponOrProjectile(recType string) bool {
	return strings.Contains(recType, "Weapon") || strings.Contains(recType, "Projectile")
}

func isLiveGroundUnit(rec *ObjectRec) bool {
	return strings.Contains(strings.ToLower(rec.Type), "ground") && rec.Alive
}
