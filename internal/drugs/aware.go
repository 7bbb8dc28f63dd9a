package drugs

import "strings"

// Class is the WHO AWaRe stewardship category of an antimicrobial.
type Class string

const (
	ClassAccess       Class = "access"
	ClassWatch        Class = "watch"
	ClassReserve      Class = "reserve"
	ClassUnclassified Class = "unclassified"
)

// Classification by active-ingredient name. Product names are matched by
// substring so "Enrofloxacin 10% Injectable" still resolves to watch.
var byIngredient = map[string]Class{
	// Access
	"amoxicillin":      ClassAccess,
	"ampicillin":       ClassAccess,
	"penicillin":       ClassAccess,
	"benzylpenicillin": ClassAccess,
	"cloxacillin":      ClassAccess,
	"oxytetracycline":  ClassAccess,
	"tetracycline":     ClassAccess,
	"doxycycline":      ClassAccess,
	"gentamicin":       ClassAccess,
	"neomycin":         ClassAccess,
	"sulfadiazine":     ClassAccess,
	"sulfamethoxazole": ClassAccess,
	"trimethoprim":     ClassAccess,
	"metronidazole":    ClassAccess,
	"florfenicol":      ClassAccess,
	// Watch
	"enrofloxacin":  ClassWatch,
	"ciprofloxacin": ClassWatch,
	"marbofloxacin": ClassWatch,
	"danofloxacin":  ClassWatch,
	"ceftiofur":     ClassWatch,
	"cefquinome":    ClassWatch,
	"cefuroxime":    ClassWatch,
	"erythromycin":  ClassWatch,
	"tylosin":       ClassWatch,
	"tilmicosin":    ClassWatch,
	"tulathromycin": ClassWatch,
	"azithromycin":  ClassWatch,
	"rifampicin":    ClassWatch,
	"vancomycin":    ClassWatch,
	// Reserve
	"colistin":    ClassReserve,
	"polymyxin":   ClassReserve,
	"tigecycline": ClassReserve,
	"linezolid":   ClassReserve,
	"daptomycin":  ClassReserve,
	"fosfomycin":  ClassReserve,
	"ceftaroline": ClassReserve,
	"cefiderocol": ClassReserve,
}

// Classify maps a drug or product name to its AWaRe class.
func Classify(drugName string) Class {
	name := strings.ToLower(strings.TrimSpace(drugName))
	if name == "" {
		return ClassUnclassified
	}
	if c, ok := byIngredient[name]; ok {
		return c
	}
	for ingredient, c := range byIngredient {
		if strings.Contains(name, ingredient) {
			return c
		}
	}
	return ClassUnclassified
}

// IsCritical reports whether the class counts toward the critical-usage
// ratio (Watch and Reserve carry elevated stewardship priority).
func IsCritical(c Class) bool {
	return c == ClassWatch || c == ClassReserve
}
