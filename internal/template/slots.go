package template

import (
	"time"

	"github.com/Lllllllleong/contractsigning/internal/models"
)

// Contract template slots.
const (
	SlotSocialNetwork  = 1
	SlotFirstName      = 3
	SlotLastName       = 4
	SlotLastNameMother = 5
	SlotDateBirth      = 6
	SlotAge            = 7
	SlotPlaceBirth     = 8
	SlotLevelEducation = 9
	SlotLastSchool     = 10
	SlotCURP           = 11
	SlotPhone          = 12
	SlotPhoneFamily    = 13
	SlotPhoneOther     = 14
	SlotEmail          = 15
	SlotEnrollDate     = 19
	SlotSignDate       = 21
	SlotTermEndMonth   = 22
)

// termMonths is how far after enrollment the first term ends.
const termMonths = 4

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// Values maps an enrollment onto template slots. now should already be in
// the institution's time zone.
func Values(r models.EnrollRequest, now time.Time) map[int]string {
	social := r.SocialNetwork
	if social == "" {
		social = "N/A"
	}
	today := now.Format("02/01/2006")
	return map[int]string{
		SlotSocialNetwork:  social,
		SlotFirstName:      r.FirstName,
		SlotLastName:       r.LastName,
		SlotLastNameMother: r.LastNameMother,
		SlotDateBirth:      FormatDate(r.DateBirth),
		SlotAge:            string(r.Age),
		SlotPlaceBirth:     r.PlaceBirth,
		SlotLevelEducation: r.LevelEducation,
		SlotLastSchool:     r.LastSchool,
		SlotCURP:           r.CURP,
		SlotPhone:          r.Phone,
		SlotPhoneFamily:    r.PhoneFamily,
		SlotPhoneOther:     r.PhoneOther,
		SlotEmail:          r.Email,
		SlotEnrollDate:     today,
		SlotSignDate:       today,
		SlotTermEndMonth:   TermEndMonth(now),
	}
}

// FormatDate turns YYYY-MM-DD into DD/MM/YYYY. Anything else is returned as is.
func FormatDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return s
	}
	return t.Format("02/01/2006")
}

// TermEndMonth names the calendar month termMonths after now. Only the month
// number is shifted, so Oct 31 yields "Febrero" rather than overflowing into March.
func TermEndMonth(now time.Time) string {
	return monthNames[(int(now.Month())-1+termMonths)%12]
}
